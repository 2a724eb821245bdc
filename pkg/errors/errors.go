package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents transport errors (connection failure, unexpected status)
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents document-shape errors (expected table missing entirely)
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeExtraction represents a row cell violating an expected invariant
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeDecode represents schedule text outside the decoder grammar
	ErrorTypeDecode ErrorType = "decode"
	// ErrorTypeRateLimit represents rate limiting by the remote host
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeCache represents cache-service errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// CrawlError is the error type produced throughout the crawl pipeline.
// Source identifies where the error happened: a component name, or for
// extraction errors the identity of the offending row.
type CrawlError struct {
	Type    ErrorType
	Source  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *CrawlError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, e.Message)
}

// Unwrap returns the underlying error
func (e *CrawlError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether re-invoking the failing operation makes
// sense. The page cache stores nothing on failure, so a failed
// GetCourse can be retried with a plain re-call.
func (e *CrawlError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork:
		return true
	default:
		return false
	}
}

// New creates a new CrawlError
func New(errType ErrorType, source, message string, err error) *CrawlError {
	return &CrawlError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(source, message string, err error) *CrawlError {
	return New(ErrorTypeNetwork, source, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(source, message string, err error) *CrawlError {
	return New(ErrorTypeParsing, source, message, err)
}

// NewExtraction creates a new extraction error for the row at the given global index
func NewExtraction(index int, message string, err error) *CrawlError {
	return New(ErrorTypeExtraction, fmt.Sprintf("row %d", index), message, err)
}

// NewDecode creates a new decode error carrying the original schedule text for diagnosis
func NewDecode(text, message string) *CrawlError {
	return New(ErrorTypeDecode, "schedule", fmt.Sprintf("%s in %q", message, text), nil)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(source string, duration time.Duration) *CrawlError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, source, message, nil)
}

// NewCache creates a new cache error
func NewCache(source, message string, err error) *CrawlError {
	return New(ErrorTypeCache, source, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(source, message string, err error) *CrawlError {
	return New(ErrorTypePublisher, source, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *CrawlError {
	return New(ErrorTypeConfiguration, "", message, err)
}
