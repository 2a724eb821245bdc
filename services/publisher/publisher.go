package publisher

// Publisher represents a sink for crawled course records
type Publisher interface {
	// Publish publishes a message under a key
	Publish(key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}
