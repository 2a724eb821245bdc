package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"
)

// Publisher kinds selectable via NOL_PUBLISHER
const (
	PublisherStdout = "stdout"
	PublisherRedis  = "redis"
)

// semester identifiers look like "104-1" (ROC year, term)
var semesterPattern = regexp.MustCompile(`^\d{2,3}-\d$`)

// Config represents the application configuration
type Config struct {
	// Crawl configuration
	Semester   string
	StartIndex int
	CacheSize  int
	MaxRetries int
	RetryDelay time.Duration

	// Transport configuration
	BaseURL        string
	HTTPTimeout    time.Duration
	RateLimitBlock time.Duration

	// Output configuration
	Publisher string
	Pretty    bool

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration (empty disables the rate-limit guard)
	MemcacheAddr string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	startIndex, _ := strconv.Atoi(getEnv("NOL_START_INDEX", "0"))
	cacheSize, _ := strconv.Atoi(getEnv("NOL_CACHE_SIZE", "5"))
	maxRetries, _ := strconv.Atoi(getEnv("NOL_MAX_RETRIES", "5"))
	retryDelay, _ := strconv.Atoi(getEnv("NOL_RETRY_DELAY_SECONDS", "3"))
	httpTimeout, _ := strconv.Atoi(getEnv("NOL_HTTP_TIMEOUT_SECONDS", "30"))
	blockSeconds, _ := strconv.Atoi(getEnv("NOL_RATE_LIMIT_BLOCK_SECONDS", "300"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	streamMaxLen, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"))

	return &Config{
		Semester:             getEnv("NOL_SEMESTER", ""),
		StartIndex:           startIndex,
		CacheSize:            cacheSize,
		MaxRetries:           maxRetries,
		RetryDelay:           time.Duration(retryDelay) * time.Second,
		BaseURL:              getEnv("NOL_BASE_URL", "https://nol.ntu.edu.tw/nol/coursesearch/search_result.php"),
		HTTPTimeout:          time.Duration(httpTimeout) * time.Second,
		RateLimitBlock:       time.Duration(blockSeconds) * time.Second,
		Publisher:            getEnv("NOL_PUBLISHER", PublisherStdout),
		Pretty:               getEnv("NOL_PRETTY", "") != "",
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "courses"),
		RedisStreamCount:     streamCount,
		RedisStreamMaxLength: streamMaxLen,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		Environment:          getEnv("NOL_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive, got %d", c.CacheSize)
	}
	if c.StartIndex < 0 {
		return fmt.Errorf("start index must not be negative, got %d", c.StartIndex)
	}
	if c.Semester != "" && !semesterPattern.MatchString(c.Semester) {
		return fmt.Errorf("malformed semester identifier %q, want e.g. 104-1", c.Semester)
	}
	if c.Publisher != PublisherStdout && c.Publisher != PublisherRedis {
		return fmt.Errorf("unknown publisher %q", c.Publisher)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL must not be empty")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
