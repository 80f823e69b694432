package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"collabhub.app/pkg/errors"
)

const (
	maxRedisDB    = 15
	maxPortNumber = 65535

	minLargeObjectThreshold = 1024
)

// Config represents the application configuration structure
type Config struct {
	Server      ServerConfig      `split_words:"true"`
	Redis       RedisConfig       `split_words:"true"`
	Cache       CacheConfig       `split_words:"true"`
	ClientCache ClientCacheConfig `split_words:"true"`
	LogLevel    string            `envconfig:"LOG_LEVEL" default:"info"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port int `envconfig:"SERVER_PORT" default:"8080"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr         string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password     string `envconfig:"REDIS_PASSWORD" default:""`
	DB           int    `envconfig:"REDIS_DB" default:"0"`
	DialTimeout  int    `envconfig:"REDIS_DIAL_TIMEOUT" default:"5"`
	ReadTimeout  int    `envconfig:"REDIS_READ_TIMEOUT" default:"3"`
	WriteTimeout int    `envconfig:"REDIS_WRITE_TIMEOUT" default:"3"`
}

// CacheConfig contains TTLs and bounds for the server-side cache subsystem
type CacheConfig struct {
	RequestTTLSeconds    int `envconfig:"CACHE_REQUEST_TTL" default:"300"`
	PresenceTTLSeconds   int `envconfig:"CACHE_PRESENCE_TTL" default:"3600"`
	MessageWindowSize    int `envconfig:"CACHE_MESSAGE_WINDOW_SIZE" default:"50"`
	MessageWindowTTLDays int `envconfig:"CACHE_MESSAGE_WINDOW_TTL_DAYS" default:"7"`
	NotificationLimit    int `envconfig:"CACHE_NOTIFICATION_LIMIT" default:"100"`
	NotificationTTLDays  int `envconfig:"CACHE_NOTIFICATION_TTL_DAYS" default:"30"`
	RateLimitDefault     int `envconfig:"CACHE_RATE_LIMIT_DEFAULT" default:"60"`
	RateWindowSeconds    int `envconfig:"CACHE_RATE_WINDOW_SECONDS" default:"60"`
}

// RequestTTL returns the request cache TTL as a duration
func (c CacheConfig) RequestTTL() time.Duration {
	return time.Duration(c.RequestTTLSeconds) * time.Second
}

// PresenceTTL returns the presence record TTL as a duration
func (c CacheConfig) PresenceTTL() time.Duration {
	return time.Duration(c.PresenceTTLSeconds) * time.Second
}

// MessageWindowTTL returns the message window TTL as a duration
func (c CacheConfig) MessageWindowTTL() time.Duration {
	return time.Duration(c.MessageWindowTTLDays) * 24 * time.Hour
}

// NotificationTTL returns the per-user notification list TTL as a duration
func (c CacheConfig) NotificationTTL() time.Duration {
	return time.Duration(c.NotificationTTLDays) * 24 * time.Hour
}

// ClientCacheConfig contains settings for the embedded multi-tier cache
type ClientCacheConfig struct {
	Dir                  string `envconfig:"CLIENT_CACHE_DIR" default:"./data/clientcache"`
	DurableFile          string `envconfig:"CLIENT_CACHE_DURABLE_FILE" default:"durable.db"`
	LargeObjectThreshold int    `envconfig:"CLIENT_CACHE_LARGE_OBJECT_THRESHOLD" default:"65536"`
}

// LoadConfig loads and validates application configuration from environment variables
func LoadConfig() (*Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, errors.NewConfigurationError("error processing config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.ClientCache.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks if server configuration is valid
func (c ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > maxPortNumber {
		return errors.NewConfigurationError(
			fmt.Sprintf("invalid server port: %d", c.Port), nil)
	}
	return nil
}

// Validate checks if Redis configuration is valid
func (c RedisConfig) Validate() error {
	if c.Addr == "" {
		return errors.NewConfigurationError("redis address cannot be empty", nil)
	}
	if c.DB < 0 || c.DB > maxRedisDB {
		return errors.NewConfigurationError(
			fmt.Sprintf("invalid redis database number: %d", c.DB), nil)
	}
	if c.DialTimeout <= 0 || c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return errors.NewConfigurationError("redis timeouts must be positive", nil)
	}
	return nil
}

// Validate checks if cache configuration is valid
func (c CacheConfig) Validate() error {
	if c.RequestTTLSeconds <= 0 {
		return errors.NewConfigurationError("request cache TTL must be positive", nil)
	}
	if c.PresenceTTLSeconds <= 0 {
		return errors.NewConfigurationError("presence TTL must be positive", nil)
	}
	if c.MessageWindowSize <= 0 {
		return errors.NewConfigurationError("message window size must be positive", nil)
	}
	if c.MessageWindowTTLDays <= 0 {
		return errors.NewConfigurationError("message window TTL must be positive", nil)
	}
	if c.NotificationLimit <= 0 {
		return errors.NewConfigurationError("notification limit must be positive", nil)
	}
	if c.NotificationTTLDays <= 0 {
		return errors.NewConfigurationError("notification TTL must be positive", nil)
	}
	if c.RateLimitDefault <= 0 || c.RateWindowSeconds <= 0 {
		return errors.NewConfigurationError("rate limit defaults must be positive", nil)
	}
	return nil
}

// Validate checks if client cache configuration is valid
func (c ClientCacheConfig) Validate() error {
	if c.Dir == "" {
		return errors.NewConfigurationError("client cache directory cannot be empty", nil)
	}
	if c.DurableFile == "" {
		return errors.NewConfigurationError("client cache durable file cannot be empty", nil)
	}
	if c.LargeObjectThreshold < minLargeObjectThreshold {
		return errors.NewConfigurationError(
			fmt.Sprintf("large object threshold too small: %d", c.LargeObjectThreshold), nil)
	}
	return nil
}
