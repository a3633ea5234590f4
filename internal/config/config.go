package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	FeedLimit       int           `mapstructure:"FEED_LIMIT"`
	NotifyWorkers   int           `mapstructure:"NOTIFY_WORKERS"`
	NotifyQueueSize int           `mapstructure:"NOTIFY_QUEUE_SIZE"`
	NotifyRetries   int           `mapstructure:"NOTIFY_RETRIES"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	PostIDScheme    string        `mapstructure:"POST_ID_SCHEME"`
	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	RedisPassword   string        `mapstructure:"REDIS_PASSWORD"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	LogFormat       string        `mapstructure:"LOG_FORMAT"`
}

func Load() Config {
	viper.AutomaticEnv()
	viper.SetDefault("FEED_LIMIT", 10)
	viper.SetDefault("NOTIFY_WORKERS", 10)
	viper.SetDefault("NOTIFY_QUEUE_SIZE", 100)
	viper.SetDefault("NOTIFY_RETRIES", 0)
	viper.SetDefault("SHUTDOWN_TIMEOUT", "60s")
	viper.SetDefault("POST_ID_SCHEME", "sequence")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	return cfg
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	switch {
	case c.FeedLimit <= 0:
		return fmt.Errorf("FEED_LIMIT must be positive, got %d", c.FeedLimit)
	case c.NotifyWorkers <= 0:
		return fmt.Errorf("NOTIFY_WORKERS must be positive, got %d", c.NotifyWorkers)
	case c.NotifyQueueSize <= 0:
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be positive, got %d", c.NotifyQueueSize)
	case c.NotifyRetries < 0:
		return fmt.Errorf("NOTIFY_RETRIES must not be negative, got %d", c.NotifyRetries)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}
	switch c.PostIDScheme {
	case "sequence", "uuid":
	default:
		return fmt.Errorf("POST_ID_SCHEME must be sequence or uuid, got %q", c.PostIDScheme)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}
