package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type RateLimitConfig struct {
	APIReadPerMinute     int `mapstructure:"api_read_per_minute"`
	APIWritePerMinute    int `mapstructure:"api_write_per_minute"`
	WebhookTestPerMinute int `mapstructure:"webhook_test_per_minute"`
}

// WebhooksConfig holds dispatcher tuning and the defaults applied to new webhook configs.
type WebhooksConfig struct {
	WorkerCount          int           `mapstructure:"worker_count"`
	MaxRetries           int           `mapstructure:"max_retries"`
	RetryDelayMS         int           `mapstructure:"retry_delay_ms"`
	AutoDisableThreshold int           `mapstructure:"auto_disable_threshold"`
	Timeout              time.Duration `mapstructure:"timeout"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout"`
	MaxResponseBytes     int64         `mapstructure:"max_response_bytes"`
}

type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	EventChannel string `mapstructure:"event_channel"`
}

// WorkerConfig is used by cmd/worker, which has no API surface of its own.
type WorkerConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 20*time.Second)

	v.SetDefault("database.url", "file:data/wazeapp.db")
	v.SetDefault("database.max_connections", 10)

	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)

	v.SetDefault("rate_limit.api_read_per_minute", 1000)
	v.SetDefault("rate_limit.api_write_per_minute", 100)
	v.SetDefault("rate_limit.webhook_test_per_minute", 10)

	v.SetDefault("webhooks.worker_count", 32)
	v.SetDefault("webhooks.max_retries", 3)
	v.SetDefault("webhooks.retry_delay_ms", 1000)
	v.SetDefault("webhooks.auto_disable_threshold", 10)
	v.SetDefault("webhooks.timeout", 10*time.Second)
	v.SetDefault("webhooks.shutdown_timeout", 15*time.Second)
	v.SetDefault("webhooks.max_response_bytes", 4096)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.event_channel", "wazeapp:events")

	v.SetDefault("worker.metrics_addr", ":9091")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
