package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	SMTP     SMTPConfig
	Push     PushConfig
	Auth     AuthConfig
	Notifier NotifierConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	MaxRetries   int    `mapstructure:"max_retries"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type PushConfig struct {
	Endpoint       string  `mapstructure:"endpoint"`
	AccessToken    string  `mapstructure:"access_token"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RatePerSecond  float64 `mapstructure:"rate_per_second"`
	RateBurst      int     `mapstructure:"rate_burst"`
}

type AuthConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret"`
	APIKeyHash string `mapstructure:"api_key_hash"`
}

// NotifierConfig holds the routing/debounce tunables. It is injected into the
// router and digest constructors rather than read from globals.
type NotifierConfig struct {
	EmailDebounce     time.Duration `mapstructure:"email_debounce"`
	MaxBatchMessages  int           `mapstructure:"max_batch_messages"`
	MaxThreadMessages int           `mapstructure:"max_thread_messages"`
	MessageLookback   int           `mapstructure:"message_lookback"`
}

type WorkerConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	CleanupAfter    time.Duration `mapstructure:"cleanup_after"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	HealthPort      int           `mapstructure:"health_port"`
}

// WorkerEnv carries worker-only overrides read from the environment.
type WorkerEnv struct {
	BatchSize    int           `envconfig:"WORKER_BATCH_SIZE"`
	PollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL"`
	HealthPort   int           `envconfig:"WORKER_HEALTH_PORT"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// ApplyWorkerEnv merges WORKER_* environment overrides into the config.
func (c *Config) ApplyWorkerEnv() error {
	var env WorkerEnv
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("failed to process worker env: %w", err)
	}
	if env.BatchSize > 0 {
		c.Worker.BatchSize = env.BatchSize
	}
	if env.PollInterval > 0 {
		c.Worker.PollInterval = env.PollInterval
	}
	if env.HealthPort > 0 {
		c.Worker.HealthPort = env.HealthPort
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeoutSeconds", 30)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)
	viper.SetDefault("push.timeout_seconds", 10)
	viper.SetDefault("push.rate_per_second", 50)
	viper.SetDefault("push.rate_burst", 100)
	viper.SetDefault("notifier.email_debounce", time.Minute)
	viper.SetDefault("notifier.max_batch_messages", 8)
	viper.SetDefault("notifier.max_thread_messages", 12)
	viper.SetDefault("notifier.message_lookback", 200)
	viper.SetDefault("worker.batch_size", 50)
	viper.SetDefault("worker.poll_interval", time.Second)
	viper.SetDefault("worker.cleanup_after", 24*time.Hour)
	viper.SetDefault("worker.cleanup_interval", time.Hour)
	viper.SetDefault("worker.health_port", 8081)
}

// DefaultNotifierConfig mirrors the production defaults for tests and tools.
func DefaultNotifierConfig() NotifierConfig {
	return NotifierConfig{
		EmailDebounce:     time.Minute,
		MaxBatchMessages:  8,
		MaxThreadMessages: 12,
		MessageLookback:   200,
	}
}
