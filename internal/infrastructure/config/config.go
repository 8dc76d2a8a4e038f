// Package config provides centralized configuration management
// using Viper for configuration loading and validation
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	AI            AIConfig            `mapstructure:"ai"`
	Vector        VectorConfig        `mapstructure:"vector"`
	Push          PushConfig          `mapstructure:"push"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Chat          ChatConfig          `mapstructure:"chat"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DSN returns the postgres connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	Database     int           `mapstructure:"database"`
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the host:port pair
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AIConfig contains model provider configuration
type AIConfig struct {
	OpenAIKey       string  `mapstructure:"openai_key"`
	VisionModel     string  `mapstructure:"vision_model"`
	ChatModel       string  `mapstructure:"chat_model"`
	SuggestionModel string  `mapstructure:"suggestion_model"`
	EmbeddingModel  string  `mapstructure:"embedding_model"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
}

// VectorConfig contains the nutrition index configuration
type VectorConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PushConfig contains FCM configuration
type PushConfig struct {
	ProjectID   string        `mapstructure:"project_id"`
	Endpoint    string        `mapstructure:"endpoint"`
	Token       string        `mapstructure:"token"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// StorageConfig contains the image store configuration
type StorageConfig struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
}

// PipelineConfig bounds the analysis pipeline and the event bus
type PipelineConfig struct {
	EventWorkers      int           `mapstructure:"event_workers"`
	EventQueueSize    int           `mapstructure:"event_queue_size"`
	SubscriberTimeout time.Duration `mapstructure:"subscriber_timeout"`
}

// NotificationsConfig bounds the reminder dispatcher
type NotificationsConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
	PushTimeout  time.Duration `mapstructure:"push_timeout"`
	SendsPerSec  float64       `mapstructure:"sends_per_sec"`
}

// ChatConfig bounds the conversation window
type ChatConfig struct {
	WindowSize int `mapstructure:"window_size"`
}

// MetricsConfig contains the Prometheus exposition configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/nutrisnap")
	}

	v.SetEnvPrefix("NUTRISNAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Defaults plus environment are a valid configuration on their own
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "NutriSnap")
	v.SetDefault("app.version", "2.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "150s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "nutrisnap")
	v.SetDefault("database.username", "nutrisnap")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("ai.vision_model", "gpt-4o")
	v.SetDefault("ai.chat_model", "gpt-4o-mini")
	v.SetDefault("ai.suggestion_model", "gpt-4o-mini")
	v.SetDefault("ai.embedding_model", "text-embedding-3-small")
	v.SetDefault("ai.max_tokens", 2048)
	v.SetDefault("ai.temperature", 0.2)

	v.SetDefault("vector.timeout", "5s")

	v.SetDefault("push.endpoint", "https://fcm.googleapis.com")
	v.SetDefault("push.send_timeout", "10s")

	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "nutrisnap-meal-images")

	v.SetDefault("pipeline.event_workers", 16)
	v.SetDefault("pipeline.event_queue_size", 1024)
	v.SetDefault("pipeline.subscriber_timeout", "90s")

	v.SetDefault("notifications.tick_interval", "1m")
	v.SetDefault("notifications.workers", 8)
	v.SetDefault("notifications.queue_size", 256)
	v.SetDefault("notifications.push_timeout", "10s")
	v.SetDefault("notifications.sends_per_sec", 50)

	v.SetDefault("chat.window_size", 20)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.AI.OpenAIKey == "" && c.IsProduction() {
		return fmt.Errorf("ai.openai_key is required in production")
	}
	if c.Pipeline.EventWorkers < 1 {
		return fmt.Errorf("pipeline.event_workers must be positive")
	}
	if c.Chat.WindowSize < 2 {
		return fmt.Errorf("chat.window_size must be at least 2")
	}
	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
