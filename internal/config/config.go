package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the store system
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Auth     AuthConfig     `yaml:"auth"`
	Alerts   AlertsConfig   `yaml:"alerts"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `yaml:"port"`
	UploadDir       string        `yaml:"upload_dir"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SeedDefaults    bool          `yaml:"seed_defaults"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// RabbitMQConfig holds RabbitMQ connection configuration.
// An empty host disables status notifications.
type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// RedisConfig holds the cart store connection. An empty addr keeps carts in memory.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CartTTL  time.Duration `yaml:"cart_ttl"`
}

// StorageConfig selects the record store backend
type StorageConfig struct {
	Driver        string `yaml:"driver"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

// AuthConfig holds the staff gate and session token settings
type AuthConfig struct {
	StaffPassword     string        `yaml:"staff_password"`
	StaffPasswordHash string        `yaml:"staff_password_hash"`
	TokenSecret       string        `yaml:"token_secret"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
}

// AlertsConfig holds the staff alert timing used by the alert subscriber
type AlertsConfig struct {
	VisualWindow  time.Duration `yaml:"visual_window"`
	AudioCooldown time.Duration `yaml:"audio_cooldown"`
}

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Load reads configuration from a YAML file, applies defaults and environment overrides
func Load(filename string) (*Config, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(content, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Default returns the configuration used when a key is absent from the file
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3001,
			UploadDir:       "uploads",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			SeedDefaults:    true,
		},
		Database: DatabaseConfig{
			Host: "localhost",
			Port: 5432,
		},
		RabbitMQ: RabbitMQConfig{
			Port: 5672,
		},
		Redis: RedisConfig{
			CartTTL: 24 * time.Hour,
		},
		Storage: StorageConfig{
			Driver:        DriverPostgres,
			MongoDatabase: "smart_store",
		},
		Auth: AuthConfig{
			TokenTTL: 12 * time.Hour,
		},
		Alerts: AlertsConfig{
			VisualWindow:  3 * time.Second,
			AudioCooldown: 5 * time.Second,
		},
	}
}

// applyEnv overrides file values with STORE_* environment variables
func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"STORE_DATABASE_HOST":       &c.Database.Host,
		"STORE_DATABASE_USER":       &c.Database.User,
		"STORE_DATABASE_PASSWORD":   &c.Database.Password,
		"STORE_DATABASE_NAME":       &c.Database.Database,
		"STORE_RABBITMQ_HOST":       &c.RabbitMQ.Host,
		"STORE_RABBITMQ_PASSWORD":   &c.RabbitMQ.Password,
		"STORE_REDIS_ADDR":          &c.Redis.Addr,
		"STORE_STORAGE_DRIVER":      &c.Storage.Driver,
		"STORE_MONGO_URI":           &c.Storage.MongoURI,
		"STORE_AUTH_STAFF_PASSWORD": &c.Auth.StaffPassword,
		"STORE_AUTH_TOKEN_SECRET":   &c.Auth.TokenSecret,
	}
	for key, target := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*target = v
		}
	}

	ints := map[string]*int{
		"STORE_SERVER_PORT":   &c.Server.Port,
		"STORE_DATABASE_PORT": &c.Database.Port,
		"STORE_RABBITMQ_PORT": &c.RabbitMQ.Port,
	}
	for key, target := range ints {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s value: %w", key, err)
		}
		*target = n
	}

	return nil
}

// Validate checks cross-field requirements
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres, DriverMongo, DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver: %s", c.Storage.Driver)
	}
	if c.Storage.Driver == DriverMongo && c.Storage.MongoURI == "" {
		return fmt.Errorf("storage.mongo_uri is required for the mongo driver")
	}
	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("auth.token_secret is required")
	}
	if c.Auth.StaffPassword == "" && c.Auth.StaffPasswordHash == "" {
		return fmt.Errorf("auth.staff_password or auth.staff_password_hash is required")
	}
	return nil
}

// NotificationsEnabled reports whether a RabbitMQ broker is configured
func (c *Config) NotificationsEnabled() bool {
	return c.RabbitMQ.Host != ""
}

// DatabaseURL returns a PostgreSQL connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database)
}

// RabbitMQURL returns an AMQP connection URL
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}
