package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	History  HistoryConfig  `mapstructure:"history"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// DatabaseConfig contains the tracker database connection configuration
type DatabaseConfig struct {
	ConnectionString   string        `mapstructure:"connection_string"`
	MaxConnections     int           `mapstructure:"max_connections"`
	MaxIdleTime        time.Duration `mapstructure:"max_idle_time"`
	AcquisitionTimeout time.Duration `mapstructure:"acquisition_timeout"`
}

// GatewayConfig contains query gateway bounds
type GatewayConfig struct {
	DefaultLimit     int `mapstructure:"default_limit"`
	MaxLimit         int `mapstructure:"max_limit"`
	DefaultTimeoutMs int `mapstructure:"default_timeout_ms"`
	MinTimeoutMs     int `mapstructure:"min_timeout_ms"`
	MaxTimeoutMs     int `mapstructure:"max_timeout_ms"`
}

// HistoryConfig contains the local query-audit store configuration
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	EnableHealth  bool          `mapstructure:"enable_health"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, file
	File   string `mapstructure:"file"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./internal/config")
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("STATUSWATCH")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults and environment variables")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Override with environment variables if present
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.ConnectionString = dbURL
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "statuswatch-assistant")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)

	// Database defaults
	viper.SetDefault("database.max_connections", 5)
	viper.SetDefault("database.max_idle_time", "5m")
	viper.SetDefault("database.acquisition_timeout", "5s")

	// Gateway defaults
	viper.SetDefault("gateway.default_limit", 200)
	viper.SetDefault("gateway.max_limit", 2000)
	viper.SetDefault("gateway.default_timeout_ms", 15000)
	viper.SetDefault("gateway.min_timeout_ms", 1000)
	viper.SetDefault("gateway.max_timeout_ms", 60000)

	// History defaults
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.path", "./data/query_history.db")

	// Server defaults
	viper.SetDefault("server.port", 8081)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.enable_metrics", true)
	viper.SetDefault("server.enable_health", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.ConnectionString == "" {
		return fmt.Errorf("database connection string is required (set DATABASE_URL)")
	}
	if c.Database.MaxConnections <= 0 {
		return fmt.Errorf("database max connections must be positive")
	}
	if c.Gateway.MaxLimit <= 0 {
		return fmt.Errorf("gateway max limit must be positive")
	}
	if c.Gateway.MinTimeoutMs <= 0 || c.Gateway.MaxTimeoutMs < c.Gateway.MinTimeoutMs {
		return fmt.Errorf("gateway timeout bounds are invalid")
	}
	return nil
}
