// Package config loads service configuration from config.yaml and
// SIEM_-prefixed environment variables, with sane defaults for local use.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DataPaths holds data directory and file path configuration.
type DataPaths struct {
	// DataDir is the base data directory (SIEM_DATA_DIR, default: ./data)
	DataDir string `mapstructure:"data_dir"`
	// SQLitePath is the SQLite database file path (SIEM_SQLITE_PATH, default: ${DataDir}/siem.db)
	SQLitePath string `mapstructure:"sqlite_path"`
	// RulesDir is the directory scanned by the rule importer (SIEM_RULES_DIR, default: ${DataDir}/rules)
	RulesDir string `mapstructure:"rules_dir"`
}

// Config holds all configuration for the SIEM backend.
type Config struct {
	DataPaths DataPaths `mapstructure:"data_paths"`

	API struct {
		Host           string   `mapstructure:"host"`
		Port           int      `mapstructure:"port"`
		TLS            bool     `mapstructure:"tls"`
		CertFile       string   `mapstructure:"cert_file"`
		KeyFile        string   `mapstructure:"key_file"`
		AllowedOrigins []string `mapstructure:"allowed_origins"`
		RateLimit      struct {
			RequestsPerSecond int `mapstructure:"requests_per_second"`
			Burst             int `mapstructure:"burst"`
		} `mapstructure:"rate_limit"`
	} `mapstructure:"api"`

	Search struct {
		BatchSize  int `mapstructure:"batch_size"`
		MaxResults int `mapstructure:"max_results"`
	} `mapstructure:"search"`

	CSRF struct {
		TokenTTL time.Duration `mapstructure:"token_ttl"`
	} `mapstructure:"csrf"`

	Retention struct {
		Logs     int           `mapstructure:"logs"` // days, 0 disables purging
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"retention"`
}

func setDefaults() {
	viper.SetDefault("data_paths.data_dir", "./data")
	viper.SetDefault("data_paths.sqlite_path", "") // Empty = derive from data_dir
	viper.SetDefault("data_paths.rules_dir", "")   // Empty = derive from data_dir

	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 4200)
	viper.SetDefault("api.tls", false)
	viper.SetDefault("api.cert_file", "server.crt")
	viper.SetDefault("api.key_file", "server.key")
	viper.SetDefault("api.allowed_origins", []string{"http://localhost:8080"})
	viper.SetDefault("api.rate_limit.requests_per_second", 100)
	viper.SetDefault("api.rate_limit.burst", 200)

	viper.SetDefault("search.batch_size", 1000)
	viper.SetDefault("search.max_results", 10000)

	viper.SetDefault("csrf.token_ttl", 20*time.Minute)

	viper.SetDefault("retention.logs", 30)
	viper.SetDefault("retention.interval", 1*time.Hour)
}

func loadFromEnv() {
	viper.SetEnvPrefix("SIEM")
	viper.AutomaticEnv()

	_ = viper.BindEnv("data_paths.data_dir", "SIEM_DATA_DIR")
	_ = viper.BindEnv("data_paths.sqlite_path", "SIEM_SQLITE_PATH")
	_ = viper.BindEnv("data_paths.rules_dir", "SIEM_RULES_DIR")
	_ = viper.BindEnv("api.port", "SIEM_API_PORT")
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, will use defaults and env vars
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	config.resolveDataPaths()

	return &config, nil
}

// resolveDataPaths derives unset paths from DataDir.
func (c *Config) resolveDataPaths() {
	dataDir := c.DataPaths.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}

	if c.DataPaths.SQLitePath == "" {
		c.DataPaths.SQLitePath = filepath.Join(dataDir, "siem.db")
	} else if !filepath.IsAbs(c.DataPaths.SQLitePath) {
		c.DataPaths.SQLitePath = filepath.Clean(c.DataPaths.SQLitePath)
	}

	if c.DataPaths.RulesDir == "" {
		c.DataPaths.RulesDir = filepath.Join(dataDir, "rules")
	} else if !filepath.IsAbs(c.DataPaths.RulesDir) {
		c.DataPaths.RulesDir = filepath.Clean(c.DataPaths.RulesDir)
	}

	c.DataPaths.DataDir = dataDir
}

// GetDataDir returns the resolved base data directory.
func (c *Config) GetDataDir() string {
	if c.DataPaths.DataDir == "" {
		return "./data"
	}
	return c.DataPaths.DataDir
}

// GetSQLitePath returns the resolved SQLite database path.
func (c *Config) GetSQLitePath() string {
	if c.DataPaths.SQLitePath == "" {
		return filepath.Join(c.GetDataDir(), "siem.db")
	}
	return c.DataPaths.SQLitePath
}

// GetRulesDir returns the resolved rule import directory.
func (c *Config) GetRulesDir() string {
	if c.DataPaths.RulesDir == "" {
		return filepath.Join(c.GetDataDir(), "rules")
	}
	return c.DataPaths.RulesDir
}

// RetentionCutoffAge returns the log retention period as a duration, or 0
// when retention is disabled.
func (c *Config) RetentionCutoffAge() time.Duration {
	if c.Retention.Logs <= 0 {
		return 0
	}
	return time.Duration(c.Retention.Logs) * 24 * time.Hour
}

// validateConfig validates the configuration for correctness.
func validateConfig(config *Config) error {
	if config.API.Port < 1 || config.API.Port > 65535 {
		return fmt.Errorf("invalid API port: %d", config.API.Port)
	}

	if config.API.TLS {
		if config.API.CertFile == "" || config.API.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert_file or key_file not set")
		}
	}

	for _, origin := range config.API.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid allowed origin %q", origin)
		}
	}

	if config.API.RateLimit.RequestsPerSecond < 0 || config.API.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values must be non-negative")
	}

	if config.Search.BatchSize < 0 || config.Search.MaxResults < 0 {
		return fmt.Errorf("search limits must be non-negative")
	}

	if config.CSRF.TokenTTL < 0 {
		return fmt.Errorf("CSRF token TTL must be non-negative")
	}

	return nil
}
