package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Currencies CurrenciesConfig `yaml:"currencies"`
	Cache      CacheConfig      `yaml:"cache"`
	Audit      AuditConfig      `yaml:"audit"`
	Log        LogConfig        `yaml:"log"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains backing store settings. Type selects the driver:
// "postgres" uses a networked PostgreSQL server, "sqlite" a local file.
type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	Path     string `yaml:"path"` // sqlite only
	PoolSize int    `yaml:"pool_size"`
}

// CurrenciesConfig points at the per-currency definition files
type CurrenciesConfig struct {
	Dir     string `yaml:"dir"`
	Primary string `yaml:"primary"`
}

// CacheConfig contains in-memory cache settings
type CacheConfig struct {
	LeaderboardTTLSeconds int `yaml:"leaderboard_ttl_seconds"`
}

// AuditConfig contains transaction audit log settings
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	CirculationSnapshot string `yaml:"circulation_snapshot"`
	LeaderboardWarm     string `yaml:"leaderboard_warm"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables if present
	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_TYPE"); val != "" {
		c.Database.Type = val
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}
	if val := os.Getenv("DB_PATH"); val != "" {
		c.Database.Path = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Currencies
	if val := os.Getenv("CURRENCIES_DIR"); val != "" {
		c.Currencies.Dir = val
	}
	if val := os.Getenv("PRIMARY_CURRENCY"); val != "" {
		c.Currencies.Primary = val
	}

	// Audit
	if val := os.Getenv("AUDIT_DIR"); val != "" {
		c.Audit.Dir = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}
}

// Validate checks if the configuration is valid and applies defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Database validation
	switch c.Database.Type {
	case "", "sqlite":
		c.Database.Type = "sqlite"
		if c.Database.Path == "" {
			c.Database.Path = "data/creamcurrency.db"
		}
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Database.PoolSize <= 0 {
		c.Database.PoolSize = 10
	}

	// Currency defaults
	if c.Currencies.Dir == "" {
		c.Currencies.Dir = "currencies"
	}
	if c.Currencies.Primary == "" {
		c.Currencies.Primary = "money"
	}

	// Cache defaults
	if c.Cache.LeaderboardTTLSeconds <= 0 {
		c.Cache.LeaderboardTTLSeconds = 60
	}

	// Audit defaults
	if c.Audit.Dir == "" {
		c.Audit.Dir = "logs"
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	// Scheduler defaults
	if c.Scheduler.CirculationSnapshot == "" {
		c.Scheduler.CirculationSnapshot = "0 0 * * * *" // hourly
	}
	if c.Scheduler.LeaderboardWarm == "" {
		c.Scheduler.LeaderboardWarm = "0 */5 * * * *" // every 5 minutes
	}

	return nil
}

// DriverName returns the database/sql driver name for the configured store
func (c *Config) DriverName() string {
	if c.Database.Type == "postgres" {
		return "postgres"
	}
	return "sqlite"
}

// GetDatabaseConnectionString returns the driver-specific connection string
func (c *Config) GetDatabaseConnectionString() string {
	if c.Database.Type == "postgres" {
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			c.Database.User,
			c.Database.Password,
			c.Database.Host,
			c.Database.Port,
			c.Database.Database,
			c.Database.SSLMode,
		)
	}
	return c.Database.Path
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
