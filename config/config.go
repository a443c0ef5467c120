package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Rules    RulesConfig    `mapstructure:"rules"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Matching MatchingConfig `mapstructure:"matching"`
	Store    StoreConfig    `mapstructure:"store"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// CatalogConfig holds the location and layout of the catalog shard files
type CatalogConfig struct {
	Dir          string `mapstructure:"dir"`
	ShardCount   int    `mapstructure:"shard_count"`
	ShardPattern string `mapstructure:"shard_pattern"`
}

// RulesConfig selects the classification rule table. Version 0 means the latest one in Dir.
type RulesConfig struct {
	Dir     string `mapstructure:"dir"`
	Version int    `mapstructure:"version"`
}

// PricingConfig holds pricing sheet settings
type PricingConfig struct {
	Path    string `mapstructure:"path"`
	Sheet   string `mapstructure:"sheet"`
	Charset string `mapstructure:"charset"` // "utf-8" or "windows-1252"
}

// MatchingConfig holds price matching settings
type MatchingConfig struct {
	Threshold    float64 `mapstructure:"threshold"`
	ReviewMargin float64 `mapstructure:"review_margin"`
	Debug        bool    `mapstructure:"debug"`
}

// StoreConfig holds document store configuration
type StoreConfig struct {
	Type             string            `mapstructure:"type"` // "firestore", "sqlite" or "memory"
	ProjectID        string            `mapstructure:"project_id"`
	CredentialsFile  string            `mapstructure:"credentials_file"`
	SQLitePath       string            `mapstructure:"sqlite_path"`
	BatchSize        int               `mapstructure:"batch_size"`
	BatchesPerSecond float64           `mapstructure:"batches_per_second"`
	Timeout          time.Duration     `mapstructure:"timeout"`
	Collections      CollectionsConfig `mapstructure:"collections"`
}

// CollectionsConfig names the remote collections
type CollectionsConfig struct {
	Products      string `mapstructure:"products"`
	Categories    string `mapstructure:"categories"`
	Subcategories string `mapstructure:"subcategories"`
}

// ServerConfig holds preview server configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"` // "json" or "console"
	Output   string `mapstructure:"output"` // "stdout", "stderr" or "file"
	FilePath string `mapstructure:"file_path"`
}

// MaxBatchSize is the largest number of writes the remote store accepts in one batch
const MaxBatchSize = 100

// Load loads configuration from environment variables and config files.
// An explicit configFile must exist; otherwise config.yaml is searched for and optional.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/catalogsync/")
	}

	// CATALOGSYNC_STORE_PROJECT_ID -> store.project_id
	v.SetEnvPrefix("CATALOGSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values. Every key needs one so env overrides resolve.
func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.dir", ".")
	v.SetDefault("catalog.shard_count", 5)
	v.SetDefault("catalog.shard_pattern", "firebase-products-part%d.json")

	v.SetDefault("rules.dir", "./rules")
	v.SetDefault("rules.version", 0)

	v.SetDefault("pricing.path", "")
	v.SetDefault("pricing.sheet", "")
	v.SetDefault("pricing.charset", "utf-8")

	v.SetDefault("matching.threshold", 0.6)
	v.SetDefault("matching.review_margin", 0.0)
	v.SetDefault("matching.debug", false)

	v.SetDefault("store.type", "memory")
	v.SetDefault("store.project_id", "")
	v.SetDefault("store.credentials_file", "")
	v.SetDefault("store.sqlite_path", "catalog.db")
	v.SetDefault("store.batch_size", MaxBatchSize)
	v.SetDefault("store.batches_per_second", 5.0)
	v.SetDefault("store.timeout", "2m")
	v.SetDefault("store.collections.products", "product_details")
	v.SetDefault("store.collections.categories", "categories")
	v.SetDefault("store.collections.subcategories", "subcategories")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.max_upload_bytes", 10<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.file_path", "")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Catalog.ShardCount < 1 {
		return fmt.Errorf("catalog shard count must be at least 1, got: %d", config.Catalog.ShardCount)
	}
	if strings.Count(config.Catalog.ShardPattern, "%d") != 1 {
		return fmt.Errorf("catalog shard pattern must contain exactly one %%d, got: %s", config.Catalog.ShardPattern)
	}

	if config.Matching.Threshold <= 0 || config.Matching.Threshold >= 1 {
		return fmt.Errorf("matching threshold must be between 0 and 1, got: %v", config.Matching.Threshold)
	}
	if config.Matching.ReviewMargin < 0 {
		return fmt.Errorf("matching review margin must not be negative, got: %v", config.Matching.ReviewMargin)
	}

	switch config.Pricing.Charset {
	case "utf-8", "windows-1252":
	default:
		return fmt.Errorf("pricing charset must be 'utf-8' or 'windows-1252', got: %s", config.Pricing.Charset)
	}

	switch config.Store.Type {
	case "memory":
	case "sqlite":
		if config.Store.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required when store type is 'sqlite'")
		}
	case "firestore":
		if config.Store.ProjectID == "" {
			return fmt.Errorf("project id is required when store type is 'firestore' (set CATALOGSYNC_STORE_PROJECT_ID)")
		}
		if config.Store.CredentialsFile == "" {
			return fmt.Errorf("credentials file is required when store type is 'firestore' (set CATALOGSYNC_STORE_CREDENTIALS_FILE)")
		}
	default:
		return fmt.Errorf("store type must be 'firestore', 'sqlite' or 'memory', got: %s", config.Store.Type)
	}

	if config.Store.BatchSize < 1 || config.Store.BatchSize > MaxBatchSize {
		return fmt.Errorf("store batch size must be between 1 and %d, got: %d", MaxBatchSize, config.Store.BatchSize)
	}
	if config.Store.BatchesPerSecond < 0 {
		return fmt.Errorf("store batches per second must not be negative, got: %v", config.Store.BatchesPerSecond)
	}

	switch config.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be 'json' or 'console', got: %s", config.Log.Format)
	}
	switch config.Log.Output {
	case "stdout", "stderr":
	case "file":
		if config.Log.FilePath == "" {
			return fmt.Errorf("log file path is required when log output is 'file'")
		}
	default:
		return fmt.Errorf("log output must be 'stdout', 'stderr' or 'file', got: %s", config.Log.Output)
	}

	return nil
}
