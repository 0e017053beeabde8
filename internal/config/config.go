package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	RateLimit RateLimitConfig `yaml:"ratelimit" mapstructure:"ratelimit"`
	Snapshot  SnapshotConfig  `yaml:"snapshot" mapstructure:"snapshot"`
	Lookup    LookupConfig    `yaml:"lookup" mapstructure:"lookup"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// FetchConfig configures the HTTP client used for source fetches.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RateLimitConfig selects the rate limiting strategy. When Endpoint is
// set, token consumption is coordinated through that service and falls
// back to local limiting on transport errors.
type RateLimitConfig struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// SnapshotConfig configures raw payload archiving. Driver is "s3",
// "fs", or empty to disable snapshots.
type SnapshotConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"`
	Bucket   string `yaml:"bucket" mapstructure:"bucket"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Dir      string `yaml:"dir" mapstructure:"dir"`
}

// LookupConfig configures the local lookup cache used for industry
// code enrichment.
type LookupConfig struct {
	CachePath string `yaml:"cache_path" mapstructure:"cache_path"`
}

// SourcesConfig configures the source registry overlay.
type SourcesConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("fetch.user_agent", "gov-programs-ingest/2.0 (+https://govatlas.org/catalog)")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
