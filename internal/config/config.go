package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Survey    SurveyConfig    `yaml:"survey" mapstructure:"survey"`
	Postcodes PostcodesConfig `yaml:"postcodes" mapstructure:"postcodes"`
	S3        S3Config        `yaml:"s3" mapstructure:"s3"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SurveyConfig configures how survey workbooks are read.
type SurveyConfig struct {
	PremisesSheet string `yaml:"premises_sheet" mapstructure:"premises_sheet"`
	RoomsSheet    string `yaml:"rooms_sheet" mapstructure:"rooms_sheet"`
	ServiceScope  string `yaml:"service_scope" mapstructure:"service_scope"`
	TaxonomyPath  string `yaml:"taxonomy_path" mapstructure:"taxonomy_path"`
}

// PostcodesConfig configures the postcode geocoding client.
type PostcodesConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries     int     `yaml:"retries" mapstructure:"retries"`
}

// S3Config configures workbook downloads from s3:// sources.
type S3Config struct {
	Region    string `yaml:"region" mapstructure:"region"`
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	PathStyle bool   `yaml:"path_style" mapstructure:"path_style"`
}

// BatchConfig configures directory imports.
type BatchConfig struct {
	MaxConcurrentImports int `yaml:"max_concurrent_imports" mapstructure:"max_concurrent_imports"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
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
	v.SetEnvPrefix("SITESURVEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("survey.premises_sheet", "Sheet2")
	v.SetDefault("survey.rooms_sheet", "Sheet3")
	v.SetDefault("survey.service_scope", "approved-premises")
	v.SetDefault("survey.taxonomy_path", "")
	v.SetDefault("postcodes.base_url", "https://api.postcodes.io")
	v.SetDefault("postcodes.rate_limit", 5)
	v.SetDefault("postcodes.timeout_secs", 10)
	v.SetDefault("postcodes.retries", 3)
	v.SetDefault("s3.region", "eu-west-2")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.path_style", false)
	v.SetDefault("batch.max_concurrent_imports", 4)
	v.SetDefault("metrics.textfile", "")
}

// Validate checks the settings a command mode needs: "import", "migrate",
// "seed" or "template".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not postgres or sqlite", c.Store.Driver))
	}

	switch mode {
	case "import":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Survey.PremisesSheet == "" || c.Survey.RoomsSheet == "" {
			errs = append(errs, "survey.premises_sheet and survey.rooms_sheet are required")
		}
		if c.Postcodes.BaseURL == "" {
			errs = append(errs, "postcodes.base_url is required")
		}
		if c.Batch.MaxConcurrentImports < 1 || c.Batch.MaxConcurrentImports > 32 {
			errs = append(errs, "batch.max_concurrent_imports must be between 1 and 32")
		}
	case "migrate", "seed":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "template":
		if c.Survey.PremisesSheet == "" || c.Survey.RoomsSheet == "" {
			errs = append(errs, "survey.premises_sheet and survey.rooms_sheet are required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
