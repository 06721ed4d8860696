// Package config loads application configuration from file and environment
// and owns global logger setup.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/provider-verify/internal/registry"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Registry   RegistryConfig   `yaml:"registry" mapstructure:"registry"`
	Auth       AuthConfig       `yaml:"auth" mapstructure:"auth"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`

	// User is the caller identity for CLI invocations, where there is no
	// bearer token to resolve.
	User string `yaml:"user" mapstructure:"user"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RegistryConfig configures the upstream registry clients.
type RegistryConfig struct {
	USBaseURL   string `yaml:"us_base_url" mapstructure:"us_base_url"`
	INBaseURL   string `yaml:"in_base_url" mapstructure:"in_base_url"`
	INAPIKey    string `yaml:"in_api_key" mapstructure:"in_api_key"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AuthConfig configures bearer-token verification for the HTTP server.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	Issuer    string `yaml:"issuer" mapstructure:"issuer"`
}

// CacheConfig configures how long saved records satisfy a resolve before the
// registry is consulted again.
type CacheConfig struct {
	TTLHours int `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// TTL returns the cache TTL as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures background metric checks and alerting.
type MonitoringConfig struct {
	Enabled                bool    `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs      int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours    int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	LowScoreRateThreshold  float64 `yaml:"low_score_rate_threshold" mapstructure:"low_score_rate_threshold"`
	ReviewBacklogThreshold int     `yaml:"review_backlog_threshold" mapstructure:"review_backlog_threshold"`
	WebhookURL             string  `yaml:"webhook_url" mapstructure:"webhook_url"`
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
	v.SetEnvPrefix("PROVIDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "provider-verify.db")
	v.SetDefault("registry.us_base_url", registry.DefaultUSBaseURL)
	v.SetDefault("registry.in_base_url", registry.DefaultINBaseURL)
	v.SetDefault("registry.timeout_secs", 15)
	v.SetDefault("cache.ttl_hours", 168)
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.low_score_rate_threshold", 0.5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("user", "local")

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

// Validate checks that the configuration is usable for the given mode
// ("cli" or "serve"). It collects every problem rather than stopping at the
// first one.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "cli":
		if c.User == "" {
			problems = append(problems, "user is required for CLI operations")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Auth.JWTSecret == "" {
			problems = append(problems, "auth.jwt_secret is required for serve")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for postgres")
		}
	default:
		problems = append(problems, "store.driver must be sqlite, postgres, or memory")
	}

	if c.Cache.TTLHours < 0 {
		problems = append(problems, "cache.ttl_hours must be >= 0")
	}
	if t := c.Monitoring.LowScoreRateThreshold; t < 0 || t > 1 {
		problems = append(problems, "monitoring.low_score_rate_threshold must be between 0 and 1")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
