package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

type Config struct {
	Addr             string        `mapstructure:"addr"`
	LogDir           string        `mapstructure:"log_dir"`
	DatabaseURL      string        `mapstructure:"database_url"` // empty = in-memory store
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout"`
	ProbeConcurrency int           `mapstructure:"probe_concurrency"`
	RetentionDays    int           `mapstructure:"retention_days"`
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	PublicAPIKeys    []string      `mapstructure:"public_api_keys"`
	AdminAPIKeys     []string      `mapstructure:"admin_api_keys"`
	RateLimitPerMin  int           `mapstructure:"rate_limit_per_min"`
}

// Load reads config.yaml (working dir or ./config) merged over environment
// variables (ADDR, DATABASE_URL, ...) and defaults, then validates.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("addr", "127.0.0.1:8080")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("database_url", "")
	v.SetDefault("probe_timeout", "3s")
	v.SetDefault("probe_concurrency", 50)
	v.SetDefault("retention_days", 31)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("rate_limit_per_min", 0) // disabled

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// no file: defaults + env only
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Addr, validation.Required, validation.By(validateHostPort)),
		validation.Field(&c.LogDir, validation.Required),
		validation.Field(&c.ProbeTimeout, validation.Required, validation.Min(100*time.Millisecond)),
		validation.Field(&c.ProbeConcurrency, validation.Required, validation.Min(1), validation.Max(10000)),
		validation.Field(&c.RetentionDays, validation.Required, validation.Min(1)),
		validation.Field(&c.RateLimitPerMin, validation.Min(0)),
	)
}

func validateHostPort(value interface{}) error {
	s, _ := value.(string)
	if _, _, err := net.SplitHostPort(s); err != nil {
		return fmt.Errorf("must be host:port: %w", err)
	}
	return nil
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
