// Package config loads tlcache settings from a YAML file, TLCACHE_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ZaguanLabs/tlcache"
)

// EnvPrefix prefixes every environment variable, e.g. TLCACHE_BACKEND_DRIVER.
const EnvPrefix = "TLCACHE"

// Config is the full process configuration.
type Config struct {
	Backend   BackendConfig
	Retry     RetryConfig
	Provider  ProviderConfig
	Redis     RedisConfig
	Translate TranslateConfig
	Log       LogConfig
}

// BackendConfig selects and reaches the durable cache.
type BackendConfig struct {
	Driver        string // "sqlite", "postgres" or "memory"
	DSN           string
	ReadDSN       string
	WriteDSN      string
	ReadPoolSize  int
	WritePoolSize int
}

// RetryConfig is the storage retry budget.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// ProviderConfig configures the external translator.
type ProviderConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	Attempts          int
	RequestsPerMinute int
}

// RedisConfig configures the optional hot tier. An empty URL disables it.
type RedisConfig struct {
	URL string
	TTL time.Duration
}

// TranslateConfig holds request defaults.
type TranslateConfig struct {
	TargetLangs []string
	Timeout     time.Duration // Budget of one provider call, retries included; zero disables it
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
}

// New returns a viper instance with defaults and environment binding set.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("backend.driver", "sqlite")
	v.SetDefault("backend.dsn", "translations.db")
	v.SetDefault("backend.read_dsn", "")
	v.SetDefault("backend.write_dsn", "")
	v.SetDefault("backend.read_pool_size", 8)
	v.SetDefault("backend.write_pool_size", 4)
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", time.Second)
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.model", "gpt-4o-mini")
	v.SetDefault("provider.timeout", 60*time.Second)
	v.SetDefault("provider.attempts", 2)
	v.SetDefault("provider.requests_per_minute", 60)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.ttl", time.Duration(0))
	v.SetDefault("translate.target_langs", tlcache.DefaultTargetLangs)
	v.SetDefault("translate.timeout", 2*time.Minute)
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the config file (when path is non-empty, or a .tlcache.yaml is
// found in the home or working directory) into v and validates the result.
// Flags bound to v with BindPFlag take precedence over both.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".tlcache")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromViper builds a Config from v without validating it.
func FromViper(v *viper.Viper) *Config {
	apiKey := v.GetString("provider.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	return &Config{
		Backend: BackendConfig{
			Driver:        v.GetString("backend.driver"),
			DSN:           v.GetString("backend.dsn"),
			ReadDSN:       v.GetString("backend.read_dsn"),
			WriteDSN:      v.GetString("backend.write_dsn"),
			ReadPoolSize:  v.GetInt("backend.read_pool_size"),
			WritePoolSize: v.GetInt("backend.write_pool_size"),
		},
		Retry: RetryConfig{
			Attempts: v.GetInt("retry.attempts"),
			Delay:    v.GetDuration("retry.delay"),
		},
		Provider: ProviderConfig{
			APIKey:            apiKey,
			BaseURL:           v.GetString("provider.base_url"),
			Model:             v.GetString("provider.model"),
			Timeout:           v.GetDuration("provider.timeout"),
			Attempts:          v.GetInt("provider.attempts"),
			RequestsPerMinute: v.GetInt("provider.requests_per_minute"),
		},
		Redis: RedisConfig{
			URL: v.GetString("redis.url"),
			TTL: v.GetDuration("redis.ttl"),
		},
		Translate: TranslateConfig{
			TargetLangs: tlcache.TargetList(splitList(v.GetStringSlice("translate.target_langs"))),
			Timeout:     v.GetDuration("translate.timeout"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
	}
}

// splitList accepts both YAML lists and comma-separated environment values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.Split(v, ",")...)
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Backend.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Backend.DSN == "" && c.Backend.WriteDSN == "" {
			return fmt.Errorf("backend.dsn or backend.write_dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown backend.driver %q (want sqlite, postgres or memory)", c.Backend.Driver)
	}
	if c.Backend.Driver == "sqlite" && c.Backend.DSN == "" {
		return fmt.Errorf("backend.dsn is required for sqlite")
	}
	if c.Retry.Attempts <= 0 {
		return fmt.Errorf("retry.attempts must be positive, got %d", c.Retry.Attempts)
	}
	if c.Retry.Delay < 0 {
		return fmt.Errorf("retry.delay must not be negative, got %s", c.Retry.Delay)
	}
	if c.Provider.Attempts <= 0 {
		return fmt.Errorf("provider.attempts must be positive, got %d", c.Provider.Attempts)
	}
	if c.Provider.RequestsPerMinute < 0 {
		return fmt.Errorf("provider.requests_per_minute must not be negative")
	}
	if c.Translate.Timeout < 0 {
		return fmt.Errorf("translate.timeout must not be negative, got %s", c.Translate.Timeout)
	}
	if len(c.Translate.TargetLangs) == 0 {
		return fmt.Errorf("translate.target_langs must name at least one language")
	}
	return nil
}
