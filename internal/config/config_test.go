package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := FromViper(New())

	assert.Equal(t, "sqlite", cfg.Backend.Driver)
	assert.Equal(t, "translations.db", cfg.Backend.DSN)
	assert.Equal(t, 8, cfg.Backend.ReadPoolSize)
	assert.Equal(t, 4, cfg.Backend.WritePoolSize)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, time.Second, cfg.Retry.Delay)
	assert.Equal(t, "gpt-4o-mini", cfg.Provider.Model)
	assert.Equal(t, 2, cfg.Provider.Attempts)
	assert.Equal(t, []string{"en", "ja", "ko", "my", "th", "tr", "zh-TW"}, cfg.Translate.TargetLangs)
	assert.Equal(t, 2*time.Minute, cfg.Translate.Timeout)
	require.NoError(t, cfg.Validate())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("TLCACHE_BACKEND_DRIVER", "postgres")
	t.Setenv("TLCACHE_BACKEND_WRITE_DSN", "postgres://localhost/cache")
	t.Setenv("TLCACHE_RETRY_DELAY", "250ms")
	t.Setenv("TLCACHE_TRANSLATE_TARGET_LANGS", "ja,en")
	t.Setenv("TLCACHE_TRANSLATE_TIMEOUT", "30s")

	cfg := FromViper(New())

	assert.Equal(t, "postgres", cfg.Backend.Driver)
	assert.Equal(t, "postgres://localhost/cache", cfg.Backend.WriteDSN)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.Delay)
	assert.Equal(t, []string{"en", "ja"}, cfg.Translate.TargetLangs)
	assert.Equal(t, 30*time.Second, cfg.Translate.Timeout)
	require.NoError(t, cfg.Validate())
}

func TestOpenAIKeyFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	assert.Equal(t, "sk-test", FromViper(New()).Provider.APIKey)

	t.Setenv("TLCACHE_PROVIDER_API_KEY", "sk-own")
	assert.Equal(t, "sk-own", FromViper(New()).Provider.APIKey)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tlcache.yaml")
	content := `
backend:
  driver: memory
retry:
  attempts: 5
translate:
  target_langs: [ko, en]
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Backend.Driver)
	assert.Equal(t, 5, cfg.Retry.Attempts)
	assert.Equal(t, []string{"en", "ko"}, cfg.Translate.TargetLangs)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Backend.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Backend.Driver = "postgres"; c.Backend.DSN = "" }},
		{"sqlite without path", func(c *Config) { c.Backend.DSN = "" }},
		{"zero attempts", func(c *Config) { c.Retry.Attempts = 0 }},
		{"negative delay", func(c *Config) { c.Retry.Delay = -time.Second }},
		{"zero provider attempts", func(c *Config) { c.Provider.Attempts = 0 }},
		{"no target languages", func(c *Config) { c.Translate.TargetLangs = nil }},
		{"negative translate timeout", func(c *Config) { c.Translate.Timeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FromViper(New())
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
