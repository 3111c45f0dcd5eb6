package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	require.Equal(t, defaultListen, cfg.Listen)
	require.Equal(t, LogLevelInfo, cfg.LogLevel)
	require.Equal(t, 45*time.Second, cfg.Browser.NavTimeout())
	require.Equal(t, 15*time.Minute, cfg.Session.ValidateInterval())
	require.Equal(t, 300*time.Second, cfg.Session.CaptchaWait())
	require.Equal(t, defaultMaxPages, cfg.Search.MaxPages)
	require.Equal(t, defaultConcurrentPages, cfg.Search.ConcurrentPages)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	content := `
listen: ":9000"
redis_url: "redis://localhost:6379/0"
log_level: debug
browser:
  headless: true
  nav_timeout_sec: 30
search:
  max_pages: 8
  concurrent_pages: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Listen)
	require.Equal(t, LogLevelDebug, cfg.LogLevel)
	require.True(t, cfg.Browser.Headless)
	require.Equal(t, 30*time.Second, cfg.Browser.NavTimeout())
	require.Equal(t, 8, cfg.Search.MaxPages)
	// Untouched sections still get defaults.
	require.Equal(t, defaultSessionFile, cfg.Session.File)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}
