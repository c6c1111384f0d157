package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cybooks/catalog"
)

// isolate points HOME at a temp dir and clears overrides so the developer's
// own config never leaks into a test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("LIBRARY_CONFIG", "")
	for _, key := range []string{
		"LIBRARY_DATABASE_PATH", "LIBRARY_CATALOG_TIMEOUT", "LIBRARY_CATALOG_REQUESTS_PER_SECOND",
		"LIBRARY_LOG_LEVEL", "LIBRARY_LOG_FORMAT", "LIBRARY_METRICS_ADDR",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "library.db", cfg.Database.Path)
	assert.Equal(t, catalog.DefaultBaseURL, cfg.Catalog.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, catalog.DefaultMaxBodySize, cfg.Catalog.MaxBodyBytes)
	assert.Equal(t, 2.0, cfg.Catalog.RequestsPerSecond)
	assert.Equal(t, 2, cfg.Catalog.Burst)
	assert.Equal(t, catalog.DefaultPageSize, cfg.Catalog.PageSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Metrics.Addr)

	assert.Equal(t, Default(), cfg)
}

func TestLoad_DefaultPathFile(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".config", "cybooks", "config.yml"), `
database:
  path: ~/books/library.db
catalog:
  timeout: 3s
  page_size: 50
log:
  format: text
`)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "books", "library.db"), cfg.Database.Path)
	assert.Equal(t, 3*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, 50, cfg.Catalog.PageSize)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 2, cfg.Catalog.Burst)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yml")
	writeFile(t, path, "log:\n  level: debug\nmetrics:\n  addr: 127.0.0.1:9000\n")

	t.Setenv("LIBRARY_CONFIG", path)
	t.Setenv("LIBRARY_LOG_LEVEL", "error")
	t.Setenv("LIBRARY_CATALOG_REQUESTS_PER_SECOND", "0.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, 0.5, cfg.Catalog.RequestsPerSecond)
	assert.Equal(t, "127.0.0.1:9000", cfg.Metrics.Addr)
}

func TestLoad_ExplicitPathWinsOverEnv(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	fromEnv := filepath.Join(dir, "env.yml")
	fromFlag := filepath.Join(dir, "flag.yml")
	writeFile(t, fromEnv, "database:\n  path: env.db\n")
	writeFile(t, fromFlag, "database:\n  path: flag.db\n")
	t.Setenv("LIBRARY_CONFIG", fromEnv)

	cfg, err := Load(fromFlag)
	require.NoError(t, err)
	assert.Equal(t, "flag.db", cfg.Database.Path)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero rate", "catalog:\n  requests_per_second: 0\n"},
		{"negative burst", "catalog:\n  burst: -1\n"},
		{"zero page size", "catalog:\n  page_size: 0\n"},
		{"zero timeout", "catalog:\n  timeout: 0s\n"},
		{"relative base url", "catalog:\n  base_url: /SRU\n"},
		{"unknown level", "log:\n  level: loud\n"},
		{"unknown format", "log:\n  format: xml\n"},
		{"empty db path", "database:\n  path: \"\"\n"},
		{"not yaml", "catalog: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			path := filepath.Join(t.TempDir(), "config.yml")
			writeFile(t, path, tt.content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSave_ThenLoad(t *testing.T) {
	isolate(t)
	cfg := Default()
	cfg.Database.Path = "/var/lib/cybooks/library.db"
	cfg.Catalog.Timeout = 4 * time.Second
	cfg.Metrics.Addr = ":9100"

	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	require.NoError(t, Save(cfg, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "timeout: 4s")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
