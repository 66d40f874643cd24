package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "sitemaps", cfg.Crawler.SitemapDir)
	require.Equal(t, "sitemap-list-%d.xml", cfg.Crawler.SitemapPattern)
	require.Equal(t, 1, cfg.Crawler.SitemapStart)
	require.False(t, cfg.Crawler.AcceptDegradedIDs)
	require.Equal(t, 20, cfg.Search.DefaultLimit)
	require.Equal(t, 50, cfg.Search.MaxLimit)
	require.InEpsilon(t, 4.99, cfg.Payments.Amount, 1e-9)
	require.Equal(t, time.Second, cfg.CrawlDelay())
	require.Equal(t, 15*time.Second, cfg.FetchTimeout())
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  port: 9090
  timeout_seconds: 30
auth:
  enabled: true
  api_key: secret
db:
  dsn: postgres://localhost/catalog
  max_conns: 4
logging:
  development: false
  file: /var/log/catalog.log
crawler:
  sitemap_dir: /data/sitemaps
  sitemap_start: 2
  sitemap_end: 6
  user_agent: catalog-bot
  delay_seconds: 3
  accept_degraded_ids: true
search:
  default_limit: 10
  max_limit: 40
payments:
  base_url: https://pay.example
  amount: 2.49
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, "secret", cfg.Auth.APIKey)
	require.Equal(t, "postgres://localhost/catalog", cfg.DB.DSN)
	require.False(t, cfg.Logging.Development)
	require.Equal(t, "/var/log/catalog.log", cfg.Logging.File)
	require.Equal(t, "/data/sitemaps", cfg.Crawler.SitemapDir)
	require.Equal(t, 2, cfg.Crawler.SitemapStart)
	require.Equal(t, 6, cfg.Crawler.SitemapEnd)
	require.True(t, cfg.Crawler.AcceptDegradedIDs)
	require.Equal(t, 3*time.Second, cfg.CrawlDelay())
	require.Equal(t, 10, cfg.Search.DefaultLimit)
	require.Equal(t, "https://pay.example", cfg.Payments.BaseURL)
	require.InEpsilon(t, 2.49, cfg.Payments.Amount, 1e-9)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		yaml string
	}{
		{"auth without key", "auth:\n  enabled: true\n"},
		{"inverted sitemap range", "crawler:\n  sitemap_start: 5\n  sitemap_end: 2\n"},
		{"zero default limit", "search:\n  default_limit: 0\n"},
		{"max below default limit", "search:\n  default_limit: 30\n  max_limit: 10\n"},
		{"non-positive amount", "payments:\n  amount: 0\n"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, tc.yaml))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
