package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "auth:\n  client-id: abc\n")

	cfg, _, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "abc", cfg.Auth.ClientID)
	require.Equal(t, "https://login.microsoftonline.com/common/oauth2/v2.0", cfg.Auth.Authority)
	require.Contains(t, cfg.Auth.Scopes, "offline_access")
	require.Equal(t, "storage/database/noted.sqlite3", cfg.Database.Path)
	require.Equal(t, "*/5 * * * *", cfg.Sync.Schedule)
	require.Equal(t, float64(4), cfg.Remote.RatePerSecond)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
auth:
  client-id: abc
  authority: https://idp.example.com/oauth2
remote:
  request-timeout: 5s
  rate-per-second: 1
sync:
  run-timeout: 90s
  skew-tolerance: 3s
`)

	cfg, _, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "https://idp.example.com/oauth2", cfg.Auth.Authority)
	require.Equal(t, 5*time.Second, cfg.GetRequestTimeout())
	require.Equal(t, 90*time.Second, cfg.GetRunTimeout())
	require.Equal(t, 3*time.Second, cfg.GetSkewTolerance())
}

func TestLoadConfigRejectsBadAuthority(t *testing.T) {
	path := writeConfig(t, "auth:\n  client-id: abc\n  authority: not-a-url\n")

	_, _, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
