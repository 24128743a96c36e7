package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadSettings_File(t *testing.T) {
	path := writeSettings(t, `
rpc:
  host: node.internal
  timeout: 5s
  requestsPerSecond: 20
clients:
  erigon:
    scheme: https
    host: erigon.internal
logging:
  level: debug
archive:
  driver: sqlite
  dsn: file:matches.db
`)

	s, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "http", s.RPC.Scheme)
	assert.Equal(t, "node.internal", s.RPC.Host)
	assert.Equal(t, 5*time.Second, s.RPC.Timeout)
	assert.Equal(t, 3, s.RPC.MaxAttempts)
	assert.InDelta(t, 20, s.RPC.RequestsPerSecond, 0.001)
	assert.Equal(t, "debug", s.Logging.Level)
	assert.Equal(t, "sqlite", s.Archive.Driver)
	assert.Equal(t, "matches", s.Archive.Table)

	assert.Equal(t, ClientSettings{Scheme: "https", Host: "erigon.internal"}, s.Client("erigon"))
	assert.Equal(t, ClientSettings{Scheme: "http", Host: "node.internal"}, s.Client("geth"))
}

func TestLoadSettings_EnvOverrides(t *testing.T) {
	path := writeSettings(t, "rpc:\n  host: from-file\n")
	t.Setenv("EXCAVATOR_RPC_HOST", "from-env")
	t.Setenv("EXCAVATOR_RPC_MAX_ATTEMPTS", "7")
	t.Setenv("EXCAVATOR_ARCHIVE_DSN", "root@tcp(db:3306)/excavator")

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", s.RPC.Host)
	assert.Equal(t, 7, s.RPC.MaxAttempts)
	assert.Equal(t, "root@tcp(db:3306)/excavator", s.Archive.DSN)
}

func TestLoadSettings_DefaultPathMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	s, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings().RPC, s.RPC)
	assert.NotNil(t, s.Clients)
}

func TestLoadSettings_ExplicitPathMissing(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoadSettings_Malformed(t *testing.T) {
	path := writeSettings(t, "rpc: [not, a, map")
	_, err := LoadSettings(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}
