package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadNameserver_Defaults(t *testing.T) {
	path := writeYAML(t, "zones:\n  - /etc/rr-dns/zones/example.com.zone\n")
	cfg, err := LoadNameserver(path)
	require.NoError(t, err)
	assert.Equal(t, ":53", cfg.UDPAddr)
	assert.Equal(t, ":53", cfg.TCPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, 16, cfg.Threads)
	assert.Equal(t, []string{"/etc/rr-dns/zones/example.com.zone"}, cfg.Zones)
}

func TestLoadNameserver_MissingZonesFails(t *testing.T) {
	path := writeYAML(t, "env: prod\n")
	_, err := LoadNameserver(path)
	assert.Error(t, err)
}

func TestLoadNameserver_EnvOverride(t *testing.T) {
	path := writeYAML(t, "zones:\n  - /zones/example.com.zone\n")
	t.Setenv("RRNS_LOG_LEVEL", "debug")
	t.Setenv("RRNS_THREADS", "4")
	cfg, err := LoadNameserver(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 4, cfg.Threads)
}

func TestLoadResolver_Defaults(t *testing.T) {
	path := writeYAML(t, "root_hints:\n  - name: a.root-servers.net.\n    addr: 198.41.0.4\n")
	cfg, err := LoadResolver(path)
	require.NoError(t, err)
	assert.Equal(t, 10000, cfg.Cache.MaxEntries)
	assert.Equal(t, 16, cfg.MaxAttempts)
	assert.Equal(t, 3000, cfg.QueryTimeoutMS)
	assert.Equal(t, 20000, cfg.TotalTimeoutMS)
	require.Len(t, cfg.RootHints, 1)
	assert.Equal(t, "a.root-servers.net.", cfg.RootHints[0].Name)
}

func TestLoadResolver_MissingRootHintsFails(t *testing.T) {
	path := writeYAML(t, "env: prod\n")
	_, err := LoadResolver(path)
	assert.Error(t, err)
}

func TestLoadResolver_InvalidEnvFails(t *testing.T) {
	path := writeYAML(t, "root_hints:\n  - name: a.root-servers.net.\n    addr: 198.41.0.4\nenv: staging\n")
	_, err := LoadResolver(path)
	assert.Error(t, err)
}
