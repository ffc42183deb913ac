package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_MissingFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
	assert.Equal(t, "warn", cfg.Level())
	assert.Equal(t, 12*time.Hour, cfg.Lifetime())
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voltbill.yaml")
	want := &Config{
		DataDir:         "/var/lib/voltbill",
		BillsFile:       "bills.dat",
		Mirror:          Mirror{Driver: "postgres", DSN: "postgres://localhost/billing?sslmode=disable"},
		LogLevel:        "debug",
		SessionToken:    "tok",
		SessionLifetime: "30m",
		DefaultAccount:  Account{Username: "root", Password: "toor"},
	}
	require.NoError(t, SaveTo(path, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 30*time.Minute, got.Lifetime())
}

func TestLoadFrom_InvalidLifetime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voltbill.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session_lifetime: soon\n"), 0600))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestLoadFrom_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voltbill.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mirror: [unclosed\n"), 0600))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestPaths(t *testing.T) {
	cfg := &Config{DataDir: "/data", AccountsFile: "/etc/voltbill/users.dat"}

	p, err := cfg.AccountsPath()
	require.NoError(t, err)
	assert.Equal(t, "/etc/voltbill/users.dat", p)

	p, err = cfg.BillsPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "user_bills.dat"), p)

	p, err = cfg.StatePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "state.db"), p)
}

func TestPath_EnvOverride(t *testing.T) {
	t.Setenv(EnvPath, "/tmp/custom.yaml")
	p, err := Path()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.yaml", p)
}

func TestLoad_UsesEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voltbill.yaml")
	t.Setenv(EnvPath, path)

	require.NoError(t, Save(&Config{LogLevel: "info"}))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Level())
}
