package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLatestVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000001_create_runs.up.sql",
		"000001_create_runs.down.sql",
		"000003_add_index.up.sql",
		"000002_add_column.up.sql",
		"README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}

	latest, err := getLatestVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, latest)

	_, err = getLatestVersion(t.TempDir())
	assert.ErrorContains(t, err, "no migration files found")
}

func TestShippedMigrations(t *testing.T) {
	latest, err := getLatestVersion("../../db/pg")
	require.NoError(t, err)
	assert.Equal(t, 1, latest)
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "localhost", Port: 5432, User: "meraki", Password: "secret", Name: "meraki_graph"}
	assert.Equal(t, "host=localhost port=5432 user=meraki password=secret dbname=meraki_graph sslmode=disable", cfg.DSN())

	cfg.SSLMode = "require"
	assert.Contains(t, cfg.DSN(), "sslmode=require")
}
