package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readalong/chainstore/pkg/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chainstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := config.LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, config.BackendBadger, cfg.Store.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Artifacts.Dir)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: surrealdb
  surrealdb:
    url: wss://db.example.com/rpc
    namespace: books
artifacts:
  dir: /var/lib/audio
log:
  level: debug
`)
	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.BackendSurrealDB, cfg.Store.Backend)
	assert.Equal(t, "wss://db.example.com/rpc", cfg.Store.SurrealDB.URL)
	assert.Equal(t, "books", cfg.Store.SurrealDB.Namespace)
	assert.Equal(t, "chainstore", cfg.Store.SurrealDB.Database)
	assert.Equal(t, "/var/lib/audio", cfg.Artifacts.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "store:\n  backend: badger\n  badger:\n    dir: /data\n")
	t.Setenv(config.EnvBackend, "postgres")
	t.Setenv(config.EnvPostgresDSN, "postgres://u:p@db/chains")
	t.Setenv(config.EnvLogLevel, "warn")
	t.Setenv("AUDIO_ROOT", "/srv/audio")
	t.Setenv(config.EnvArtifactDir, "${AUDIO_ROOT}/blocks")

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, "postgres://u:p@db/chains", cfg.Store.Postgres.DSN)
	assert.Equal(t, "/data", cfg.Store.Badger.Dir)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/srv/audio/blocks", cfg.Artifacts.Dir)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"default", func(*config.Config) {}, ""},
		{"unknown backend", func(c *config.Config) { c.Store.Backend = "sqlite" }, "unknown store backend"},
		{"badger without dir", func(c *config.Config) { c.Store.Badger.Dir = "" }, "store.badger.dir"},
		{"badger in memory", func(c *config.Config) { c.Store.Badger = config.BadgerConfig{InMemory: true} }, ""},
		{"surrealdb without url", func(c *config.Config) {
			c.Store.Backend = config.BackendSurrealDB
			c.Store.SurrealDB.URL = ""
		}, "store.surrealdb.url"},
		{"postgres without dsn", func(c *config.Config) {
			c.Store.Backend = config.BackendPostgres
			c.Store.Postgres.DSN = ""
		}, "store.postgres.dsn"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	_, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = config.LoadFile(writeConfig(t, "store: [not, a, map]\n"))
	require.Error(t, err)

	_, err = config.LoadFile(writeConfig(t, "store:\n  backend: mongo\n"))
	require.ErrorContains(t, err, "unknown store backend")
}
