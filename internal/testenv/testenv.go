// Package testenv locates the external databases used by integration
// tests. Tests that need one call the matching helper, which skips the
// test when the environment does not name the database.
package testenv

import (
	"os"
	"testing"
)

const (
	// EnvSurrealURL is the WebSocket URL of a SurrealDB 2.x server, for
	// example ws://localhost:8000/rpc.
	EnvSurrealURL  = "SURREALDB_URL"
	EnvSurrealNS   = "SURREALDB_NS"
	EnvSurrealDB   = "SURREALDB_DB"
	EnvSurrealUser = "SURREALDB_USER"
	EnvSurrealPass = "SURREALDB_PASS"

	// EnvPostgresDSN is a libpq connection string.
	EnvPostgresDSN = "POSTGRES_DSN"
)

// Surreal describes the SurrealDB server to test against.
type Surreal struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// SurrealDB returns the configured server or skips t.
func SurrealDB(t testing.TB) Surreal {
	t.Helper()
	u := os.Getenv(EnvSurrealURL)
	if u == "" {
		t.Skipf("%s not set", EnvSurrealURL)
	}
	return Surreal{
		URL:       u,
		Namespace: getEnv(EnvSurrealNS, "chainstore"),
		Database:  getEnv(EnvSurrealDB, "chainstore_test"),
		Username:  getEnv(EnvSurrealUser, "root"),
		Password:  getEnv(EnvSurrealPass, "root"),
	}
}

// PostgresDSN returns the configured DSN or skips t.
func PostgresDSN(t testing.TB) string {
	t.Helper()
	dsn := os.Getenv(EnvPostgresDSN)
	if dsn == "" {
		t.Skipf("%s not set", EnvPostgresDSN)
	}
	return dsn
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
