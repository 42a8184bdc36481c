// Package chainctl is the command line front end to the chain stores:
// schema migration, import and inspection of items, deletes and copying
// between backends.
package chainctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/readalong/chainstore/pkg/config"
)

// ExitError carries a process exit code for failures that are results
// rather than errors, such as a failed verify.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }
func (e *ExitError) ExitCode() int { return e.Code }

// ErrInconsistent is returned by verify when any finding is reported.
var ErrInconsistent = errors.New("item chains are inconsistent")

// Main runs chainctl with command line arguments, writing results to
// stdout. It can be called from tests without building the binary.
//
// Configuration comes from the file named by --config or
// CHAINSTORE_CONFIG, then the environment:
//
//	CHAINSTORE_BACKEND       - badger (default), surrealdb or postgres
//	CHAINSTORE_BADGER_DIR    - Badger data directory
//	SURREALDB_URL            - SurrealDB WebSocket URL (ws://localhost:8000/rpc)
//	SURREALDB_NS, SURREALDB_DB, SURREALDB_USER, SURREALDB_PASS
//	POSTGRES_DSN             - PostgreSQL connection string
//	CHAINSTORE_ARTIFACT_DIR  - root of the audio tree removed with blocks
//	CHAINSTORE_LOG_LEVEL, CHAINSTORE_LOG_FILE
func Main(ctx context.Context, args []string) error {
	return Run(ctx, args, os.Stdout)
}

// Run is Main with an explicit output writer.
func Run(ctx context.Context, args []string, out io.Writer) error {
	cmd, opts, err := Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse arguments: %w", err)
	}

	path := opts.ConfigFile
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if opts.Backend != "" {
		cfg.Store.Backend = config.Backend(opts.Backend)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	app, err := New(ctx, cfg, opts.ReadOnly || !cmd.Writes(), out)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	if err := app.Execute(ctx, cmd); err != nil {
		return fmt.Errorf("%s failed: %w", cmd.Name(), err)
	}
	return nil
}
