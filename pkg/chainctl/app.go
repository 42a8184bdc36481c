package chainctl

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/readalong/chainstore/pkg/artifact"
	"github.com/readalong/chainstore/pkg/config"
	"github.com/readalong/chainstore/pkg/document"
	"github.com/readalong/chainstore/pkg/logger"
	"github.com/readalong/chainstore/pkg/store"
	"github.com/readalong/chainstore/pkg/store/badgerstore"
	"github.com/readalong/chainstore/pkg/store/postgres"
	"github.com/readalong/chainstore/pkg/store/surrealdb"
)

// App holds an open store and the document service over it.
type App struct {
	config   *config.Config
	store    store.Store
	docs     *document.Service
	log      zerolog.Logger
	logData  *logger.LogData
	out      io.Writer
	readOnly bool
}

// New opens the configured store. The store is wrapped so that every
// write fails while the app is read-only.
func New(ctx context.Context, cfg *config.Config, readOnly bool, out io.Writer) (*App, error) {
	logData, err := logger.New().
		FromPath(cfg.Log.File).
		Level(cfg.Log.Level).
		Console(cfg.Log.Console).
		Make()
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	log := logData.Logger

	s, err := OpenStore(ctx, cfg.Store, &log)
	if err != nil {
		logData.Close()
		return nil, err
	}
	log.Debug().Str("backend", string(cfg.Store.Backend)).Msg("store opened")

	app := &App{
		config:   cfg,
		log:      log,
		logData:  logData,
		out:      out,
		readOnly: readOnly,
	}
	app.store = store.NewReadOnlyStore(s, app.IsReadOnly)
	app.docs = document.New(app.store, remover(cfg.Artifacts), &log)
	return app, nil
}

// OpenStore connects to the backend named in cfg.
func OpenStore(ctx context.Context, cfg config.StoreConfig, log *zerolog.Logger) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendBadger:
		s, err := badgerstore.Open(badgerstore.Options{
			Dir:      cfg.Badger.Dir,
			InMemory: cfg.Badger.InMemory,
			Logger:   log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		return s, nil
	case config.BackendSurrealDB:
		s, err := surrealdb.Open(ctx, surrealdb.Options{
			URL:       cfg.SurrealDB.URL,
			Namespace: cfg.SurrealDB.Namespace,
			Database:  cfg.SurrealDB.Database,
			Username:  cfg.SurrealDB.Username,
			Password:  cfg.SurrealDB.Password,
			Logger:    log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
		}
		return s, nil
	case config.BackendPostgres:
		s, err := postgres.Open(cfg.Postgres.DSN, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func remover(cfg config.ArtifactConfig) artifact.Remover {
	if cfg.Dir == "" {
		return artifact.Nop{}
	}
	return artifact.Local{Root: cfg.Dir}
}

func (a *App) Close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
	}
	if cerr := a.logData.Close(); err == nil {
		err = cerr
	}
	return err
}

func (a *App) Store() store.Store {
	return a.store
}

func (a *App) SetReadOnly(readOnly bool) {
	a.readOnly = readOnly
	a.log.Debug().Bool("read_only", readOnly).Msg("read-only mode changed")
}

func (a *App) IsReadOnly() bool {
	return a.readOnly
}
