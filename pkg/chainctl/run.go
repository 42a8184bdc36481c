package chainctl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/readalong/chainstore/pkg/config"
	"github.com/readalong/chainstore/pkg/document"
	"github.com/readalong/chainstore/pkg/models"
	"github.com/readalong/chainstore/pkg/store"
)

// Execute runs cmd against the app's store.
func (a *App) Execute(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case *MigrateCommand:
		if err := a.store.Migrate(ctx); err != nil {
			return err
		}
		a.log.Info().Str("backend", string(a.config.Store.Backend)).Msg("migration complete")
		return nil
	case *ImportCommand:
		return a.importFile(ctx, c)
	case *DumpCommand:
		blocks, err := a.docs.ItemBlocks(ctx, c.Item, c.Start, c.End)
		if err != nil {
			return err
		}
		if blocks == nil {
			blocks = []document.BlockOut{}
		}
		return a.print(blocks)
	case *IDsCommand:
		ids, err := a.docs.BlockIDsInRange(ctx, c.Item, c.From, c.To)
		if err != nil {
			return err
		}
		return a.print(ids)
	case *VerifyCommand:
		report, err := a.docs.VerifyItem(ctx, c.Item)
		if err != nil {
			return err
		}
		if err := a.print(report); err != nil {
			return err
		}
		if !report.OK() {
			return &ExitError{Code: 2, Err: fmt.Errorf("%d findings: %w", len(report.Findings), ErrInconsistent)}
		}
		return nil
	case *DeleteBlockCommand:
		deleted, err := a.docs.DeleteBlock(ctx, c.Item, c.Block)
		if err != nil {
			return err
		}
		return a.print(map[string]bool{"deleted": deleted})
	case *DeleteItemCommand:
		n, err := a.docs.DeleteItem(ctx, c.Item)
		if err != nil {
			return err
		}
		return a.print(map[string]int{"blocks": n})
	case *CopyCommand:
		return a.copyItem(ctx, c)
	}
	return fmt.Errorf("unknown command type: %T", cmd)
}

func (a *App) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *App) importFile(ctx context.Context, c *ImportCommand) error {
	pages, err := ReadPages(c.File)
	if err != nil {
		return err
	}
	res, err := a.docs.ImportPages(ctx, c.Item, pages)
	if err != nil {
		return err
	}
	return a.print(res)
}

// ReadPages decodes an ingestion file. Files ending in .yaml or .yml are
// YAML; anything else is JSON.
func ReadPages(path string) ([]models.PageIn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var pages []models.PageIn
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &pages)
	default:
		err = json.Unmarshal(data, &pages)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return pages, nil
}

// copyItem exports the item from the app's store, which is read-only for
// this command, imports it into the target backend and verifies it there.
func (a *App) copyItem(ctx context.Context, c *CopyCommand) error {
	target := a.config.Store
	target.Backend = config.Backend(c.ToBackend)
	if target.Backend == a.config.Store.Backend {
		return fmt.Errorf("target backend %q is the source backend", c.ToBackend)
	}
	cfg := *a.config
	cfg.Store = target
	if err := cfg.Validate(); err != nil {
		return err
	}

	var (
		pages []models.PageIn
		dst   store.Store
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pages, err = a.docs.ExportPages(gctx, c.Item)
		return err
	})
	g.Go(func() error {
		var err error
		dst, err = OpenStore(gctx, target, &a.log)
		return err
	})
	err := g.Wait()
	if dst != nil {
		defer dst.Close()
	}
	if err != nil {
		return err
	}

	if err := dst.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate target: %w", err)
	}
	docs := document.New(dst, nil, &a.log)
	res, err := docs.ImportPages(ctx, c.ToItem, pages)
	if err != nil {
		return fmt.Errorf("failed to import into %s: %w", c.ToBackend, err)
	}
	report, err := docs.VerifyItem(ctx, c.ToItem)
	if err != nil {
		return err
	}
	a.log.Info().
		Str("item", c.Item.String()).
		Str("to_item", c.ToItem.String()).
		Str("to_backend", c.ToBackend).
		Int("blocks", res.Blocks).
		Msg("item copied")
	if err := a.print(report); err != nil {
		return err
	}
	if !report.OK() {
		return &ExitError{Code: 2, Err: ErrInconsistent}
	}
	return nil
}
