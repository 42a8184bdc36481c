// Package artifact removes derived files (synthesized audio) that belong
// to blocks and items. Chains reference artifacts by prefix only: a block's
// files live under BlockPrefix, an item's under ItemPrefix.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/readalong/chainstore/pkg/models"
)

// Remover deletes every artifact under a prefix. Deleting a prefix that
// holds nothing is not an error.
type Remover interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

func ItemPrefix(item models.ItemID) string {
	return item.String()
}

func BlockPrefix(item models.ItemID, block models.BlockID) string {
	return path.Join(item.String(), block.String())
}

// Nop is a Remover that keeps everything.
type Nop struct{}

func (Nop) DeletePrefix(context.Context, string) error { return nil }

// Local stores artifacts as a directory tree under Root.
type Local struct {
	Root string
}

func (l Local) DeletePrefix(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := l.resolve(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	return nil
}

// resolve maps prefix to a directory strictly below Root.
func (l Local) resolve(prefix string) (string, error) {
	if l.Root == "" {
		return "", fmt.Errorf("artifact root is not set")
	}
	clean := path.Clean("/" + prefix)
	if clean == "/" || strings.Contains(prefix, "..") {
		return "", fmt.Errorf("invalid artifact prefix %q", prefix)
	}
	return filepath.Join(l.Root, filepath.FromSlash(clean[1:])), nil
}
