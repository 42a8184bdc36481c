package chainctl_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readalong/chainstore/pkg/chain"
	"github.com/readalong/chainstore/pkg/chainctl"
	"github.com/readalong/chainstore/pkg/config"
	"github.com/readalong/chainstore/pkg/document"
	"github.com/readalong/chainstore/pkg/models"
	"github.com/readalong/chainstore/pkg/store"
)

const pagesYAML = `
- page: 0
  blocks:
    - size_class: h1
      spans:
        - type: 0
          text: Chapter One
    - spans:
        - type: 0
          text: It was a bright cold day
        - type: 1
          pause: 300
- page: 1
  blocks:
    - read: false
      spans:
        - type: 0
          text: "12"
`

// setup points chainctl at a fresh Badger directory.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvBackend, string(config.BackendBadger))
	t.Setenv(config.EnvBadgerDir, filepath.Join(dir, "db"))
	t.Setenv(config.EnvArtifactDir, filepath.Join(dir, "audio"))
	t.Setenv(config.EnvLogFile, filepath.Join(dir, "chainctl.log"))

	path := filepath.Join(dir, "pages.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pagesYAML), 0o600))
	return path
}

func run(t *testing.T, out any, args ...string) error {
	t.Helper()
	var buf bytes.Buffer
	err := chainctl.Run(context.Background(), args, &buf)
	if err == nil && out != nil {
		require.NoError(t, json.Unmarshal(buf.Bytes(), out), buf.String())
	}
	return err
}

func TestImportDumpDelete(t *testing.T) {
	file := setup(t)
	item := models.NewItemID().String()

	require.NoError(t, run(t, nil, "migrate"))

	var res document.ImportResult
	require.NoError(t, run(t, &res, "import", item, file))
	assert.Equal(t, 3, res.Blocks)
	assert.Equal(t, 4, res.Spans)

	var blocks []document.BlockOut
	require.NoError(t, run(t, &blocks, "dump", item))
	require.Len(t, blocks, 3)
	assert.Equal(t, res.Head, blocks[0].ID)
	assert.Equal(t, models.SizeH1, blocks[0].SizeClass)
	assert.Equal(t, "Chapter One", blocks[0].Spans[0].Text)
	assert.Equal(t, 300, *blocks[1].Spans[1].Pause)
	assert.False(t, blocks[2].Read)

	require.NoError(t, run(t, &blocks, "dump", item, "--start", "1"))
	require.Len(t, blocks, 1)
	assert.Equal(t, "12", blocks[0].Spans[0].Text)

	var ids []models.BlockID
	require.NoError(t, run(t, &ids, "ids", item))
	require.Len(t, ids, 3)

	var report document.Report
	require.NoError(t, run(t, &report, "verify", item))
	assert.True(t, report.OK())

	var deleted map[string]bool
	require.NoError(t, run(t, &deleted, "delete-block", item, ids[0].String()))
	assert.True(t, deleted["deleted"])
	require.NoError(t, run(t, &ids, "ids", item))
	require.Len(t, ids, 2)

	var count map[string]int
	require.NoError(t, run(t, &count, "delete-item", item))
	assert.Equal(t, 2, count["blocks"])

	err := run(t, nil, "verify", item)
	require.ErrorIs(t, err, chain.ErrNotFound)
}

func TestReadOnlyFlag(t *testing.T) {
	file := setup(t)
	item := models.NewItemID().String()

	err := run(t, nil, "--read-only", "import", item, file)
	require.ErrorIs(t, err, store.ErrReadOnly)

	var blocks []document.BlockOut
	require.NoError(t, run(t, &blocks, "dump", item, "--start", "2"))
	assert.Empty(t, blocks)
}

func TestUnknownBackend(t *testing.T) {
	setup(t)
	err := run(t, nil, "--backend", "mongo", "migrate")
	require.ErrorContains(t, err, "unknown store backend")
}

func TestReadPages(t *testing.T) {
	file := setup(t)
	fromYAML, err := chainctl.ReadPages(file)
	require.NoError(t, err)

	data, err := json.Marshal(fromYAML)
	require.NoError(t, err)
	jsonFile := filepath.Join(t.TempDir(), "pages.json")
	require.NoError(t, os.WriteFile(jsonFile, data, 0o600))

	fromJSON, err := chainctl.ReadPages(jsonFile)
	require.NoError(t, err)
	assert.Equal(t, fromYAML, fromJSON)
	assert.Equal(t, models.TriFalse, fromJSON[1].Blocks[0].Read)
}
