package badgerstore

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readalong/chainstore/pkg/models"
)

func TestCheckPage(t *testing.T) {
	b := &models.Block{ID: models.NewBlockID()}
	require.NoError(t, checkPage(b))

	b.PageNb = -1
	assert.Error(t, checkPage(b))

	if strconv.IntSize < 64 {
		t.Skip("pages above the index width do not fit in int")
	}
	over := int64(maxIndexedPageNb) + 1
	b.PageNb = int(over)
	assert.Error(t, checkPage(b))

	b.PageNb = int(over - 1)
	assert.NoError(t, checkPage(b))
}

func TestPageSegmentOrdering(t *testing.T) {
	assert.Equal(t, "0000000002", pageSegment(2))
	assert.Less(t, pageSegment(9), pageSegment(10))
}
