package badgerstore

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/readalong/chainstore/pkg/models"
)

// Key layout. Records live under a one-letter prefix; every other prefix
// is a value-less index entry whose last segment is the record id.
//
//	b/<block>                            block record
//	bi/<item>/<page:010d>/<block>        blocks of an item by page
//	bh/<item>/<block>                    head block
//	bt/<item>/<block>                    tail block
//	bn/<item>/<next>/<block>             block whose next_id is <next>
//	s/<span>                             span record
//	si/<block>/<span>                    spans of a block
//	sh/<block>/<span>                    head span
//	st/<block>/<span>                    tail span
//	sn/<block>/<next>/<span>             span whose next_id is <next>
const (
	prefixBlock      = "b/"
	prefixBlockPage  = "bi/"
	prefixBlockHead  = "bh/"
	prefixBlockTail  = "bt/"
	prefixBlockPred  = "bn/"
	prefixSpan       = "s/"
	prefixSpanBlock  = "si/"
	prefixSpanHead   = "sh/"
	prefixSpanTail   = "st/"
	prefixSpanPred   = "sn/"
	pageDigits       = 10
	keySeparator     = '/'
	maxIndexedPageNb = 9999999999
)

func key(parts ...string) []byte {
	var buf bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			buf.WriteByte(keySeparator)
		}
		buf.WriteString(p)
	}
	return buf.Bytes()
}

// prefix is key with a trailing separator, for scans.
func prefix(parts ...string) []byte {
	return append(key(parts...), keySeparator)
}

func pageSegment(page int) string {
	return fmt.Sprintf("%0*d", pageDigits, page)
}

func blockKey(id models.BlockID) []byte {
	return []byte(prefixBlock + id.String())
}

func spanKey(id models.SpanID) []byte {
	return []byte(prefixSpan + id.String())
}

func blockIndexKeys(b *models.Block) [][]byte {
	item, id := b.ItemID.String(), b.ID.String()
	keys := [][]byte{key(prefixBlockPage+item, pageSegment(b.PageNb), id)}
	if b.Head() {
		keys = append(keys, key(prefixBlockHead+item, id))
	}
	if b.NextID == nil {
		keys = append(keys, key(prefixBlockTail+item, id))
	} else {
		keys = append(keys, key(prefixBlockPred+item, b.NextID.String(), id))
	}
	return keys
}

func spanIndexKeys(s *models.Span) [][]byte {
	block, id := s.BlockID.String(), s.ID.String()
	keys := [][]byte{key(prefixSpanBlock+block, id)}
	if s.Head() {
		keys = append(keys, key(prefixSpanHead+block, id))
	}
	if s.NextID == nil {
		keys = append(keys, key(prefixSpanTail+block, id))
	} else {
		keys = append(keys, key(prefixSpanPred+block, s.NextID.String(), id))
	}
	return keys
}

// lastSegment parses the record id at the end of an index key.
func lastSegment(k []byte) (uuid.UUID, error) {
	i := bytes.LastIndexByte(k, keySeparator)
	return uuid.ParseBytes(k[i+1:])
}

// pageOf parses the page segment of a bi/ key.
func pageOf(k []byte) (int, error) {
	parts := bytes.Split(k, []byte{keySeparator})
	if len(parts) != 4 {
		return 0, fmt.Errorf("malformed page index key %q", k)
	}
	return strconv.Atoi(string(parts[2]))
}
