// Package document serves the block and span chains of items: ordered
// reads over page windows, single-block edits and bulk import.
//
// Every read is all-or-nothing. If any part of a chain it touches is
// broken, the call returns a [chain.CorruptionError] and no data. Writes
// are sequences of single-record operations ordered so that a new record
// is stored before anything points at it; see [chain.Mutator].
package document

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/readalong/chainstore/pkg/artifact"
	"github.com/readalong/chainstore/pkg/chain"
	"github.com/readalong/chainstore/pkg/models"
	"github.com/readalong/chainstore/pkg/store"
)

type (
	blockMutator  = chain.Mutator[models.ItemID, models.BlockID, models.Block]
	spanMutator   = chain.Mutator[models.BlockID, models.SpanID, models.Span]
	blockResolver = chain.Resolver[models.ItemID, models.BlockID, models.Block]
)

// Service implements the document operations over a store.
type Service struct {
	store   store.Store
	links   store.BlockLinks
	remover artifact.Remover
	log     zerolog.Logger
}

// New returns a Service. A nil remover keeps artifacts; a nil log
// discards logging.
func New(s store.Store, remover artifact.Remover, log *zerolog.Logger) *Service {
	if remover == nil {
		remover = artifact.Nop{}
	}
	l := zerolog.Nop()
	if log != nil {
		l = log.With().Str("component", "document").Logger()
	}
	return &Service{
		store:   s,
		links:   store.BlockLinks{Blocks: s},
		remover: remover,
		log:     l,
	}
}

func (s *Service) blockMutator() *blockMutator {
	return &blockMutator{Store: s.links, OnRemove: s.removeBlockDependents}
}

func (s *Service) spanMutator() *spanMutator {
	return &spanMutator{Store: store.SpanLinks{Spans: s.store}}
}

// removeBlockDependents deletes a removed block's spans and audio. Audio
// removal failures are logged only: the chain is already consistent.
func (s *Service) removeBlockDependents(ctx context.Context, item models.ItemID, b models.Block) error {
	if _, err := s.store.DeleteBlockSpans(ctx, b.ID); err != nil {
		return err
	}
	s.removeArtifacts(ctx, artifact.BlockPrefix(item, b.ID))
	return nil
}

func (s *Service) removeArtifacts(ctx context.Context, prefix string) {
	if err := s.remover.DeletePrefix(ctx, prefix); err != nil {
		s.log.Warn().Err(err).Str("prefix", prefix).Msg("failed to remove artifacts")
	}
}

// observe logs corruption and partial writes at the API boundary, once per
// failed call, and passes err through.
func (s *Service) observe(op string, err error) error {
	var c *chain.CorruptionError
	if errors.As(err, &c) {
		s.log.Error().Str("op", op).Str("parent", c.Parent).Str("node", c.Node).Str("reason", c.Reason).Msg("chain corruption")
		return err
	}
	var p *chain.PartialWriteError
	if errors.As(err, &p) {
		s.log.Error().Str("op", op).Str("parent", p.Parent).Str("node", p.Node).Str("step", p.Step).Msg("partial write")
	}
	return err
}
