package pipeline

import (
	"context"
	"fmt"

	"github.com/comfforts/logger"
	"golang.org/x/sync/errgroup"

	"github.com/localmart/catalog-ingest/pkg/domain"
)

// DefaultMaxWriters bounds concurrent offer inserts within one chunk.
const DefaultMaxWriters = 8

// IndexedRow pairs a raw row with its absolute feed index. Indices stay
// correct even when undecodable rows were dropped upstream.
type IndexedRow struct {
	Index int
	Row   domain.RawRow
}

// normalizedEntry pairs a normalized row with its absolute feed index.
type normalizedEntry struct {
	index int
	row   *domain.NormalizedRow
}

// ChunkProcessor runs one chunk through the two write phases: merchants
// first, sequentially, so every offer write sees a resolved merchant id;
// then offers with bounded concurrency. Row failures are recorded on the
// report and never stop the chunk.
type ChunkProcessor struct {
	store      domain.CatalogStore
	resolver   *MerchantResolver
	maxWriters int
}

// NewChunkProcessor wires a processor to a store and a per-run resolver.
func NewChunkProcessor(store domain.CatalogStore, resolver *MerchantResolver, maxWriters int) *ChunkProcessor {
	if maxWriters <= 0 {
		maxWriters = DefaultMaxWriters
	}
	return &ChunkProcessor{
		store:      store,
		resolver:   resolver,
		maxWriters: maxWriters,
	}
}

// ProcessChunk normalizes and writes one contiguous chunk of raw rows.
// startIndex is the absolute feed index of rows[0].
func (p *ChunkProcessor) ProcessChunk(ctx context.Context, startIndex int, rows []domain.RawRow, report *domain.ReportBuilder) error {
	indexed := make([]IndexedRow, len(rows))
	for i, raw := range rows {
		indexed[i] = IndexedRow{Index: startIndex + i, Row: raw}
	}
	return p.ProcessRows(ctx, indexed, report)
}

// ProcessRows normalizes and writes one chunk of indexed rows. The chunk
// always runs to completion; a done context surfaces as the return value
// afterwards so callers stop before the next chunk, and everything else is a
// per-row failure on the report.
func (p *ChunkProcessor) ProcessRows(ctx context.Context, rows []IndexedRow, report *domain.ReportBuilder) error {
	l, err := logger.LoggerFromContext(ctx)
	if err != nil {
		l = logger.GetSlogLogger()
	}

	// normalize up front so both phases see typed rows
	entries := make([]normalizedEntry, 0, len(rows))
	for _, ir := range rows {
		nr, err := domain.Normalize(ir.Row)
		if err != nil {
			report.RecordFailure(ir.Index, err.Error())
			continue
		}
		entries = append(entries, normalizedEntry{index: ir.Index, row: nr})
	}

	// a started chunk runs to completion; cancellation takes effect at the
	// chunk boundary, never mid-chunk
	chunkCtx := context.WithoutCancel(ctx)

	// phase one: resolve each distinct merchant name once, in first
	// appearance order
	merchants := map[string]*domain.Merchant{}
	for _, e := range entries {
		name := e.row.MerchantName
		if _, seen := merchants[name]; seen {
			continue
		}

		m, created, err := p.resolver.Resolve(chunkCtx, &domain.Merchant{
			Name:     name,
			Address:  e.row.MerchantAddress,
			Phone:    e.row.MerchantPhone,
			Category: e.row.MerchantCategory,
		})
		if err != nil {
			l.Error("merchant resolution failed", "merchant", name, "error", err.Error())
			merchants[name] = nil
			continue
		}
		if created {
			report.RecordMerchantCreated()
		}
		merchants[name] = m
	}

	// phase two: offer writes, bounded fan-out within the chunk only
	var g errgroup.Group
	g.SetLimit(p.maxWriters)
	for _, e := range entries {
		m := merchants[e.row.MerchantName]
		if m == nil {
			report.RecordFailure(e.index, fmt.Sprintf("merchant %q could not be resolved", e.row.MerchantName))
			continue
		}

		g.Go(func() error {
			_, err := p.store.CreateOffer(chunkCtx, &domain.Offer{
				Title:       e.row.OfferTitle,
				Description: e.row.OfferDescription,
				ImageURL:    e.row.OfferImageURL,
				Discount:    e.row.OfferDiscount,
				StartDate:   e.row.StartDate,
				EndDate:     e.row.EndDate,
				Category:    e.row.Category,
				MerchantID:  m.ID,
				ExternalURL: e.row.OfferExternalURL,
			})
			if err != nil {
				report.RecordFailure(e.index, err.Error())
				return nil
			}
			report.RecordOfferCreated()
			return nil
		})
	}
	g.Wait()

	return ctx.Err()
}
