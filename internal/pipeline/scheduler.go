package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/comfforts/logger"
	"golang.org/x/time/rate"

	"github.com/localmart/catalog-ingest/internal/sources"
	"github.com/localmart/catalog-ingest/pkg/domain"
)

const (
	// DefaultChunkSize is the number of feed rows handed to the processor
	// as one unit.
	DefaultChunkSize = 50

	// DefaultChunkInterval paces chunk starts to avoid saturating the store.
	DefaultChunkInterval = 100 * time.Millisecond
)

// RowIterator yields raw feed rows one at a time. Next returns io.EOF when
// the feed is exhausted and sources.ErrFeedStream when the stream itself
// breaks; any other error marks a single undecodable row and the iterator
// stays usable. Index is the zero-based index of the next row.
type RowIterator interface {
	Next() (domain.RawRow, error)
	Index() int
}

// Scheduler drives one run: it slices the feed into chunks and feeds them to
// the processor strictly in order, so chunk N+1 never starts before chunk N
// has finished. A rate limiter paces chunk starts and cancellation is honored
// at every chunk boundary.
type Scheduler struct {
	processor *ChunkProcessor
	chunkSize int
	limiter   *rate.Limiter
}

// SchedulerOption tweaks scheduler defaults.
type SchedulerOption func(*Scheduler)

// WithChunkSize overrides the default chunk size.
func WithChunkSize(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithChunkInterval overrides the pacing interval between chunk starts.
func WithChunkInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// NewScheduler returns a scheduler over the given processor.
func NewScheduler(processor *ChunkProcessor, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		processor: processor,
		chunkSize: DefaultChunkSize,
		limiter:   rate.NewLimiter(rate.Every(DefaultChunkInterval), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run consumes the iterator to exhaustion, processing full chunks as they
// fill and the final partial chunk last. It returns the report accumulated so
// far together with the context error when the run is canceled; rows not yet
// processed are simply absent from the counts.
func (s *Scheduler) Run(ctx context.Context, it RowIterator, report *domain.ReportBuilder) error {
	l, err := logger.LoggerFromContext(ctx)
	if err != nil {
		l = logger.GetSlogLogger()
	}

	chunk := make([]IndexedRow, 0, s.chunkSize)

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		if err := s.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := s.processor.ProcessRows(ctx, chunk, report); err != nil {
			return err
		}
		l.Debug("chunk processed", "start-index", chunk[0].Index, "rows", len(chunk))
		chunk = chunk[:0]
		return nil
	}

	for {
		row, err := it.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, sources.ErrFeedStream) {
				// the feed cannot make progress; keep what was read
				if ferr := flush(); ferr != nil {
					return ferr
				}
				return err
			}
			// undecodable row; charge it and move on
			report.RecordFailure(it.Index()-1, err.Error())
			continue
		}

		chunk = append(chunk, IndexedRow{Index: it.Index() - 1, Row: row})
		if len(chunk) >= s.chunkSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	return flush()
}
