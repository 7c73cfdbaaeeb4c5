package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/comfforts/logger"
	"github.com/google/uuid"

	"github.com/localmart/catalog-ingest/internal/runs"
	"github.com/localmart/catalog-ingest/internal/sources"
	"github.com/localmart/catalog-ingest/pkg/domain"
)

// IngestRequest describes one feed submission.
type IngestRequest struct {
	// ContentType of the feed payload; anything that is not CSV is
	// rejected before a single row is read.
	ContentType string

	// Feed is a display name recorded on the run, e.g. the upload filename.
	Feed string

	// Sync makes Ingest block until the run finishes. The default is
	// fire and forget: the caller gets a run id back immediately and
	// polls the registry for the outcome.
	Sync bool

	Delimiter     rune
	ChunkSize     int
	ChunkInterval time.Duration
}

// Ingestor runs feed submissions against a catalog store and records run
// outcomes in a registry.
type Ingestor struct {
	store      domain.CatalogStore
	registry   runs.Registry
	maxWriters int
}

// NewIngestor wires an ingestor to its store and run registry.
func NewIngestor(store domain.CatalogStore, registry runs.Registry, maxWriters int) *Ingestor {
	return &Ingestor{
		store:      store,
		registry:   registry,
		maxWriters: maxWriters,
	}
}

// Ingest validates the feed eagerly, then runs it. Unsupported content types
// and undecodable streams fail the submission in both modes, before any row
// is processed. In sync mode the returned run is terminal and carries the
// report; in async mode it is a running record whose outcome lands in the
// registry when the feed drains. The async run is detached from the caller's
// context, matching its fire and forget contract.
func (ing *Ingestor) Ingest(ctx context.Context, feed io.ReadCloser, req IngestRequest) (*runs.Run, error) {
	dec, err := sources.NewRowDecoder(feed, req.ContentType, req.Delimiter)
	if err != nil {
		feed.Close()
		return nil, err
	}

	run := &runs.Run{
		ID:        uuid.NewString(),
		State:     runs.StateRunning,
		Feed:      req.Feed,
		StartedAt: time.Now().UTC(),
	}
	if err := ing.registry.Put(ctx, run); err != nil {
		feed.Close()
		return nil, err
	}

	if req.Sync {
		ing.execute(ctx, feed, dec, run, req)
		return run, nil
	}

	accepted := *run
	go ing.execute(context.WithoutCancel(ctx), feed, dec, run, req)
	return &accepted, nil
}

// IngestSource builds a feed source from its config, opens the byte stream
// and runs it like any other submission. The source is closed when the run
// finishes draining the stream.
func (ing *Ingestor) IngestSource(ctx context.Context, cfg domain.FeedSourceConfig, req IngestRequest) (*runs.Run, error) {
	if !req.Sync {
		// the stream outlives a fire and forget caller
		ctx = context.WithoutCancel(ctx)
	}

	src, err := cfg.BuildSource(ctx)
	if err != nil {
		return nil, err
	}

	stream, err := src.Open(ctx)
	if err != nil {
		src.Close(ctx)
		return nil, err
	}

	if req.Feed == "" {
		req.Feed = cfg.Name()
	}
	return ing.Ingest(ctx, &sourceStream{ReadCloser: stream, src: src}, req)
}

// sourceStream ties the life of the feed source to its byte stream.
type sourceStream struct {
	io.ReadCloser
	src domain.FeedSource
}

func (s *sourceStream) Close() error {
	err := s.ReadCloser.Close()
	if cerr := s.src.Close(context.Background()); err == nil {
		err = cerr
	}
	return err
}

func (ing *Ingestor) execute(ctx context.Context, feed io.ReadCloser, dec *sources.RowDecoder, run *runs.Run, req IngestRequest) {
	defer feed.Close()

	l, err := logger.LoggerFromContext(ctx)
	if err != nil {
		l = logger.GetSlogLogger()
	}

	var opts []SchedulerOption
	if req.ChunkSize > 0 {
		opts = append(opts, WithChunkSize(req.ChunkSize))
	}
	if req.ChunkInterval > 0 {
		opts = append(opts, WithChunkInterval(req.ChunkInterval))
	}

	report := domain.NewReportBuilder()
	processor := NewChunkProcessor(ing.store, NewMerchantResolver(ing.store), ing.maxWriters)
	runErr := NewScheduler(processor, opts...).Run(ctx, dec, report)

	snapshot := report.Snapshot()
	run.Report = &snapshot
	run.FinishedAt = time.Now().UTC()

	switch {
	case runErr == nil:
		run.State = runs.StateCompleted
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		// partial report stays attached; rows past the cut are not counted
		run.State = runs.StateCanceled
		run.Error = runErr.Error()
	default:
		run.State = runs.StateFailed
		run.Error = runErr.Error()
	}

	if err := ing.registry.Put(context.WithoutCancel(ctx), run); err != nil {
		l.Error("failed to record run outcome", "run-id", run.ID, "error", err.Error())
	}

	l.Info(
		"ingestion run finished",
		"run-id", run.ID,
		"state", string(run.State),
		"merchants-created", snapshot.MerchantsCreated,
		"offers-created", snapshot.OffersCreated,
		"rows-failed", snapshot.RowsFailed,
	)
}
