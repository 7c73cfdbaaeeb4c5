package catalog_ingest

import (
	"context"
	"errors"
	"sync"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/localmart/catalog-ingest/internal/pipeline"
	"github.com/localmart/catalog-ingest/pkg/domain"
)

/**
 * activities used by the catalog ingestion workflow.
 */
const (
	FetchNextChunkActivityName = "FetchNextChunkActivity"
	ProcessChunkActivityName   = "ProcessChunkActivity"
)

// Error messages used throughout the activities
const (
	ERR_BUILDING_CHUNK_READER = "error building chunk reader"
	ERR_FETCHING_CHUNK        = "error fetching chunk"
	ERR_BUILDING_STORE        = "error building catalog store"
	ERR_PROCESSING_CHUNK      = "error processing chunk"
	ERR_MISSING_JOB_ID        = "error missing job id"
)

// Standard Go errors for internal use
var (
	ErrMissingJobID = errors.New(ERR_MISSING_JOB_ID)
)

// Temporal application errors for workflow activities
var (
	ErrorMissingJobID = temporal.NewApplicationErrorWithCause(ERR_MISSING_JOB_ID, ERR_MISSING_JOB_ID, ErrMissingJobID)
)

// FetchNextChunkActivity pulls the next byte window from the feed and decodes
// it into rows. The reader is rebuilt from its config on every call, so the
// activity stays safe to retry and to run on any worker.
func FetchNextChunkActivity[R domain.ChunkReaderConfig](ctx context.Context, req *FetchInput[R]) (*FetchOutput, error) {
	l := activity.GetLogger(ctx)
	l.Debug(
		"FetchNextChunkActivity - started",
		"reader", req.Reader.Name(),
		"offset", req.Offset,
		"chunk-bytes", req.ChunkBytes,
	)

	reader, err := req.Reader.BuildReader(ctx)
	if err != nil {
		l.Error(ERR_BUILDING_CHUNK_READER, "error", err.Error(), "reader", req.Reader.Name())
		return nil, temporal.NewApplicationErrorWithCause(ERR_BUILDING_CHUNK_READER, ERR_BUILDING_CHUNK_READER, err)
	}
	defer reader.Close(ctx)

	chunk, err := reader.NextChunk(ctx, req.Offset, req.ChunkBytes)
	if err != nil {
		l.Error(ERR_FETCHING_CHUNK, "error", err.Error(), "reader", req.Reader.Name(), "offset", req.Offset)
		return nil, temporal.NewApplicationErrorWithCause(ERR_FETCHING_CHUNK, ERR_FETCHING_CHUNK, err)
	}

	l.Debug(
		"FetchNextChunkActivity - done",
		"reader", req.Reader.Name(),
		"rows", len(chunk.Rows),
		"next-offset", chunk.NextOffset,
		"done", chunk.Done,
	)
	return &FetchOutput{Chunk: chunk}, nil
}

// runResources are the worker-local store handle and merchant cache for one
// ingestion job. Keeping the resolver here lets the per-run cache survive
// across chunk activities scheduled on the same worker; a chunk that lands on
// a fresh worker starts with a cold cache and falls back to store lookups,
// which stay correct through the unique name constraint.
type runResources struct {
	store    domain.CatalogStore
	resolver *pipeline.MerchantResolver
}

var (
	runResourcesMu sync.Mutex
	runRegistry    = map[string]*runResources{}
)

func resourcesForRun(ctx context.Context, jobID string, cfg domain.CatalogStoreConfig) (*runResources, error) {
	runResourcesMu.Lock()
	defer runResourcesMu.Unlock()

	if res, ok := runRegistry[jobID]; ok {
		return res, nil
	}

	store, err := cfg.BuildStore(ctx)
	if err != nil {
		return nil, err
	}

	res := &runResources{
		store:    store,
		resolver: pipeline.NewMerchantResolver(store),
	}
	runRegistry[jobID] = res
	return res, nil
}

// ReleaseRunResources drops the worker-local resources for a finished job.
func ReleaseRunResources(ctx context.Context, jobID string) {
	runResourcesMu.Lock()
	defer runResourcesMu.Unlock()

	if res, ok := runRegistry[jobID]; ok {
		res.store.Close(ctx)
		delete(runRegistry, jobID)
	}
}

// ProcessChunkActivity writes one chunk of rows to the catalog: merchants
// resolved sequentially first, then offers with bounded concurrency. It
// returns the chunk's report slice for the workflow to merge.
func ProcessChunkActivity[S domain.CatalogStoreConfig](ctx context.Context, req *ProcessInput[S]) (*ProcessOutput, error) {
	l := activity.GetLogger(ctx)
	l.Debug(
		"ProcessChunkActivity - started",
		"store", req.Store.Name(),
		"job-id", req.JobID,
		"start-index", req.StartIndex,
		"rows", len(req.Rows),
	)

	if req.JobID == "" {
		l.Error(ERR_MISSING_JOB_ID)
		return nil, ErrorMissingJobID
	}

	res, err := resourcesForRun(ctx, req.JobID, req.Store)
	if err != nil {
		l.Error(ERR_BUILDING_STORE, "error", err.Error(), "store", req.Store.Name())
		return nil, temporal.NewApplicationErrorWithCause(ERR_BUILDING_STORE, ERR_BUILDING_STORE, err)
	}

	report := domain.NewReportBuilder()
	processor := pipeline.NewChunkProcessor(res.store, res.resolver, 0)
	if err := processor.ProcessChunk(ctx, req.StartIndex, req.Rows, report); err != nil {
		l.Error(ERR_PROCESSING_CHUNK, "error", err.Error(), "job-id", req.JobID)
		return nil, temporal.NewApplicationErrorWithCause(ERR_PROCESSING_CHUNK, ERR_PROCESSING_CHUNK, err)
	}

	out := report.Snapshot()
	l.Debug(
		"ProcessChunkActivity - done",
		"job-id", req.JobID,
		"merchants-created", out.MerchantsCreated,
		"offers-created", out.OffersCreated,
		"rows-failed", out.RowsFailed,
	)
	return &ProcessOutput{Report: out}, nil
}
