package catalog_ingest

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/localmart/catalog-ingest/pkg/domain"
)

const (
	// WorkflowChunkLimit bounds chunks per workflow run before continue-as-new.
	WorkflowChunkLimit = uint(100)

	// DefaultWorkflowChunkSize is rows per processed chunk.
	DefaultWorkflowChunkSize = uint(50)

	// DefaultChunkBytes is the byte window pulled from the feed per fetch.
	DefaultChunkBytes = uint(32 << 10)

	// ChunkPause spaces consecutive chunks so the store is never saturated.
	ChunkPause = 100 * time.Millisecond
)

// IngestCatalogWorkflow runs one catalog feed through the chunked ingestion
// pipeline with durable progress. Chunks are strictly ordered: a chunk is
// fetched, processed to completion and merged into the report before the next
// fetch starts.
func IngestCatalogWorkflow[R domain.ChunkReaderConfig, S domain.CatalogStoreConfig](
	ctx workflow.Context,
	req *IngestionRequest[R, S],
) (*IngestionRequest[R, S], error) {
	l := workflow.GetLogger(ctx)

	wkflname := workflow.GetInfo(ctx).WorkflowType.Name

	l.Debug(
		"IngestCatalogWorkflow started",
		"reader", req.Reader.Name(),
		"store", req.Store.Name(),
		"job-id", req.JobID,
		"workflow", wkflname,
	)

	resp, err := ingestCatalog(ctx, req)
	if err != nil {
		switch wkflErr := err.(type) {
		case *temporal.ApplicationError:
			l.Error(
				"IngestCatalogWorkflow - application error",
				"workflow", wkflname,
				"error", err.Error(),
				"error-type", wkflErr.Type(),
			)
		default:
			l.Error(
				"IngestCatalogWorkflow - error",
				"workflow", wkflname,
				"error", err.Error(),
				"type", fmt.Sprintf("%T", err),
			)
		}
		return resp, err
	}

	l.Debug(
		"IngestCatalogWorkflow completed",
		"job-id", resp.JobID,
		"merchants-created", resp.Report.MerchantsCreated,
		"offers-created", resp.Report.OffersCreated,
		"rows-failed", resp.Report.RowsFailed,
		"workflow", wkflname,
	)
	return resp, nil
}

func ingestCatalog[R domain.ChunkReaderConfig, S domain.CatalogStoreConfig](
	ctx workflow.Context,
	req *IngestionRequest[R, S],
) (*IngestionRequest[R, S], error) {
	l := workflow.GetLogger(ctx)

	wkflname := workflow.GetInfo(ctx).WorkflowType.Name

	// setup activity options
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute * 10,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    5,
			NonRetryableErrorTypes: []string{
				ERR_MISSING_JOB_ID,
				ERR_BUILDING_CHUNK_READER,
				ERR_BUILDING_STORE,
			},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	// setup request state
	if req.JobID == "" {
		req.JobID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}
	if req.ChunkSize == 0 {
		req.ChunkSize = DefaultWorkflowChunkSize
	}
	if req.ChunkBytes == 0 {
		req.ChunkBytes = DefaultChunkBytes
	}
	if req.MaxChunks == 0 || req.MaxChunks > WorkflowChunkLimit {
		req.MaxChunks = WorkflowChunkLimit
	}
	if req.Offsets == nil {
		req.Offsets = []uint64{req.StartAt}
	}

	fetchAlias, processAlias := getFetchActivityName(req), getProcessActivityName(req)

	report := domain.NewReportBuilder()
	report.Merge(req.Report)

	chunkCount := uint(0)
	offset := req.StartAt

	for !req.Done && chunkCount < req.MaxChunks {
		var fetched FetchOutput
		if err := workflow.ExecuteActivity(ctx, fetchAlias, &FetchInput[R]{
			Reader:     req.Reader,
			Offset:     offset,
			ChunkBytes: req.ChunkBytes,
		}).Get(ctx, &fetched); err != nil {
			req.Report = report.Snapshot()
			return req, err
		}
		chunkCount++

		req.Done = fetched.Chunk.Done
		offset = fetched.Chunk.NextOffset
		req.Offsets = append(req.Offsets, offset)

		// a byte window can hold more rows than one chunk; keep the row
		// chunks strictly ordered within it
		rows := fetched.Chunk.Rows
		for start := 0; start < len(rows); start += int(req.ChunkSize) {
			end := min(start+int(req.ChunkSize), len(rows))

			var processed ProcessOutput
			if err := workflow.ExecuteActivity(ctx, processAlias, &ProcessInput[S]{
				Store:      req.Store,
				JobID:      req.JobID,
				StartIndex: req.NextRowIndex,
				Rows:       rows[start:end],
			}).Get(ctx, &processed); err != nil {
				req.Report = report.Snapshot()
				return req, err
			}

			report.Merge(processed.Report)
			req.NextRowIndex += end - start

			if !req.Done || end < len(rows) {
				if err := workflow.Sleep(ctx, ChunkPause); err != nil {
					req.Report = report.Snapshot()
					return req, err
				}
			}
		}

		l.Debug(
			"ingestCatalog - chunk window processed",
			"job-id", req.JobID,
			"rows", len(rows),
			"next-offset", offset,
			"done", req.Done,
			"workflow", wkflname,
		)
	}

	req.Report = report.Snapshot()
	req.StartAt = offset

	if !req.Done && chunkCount >= req.MaxChunks {
		l.Debug(
			"ingestCatalog continuing as new",
			"job-id", req.JobID,
			"start-at", req.StartAt,
			"chunks-processed", chunkCount,
			"workflow", wkflname,
		)
		return nil, workflow.NewContinueAsNewError(ctx, wkflname, req)
	}

	return req, nil
}

func getFetchActivityName[R domain.ChunkReaderConfig, S domain.CatalogStoreConfig](req *IngestionRequest[R, S]) string {
	return "fetch-next-" + req.Reader.Name() + "-chunk-alias"
}

func getProcessActivityName[R domain.ChunkReaderConfig, S domain.CatalogStoreConfig](req *IngestionRequest[R, S]) string {
	return "process-" + req.Store.Name() + "-chunk-alias"
}
