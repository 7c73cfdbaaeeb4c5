package catalog_ingest

import (
	"github.com/localmart/catalog-ingest/pkg/domain"
)

// IngestionRequest is the workflow argument and state for one durable
// ingestion run. It is generic over the chunk reader and store configs so the
// request stays serializable across workflow boundaries.
type IngestionRequest[R domain.ChunkReaderConfig, S domain.CatalogStoreConfig] struct {
	// JobID identifies the run; the per-run merchant cache is keyed by it.
	JobID string

	// ChunkSize is the number of rows handed to the processor as one unit.
	ChunkSize uint

	// ChunkBytes is the byte window pulled from the feed per fetch.
	ChunkBytes uint

	// MaxChunks bounds chunks per workflow run before continue-as-new.
	MaxChunks uint

	// StartAt is the byte offset to resume fetching from.
	StartAt uint64

	// NextRowIndex is the absolute feed index of the next undecoded row.
	NextRowIndex int

	Reader R
	Store  S

	// Report accumulates across chunks and continue-as-new boundaries.
	Report domain.RunReport

	Offsets []uint64
	Done    bool
}

// FetchInput asks the reader for the next byte window of rows.
type FetchInput[R domain.ChunkReaderConfig] struct {
	Reader     R
	Offset     uint64
	ChunkBytes uint
}

// FetchOutput carries the decoded chunk.
type FetchOutput struct {
	Chunk *domain.RowChunk
}

// ProcessInput hands one row chunk to the store-side processor.
type ProcessInput[S domain.CatalogStoreConfig] struct {
	Store      S
	JobID      string
	StartIndex int
	Rows       []domain.RawRow
}

// ProcessOutput carries the chunk's slice of the run report.
type ProcessOutput struct {
	Report domain.RunReport
}
