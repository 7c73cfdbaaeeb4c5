package sources

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/localmart/catalog-ingest/pkg/domain"
	"github.com/localmart/catalog-ingest/pkg/utils"
)

// Error constants and variables
const (
	ErrMsgLocalCSVPathRequired    = "local csv: path is required"
	ErrMsgLocalCSVFileNotFound    = "local csv: error opening file"
	ErrMsgChunkSizeMustBePositive = "chunk size must be greater than 0"
)

var (
	ErrLocalCSVPathRequired    = errors.New(ErrMsgLocalCSVPathRequired)
	ErrLocalCSVFileNotFound    = errors.New(ErrMsgLocalCSVFileNotFound)
	ErrChunkSizeMustBePositive = errors.New(ErrMsgChunkSizeMustBePositive)
)

const LocalCSVSourceName = "local-csv-source"

// Local CSV feed source. Implements both the streaming feed contract used by
// the in-process ingestor and the offset-driven chunk reader used by the
// workflow activities.
type localCSVSource struct {
	path      string
	delimiter rune
	headers   []string
	dataStart uint64
}

// Name of the source.
func (s *localCSVSource) Name() string { return LocalCSVSourceName }

// Close closes the local CSV source.
func (s *localCSVSource) Close(ctx context.Context) error {
	// No resources to close for local CSV source
	return nil
}

// Open returns the feed byte stream for a full forward pass.
func (s *localCSVSource) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, ErrLocalCSVFileNotFound
	}
	return f, nil
}

// NextChunk reads up to maxBytes from the file at the given byte offset and
// decodes whole lines into rows. An offset of 0 means the first data byte
// after the header. The trailing partial line is left for the next pull.
func (s *localCSVSource) NextChunk(ctx context.Context, offset uint64, maxBytes uint) (*domain.RowChunk, error) {
	if maxBytes == 0 {
		return nil, ErrChunkSizeMustBePositive
	}

	if offset == 0 {
		offset = s.dataStart
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, ErrLocalCSVFileNotFound
	}
	defer f.Close()

	data := make([]byte, maxBytes)
	n, err := f.ReadAt(data, int64(offset))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("local csv: error reading file %s at offset %d: %w", s.path, offset, err)
	}
	done := uint(n) < maxBytes

	return decodeChunk(s.headers, s.delimiter, data[:n], offset, done)
}

// decodeChunk parses the complete lines of a byte window into raw rows and
// computes the next offset.
func decodeChunk(headers []string, delimiter rune, data []byte, offset uint64, done bool) (*domain.RowChunk, error) {
	usable := data
	next := offset + uint64(len(data))
	if !done {
		i := bytes.LastIndexByte(data, '\n')
		if i < 0 {
			// window smaller than one line; caller should grow maxBytes
			return &domain.RowChunk{StartOffset: offset, NextOffset: offset, Done: false}, nil
		}
		usable = data[:i+1]
		next = offset + uint64(i) + 1
	}

	cr := csv.NewReader(bytes.NewReader(usable))
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var rows []domain.RawRow
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// malformed line inside the window: surface as an empty row so
			// normalization records the failure and the run continues
			rows = append(rows, domain.RawRow{})
			continue
		}
		rows = append(rows, mapRecord(headers, rec))
	}

	return &domain.RowChunk{
		Rows:        rows,
		StartOffset: offset,
		NextOffset:  next,
		Done:        done,
	}, nil
}

// LocalCSVConfig configures a local CSV feed.
type LocalCSVConfig struct {
	Path      string
	Delimiter rune // e.g., ',', '|'
}

// Name of the source.
func (c LocalCSVConfig) Name() string { return LocalCSVSourceName }

// BuildSource builds a streaming feed source from the config.
func (c LocalCSVConfig) BuildSource(ctx context.Context) (domain.FeedSource, error) {
	s, err := c.build()
	if err != nil {
		return nil, err
	}
	return s, nil
}

// BuildReader builds an offset-driven chunk reader from the config. The
// header line is read once here and cached.
func (c LocalCSVConfig) BuildReader(ctx context.Context) (domain.ChunkReader, error) {
	s, err := c.build()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(c.Path)
	if err != nil {
		return nil, ErrLocalCSVFileNotFound
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = s.delimiter
	cr.FieldsPerRecord = -1

	h, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFeed
		}
		return nil, fmt.Errorf("%w: %s", ErrHeaderDecode, err.Error())
	}
	s.headers = utils.CleanHeaders(h)
	s.dataStart = uint64(cr.InputOffset())

	return s, nil
}

func (c LocalCSVConfig) build() (*localCSVSource, error) {
	if c.Path == "" {
		return nil, ErrLocalCSVPathRequired
	}
	delim := c.Delimiter
	if delim == 0 {
		delim = ',' // default
	}
	return &localCSVSource{path: c.Path, delimiter: delim}, nil
}
