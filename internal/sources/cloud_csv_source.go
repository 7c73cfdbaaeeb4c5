package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/localmart/catalog-ingest/pkg/domain"
	"github.com/localmart/catalog-ingest/pkg/utils"
)

// Error constants and variables
const (
	ErrMsgCloudCSVBucketRequired      = "cloud csv: bucket name is required"
	ErrMsgCloudCSVObjectPathRequired  = "cloud csv: object path is required"
	ErrMsgCloudCSVUnsupportedProvider = "cloud csv: unsupported provider, only 'gcs' is supported"
	ErrMsgCloudCSVObjectNotExist      = "cloud csv: object does not exist or error getting attributes"
)

var (
	ErrCloudCSVBucketRequired      = errors.New(ErrMsgCloudCSVBucketRequired)
	ErrCloudCSVObjectPathRequired  = errors.New(ErrMsgCloudCSVObjectPathRequired)
	ErrCloudCSVUnsupportedProvider = errors.New(ErrMsgCloudCSVUnsupportedProvider)
	ErrCloudCSVObjectNotExist      = errors.New(ErrMsgCloudCSVObjectNotExist)
)

const CloudCSVSourceName = "cloud-csv-source"

type CloudProvider string

const (
	CloudProviderGCS CloudProvider = "gcs"
)

// headerProbeBytes bounds the range read used to locate the header line.
const headerProbeBytes = 32 << 10

// Cloud CSV (GCS) feed source.
type cloudCSVSource struct {
	bucket    string
	path      string
	size      int64
	delimiter rune
	headers   []string
	dataStart uint64
	client    *storage.Client
}

// Name of the source.
func (s *cloudCSVSource) Name() string { return CloudCSVSourceName }

// Close closes the cloud CSV source.
func (s *cloudCSVSource) Close(ctx context.Context) error {
	return s.client.Close()
}

// Open returns the object byte stream for a full forward pass.
func (s *cloudCSVSource) Open(ctx context.Context) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.path).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("cloud csv: error opening object %s/%s: %w", s.bucket, s.path, err)
	}
	return r, nil
}

// NextChunk range-reads up to maxBytes from the object at the given byte
// offset and decodes whole lines into rows.
func (s *cloudCSVSource) NextChunk(ctx context.Context, offset uint64, maxBytes uint) (*domain.RowChunk, error) {
	if maxBytes == 0 {
		return nil, ErrChunkSizeMustBePositive
	}

	if offset == 0 {
		offset = s.dataStart
	}
	if int64(offset) >= s.size {
		return &domain.RowChunk{StartOffset: offset, NextOffset: offset, Done: true}, nil
	}

	length := int64(maxBytes)
	done := false
	if int64(offset)+length >= s.size {
		length = s.size - int64(offset)
		done = true
	}

	r, err := s.client.Bucket(s.bucket).Object(s.path).NewRangeReader(ctx, int64(offset), length)
	if err != nil {
		return nil, fmt.Errorf("cloud csv: error range-reading %s/%s at offset %d: %w", s.bucket, s.path, offset, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("cloud csv: error reading range: %w", err)
	}

	return decodeChunk(s.headers, s.delimiter, data, offset, done)
}

// CloudCSVConfig configures a cloud object feed.
type CloudCSVConfig struct {
	Bucket    string
	Path      string
	Provider  string
	Delimiter rune
}

// Name of the source.
func (c CloudCSVConfig) Name() string { return CloudCSVSourceName }

// BuildSource builds a streaming feed source from the config.
func (c CloudCSVConfig) BuildSource(ctx context.Context) (domain.FeedSource, error) {
	return c.build(ctx)
}

// BuildReader builds an offset-driven chunk reader from the config. The
// header line is probed once here and cached.
func (c CloudCSVConfig) BuildReader(ctx context.Context) (domain.ChunkReader, error) {
	s, err := c.build(ctx)
	if err != nil {
		return nil, err
	}

	probe := int64(headerProbeBytes)
	if probe > s.size {
		probe = s.size
	}
	r, err := s.client.Bucket(s.bucket).Object(s.path).NewRangeReader(ctx, 0, probe)
	if err != nil {
		return nil, fmt.Errorf("cloud csv: error reading header: %w", err)
	}
	defer r.Close()

	cr := csv.NewReader(r)
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

func (c CloudCSVConfig) build(ctx context.Context) (*cloudCSVSource, error) {
	if c.Bucket == "" {
		return nil, ErrCloudCSVBucketRequired
	}
	if c.Path == "" {
		return nil, ErrCloudCSVObjectPathRequired
	}
	if c.Provider != "" && CloudProvider(c.Provider) != CloudProviderGCS {
		return nil, ErrCloudCSVUnsupportedProvider
	}

	delim := c.Delimiter
	if delim == 0 {
		delim = ','
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("cloud csv: error creating storage client: %w", err)
	}

	obj := client.Bucket(c.Bucket).Object(c.Path)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		client.Close()
		return nil, ErrCloudCSVObjectNotExist
	}

	return &cloudCSVSource{
		bucket:    c.Bucket,
		path:      c.Path,
		size:      attrs.Size,
		delimiter: delim,
		client:    client,
	}, nil
}
