package sources

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/localmart/catalog-ingest/pkg/domain"
	"github.com/localmart/catalog-ingest/pkg/utils"
)

// Error constants and variables
const (
	ErrMsgUnsupportedContentType = "feed: unsupported content type"
	ErrMsgEmptyFeed              = "feed: empty stream"
	ErrMsgHeaderDecode           = "feed: error decoding header"
	ErrMsgFeedStream             = "feed: stream read error"
)

var (
	ErrUnsupportedContentType = errors.New(ErrMsgUnsupportedContentType)
	ErrEmptyFeed              = errors.New(ErrMsgEmptyFeed)
	ErrHeaderDecode           = errors.New(ErrMsgHeaderDecode)
	ErrFeedStream             = errors.New(ErrMsgFeedStream)
)

// ValidateContentType fails fast on anything that does not announce a CSV
// payload, before a single row is read.
func ValidateContentType(contentType string) error {
	if !strings.Contains(strings.ToLower(contentType), "csv") {
		return fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	return nil
}

// RowDecoder turns a feed byte stream into a lazy, finite sequence of raw
// rows. It makes a single forward pass and is not restartable. The header is
// consumed at construction, so an undecodable stream fails before any row is
// yielded.
type RowDecoder struct {
	r       *csv.Reader
	headers []string
	index   int
}

// NewRowDecoder validates the content type, reads the header line and returns
// a decoder positioned at the first data row.
func NewRowDecoder(r io.Reader, contentType string, delimiter rune) (*RowDecoder, error) {
	if err := ValidateContentType(contentType); err != nil {
		return nil, err
	}

	if delimiter == 0 {
		delimiter = ','
	}

	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	h, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFeed
		}
		return nil, fmt.Errorf("%w: %s", ErrHeaderDecode, err.Error())
	}

	return &RowDecoder{
		r:       cr,
		headers: utils.CleanHeaders(h),
	}, nil
}

// Headers returns the cleaned header names.
func (d *RowDecoder) Headers() []string { return d.headers }

// Index returns the zero-based index of the next data row.
func (d *RowDecoder) Index() int { return d.index }

// Next yields the next raw row, or io.EOF when the stream is exhausted.
// A malformed line is returned as a non-EOF error for that row only; the
// decoder stays usable and callers may continue with the following row.
// An underlying read failure is returned wrapped in ErrFeedStream; the
// stream cannot make progress past it.
func (d *RowDecoder) Next() (domain.RawRow, error) {
	rec, err := d.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		var parseErr *csv.ParseError
		if !errors.As(err, &parseErr) {
			return nil, fmt.Errorf("%w: %s", ErrFeedStream, err.Error())
		}
		d.index++
		return nil, err
	}
	d.index++
	return mapRecord(d.headers, rec), nil
}

// mapRecord zips one CSV record with the header names. Cells beyond the
// header width are dropped; missing trailing cells stay absent.
func mapRecord(headers, values []string) domain.RawRow {
	row := make(domain.RawRow, len(headers))
	for i, h := range headers {
		if h == "" {
			continue
		}
		if i < len(values) {
			row[h] = values[i]
		}
	}
	return row
}
