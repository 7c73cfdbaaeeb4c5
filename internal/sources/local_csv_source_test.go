package sources

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/localmart/catalog-ingest/pkg/domain"
)

func writeTestFeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feed.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const testFeed = "shop,address,title,description,start_date,end_date,category\n" +
	"Corner Cafe,12 High St,Breakfast Deal,Two for one,01/09/2025,30/09/2025,Food\n" +
	"Book Nook,3 Mill Ln,Summer Sale,Half price,15/08/2025,31/08/2025,Books\n" +
	"Corner Cafe,12 High St,Lunch Deal,Free drink,01/09/2025,30/09/2025,Food\n"

func TestLocalCSVConfigValidation(t *testing.T) {
	_, err := LocalCSVConfig{}.BuildSource(context.Background())
	require.ErrorIs(t, err, ErrLocalCSVPathRequired)

	_, err = LocalCSVConfig{Path: "no/such/feed.csv"}.BuildReader(context.Background())
	require.ErrorIs(t, err, ErrLocalCSVFileNotFound)
}

func TestLocalCSVSourceOpen(t *testing.T) {
	path := writeTestFeed(t, testFeed)

	src, err := LocalCSVConfig{Path: path}.BuildSource(context.Background())
	require.NoError(t, err)
	require.Equal(t, LocalCSVSourceName, src.Name())

	rc, err := src.Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	d, err := NewRowDecoder(rc, "text/csv", 0)
	require.NoError(t, err)

	var rows []domain.RawRow
	for {
		row, err := d.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
	require.Len(t, rows, 3)
	require.Equal(t, "Book Nook", rows[1][domain.ColShop])
	require.NoError(t, src.Close(context.Background()))
}

func TestLocalCSVReaderSinglePull(t *testing.T) {
	path := writeTestFeed(t, testFeed)

	r, err := LocalCSVConfig{Path: path}.BuildReader(context.Background())
	require.NoError(t, err)

	chunk, err := r.NextChunk(context.Background(), 0, 1<<20)
	require.NoError(t, err)
	require.True(t, chunk.Done)
	require.Len(t, chunk.Rows, 3)
	require.Equal(t, "Corner Cafe", chunk.Rows[0][domain.ColShop])
	require.Equal(t, "Summer Sale", chunk.Rows[1][domain.ColTitle])
}

func TestLocalCSVReaderOffsetWalk(t *testing.T) {
	path := writeTestFeed(t, testFeed)

	r, err := LocalCSVConfig{Path: path}.BuildReader(context.Background())
	require.NoError(t, err)

	var rows []domain.RawRow
	var offset uint64
	for {
		chunk, err := r.NextChunk(context.Background(), offset, 120)
		require.NoError(t, err)
		require.Greater(t, chunk.NextOffset, chunk.StartOffset)
		rows = append(rows, chunk.Rows...)
		if chunk.Done {
			break
		}
		offset = chunk.NextOffset
	}

	require.Len(t, rows, 3)
	require.Equal(t, "Corner Cafe", rows[0][domain.ColShop])
	require.Equal(t, "Book Nook", rows[1][domain.ColShop])
	require.Equal(t, "Lunch Deal", rows[2][domain.ColTitle])
}

func TestLocalCSVReaderZeroSize(t *testing.T) {
	path := writeTestFeed(t, testFeed)

	r, err := LocalCSVConfig{Path: path}.BuildReader(context.Background())
	require.NoError(t, err)

	_, err = r.NextChunk(context.Background(), 0, 0)
	require.ErrorIs(t, err, ErrChunkSizeMustBePositive)
}

func TestLocalCSVReaderEmptyFeed(t *testing.T) {
	path := writeTestFeed(t, "")

	_, err := LocalCSVConfig{Path: path}.BuildReader(context.Background())
	require.ErrorIs(t, err, ErrEmptyFeed)
}

func TestDecodeChunkPartialLine(t *testing.T) {
	headers := []string{"shop", "address"}
	data := []byte("Corner Cafe,12 High St\nBook Noo")

	chunk, err := decodeChunk(headers, ',', data, 10, false)
	require.NoError(t, err)
	require.Len(t, chunk.Rows, 1)
	require.Equal(t, uint64(10+23), chunk.NextOffset)
}
