package runs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/localmart/catalog-ingest/pkg/domain"
)

func TestMemoryRegistry(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	_, err := reg.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrRunNotFound)

	first := &Run{
		ID:        "run-1",
		State:     StateRunning,
		StartedAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, reg.Put(ctx, first))

	got, err := reg.Get(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, StateRunning, got.State)

	first.State = StateCompleted
	first.FinishedAt = time.Now()
	first.Report = &domain.RunReport{MerchantsCreated: 2, OffersCreated: 3}
	require.NoError(t, reg.Put(ctx, first))

	got, err = reg.Get(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, StateCompleted, got.State)
	require.Equal(t, 3, got.Report.OffersCreated)

	require.NoError(t, reg.Put(ctx, &Run{ID: "run-2", State: StatePending, StartedAt: time.Now()}))

	all, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "run-2", all[0].ID)
}
