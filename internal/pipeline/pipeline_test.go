package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/localmart/catalog-ingest/pkg/domain"
)

// fakeCatalogStore is an in-memory catalog with the same uniqueness contract
// as the real stores. Hooks let tests inject races and write failures.
type fakeCatalogStore struct {
	mu      sync.Mutex
	byName  map[string]*domain.Merchant
	offers  []domain.Offer
	creates int
	lookups int

	failOffer            func(o *domain.Offer) error
	beforeCreateMerchant func(name string)
}

func newFakeCatalogStore() *fakeCatalogStore {
	return &fakeCatalogStore{byName: map[string]*domain.Merchant{}}
}

func (s *fakeCatalogStore) GetMerchantByName(ctx context.Context, name string) (*domain.Merchant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if m, ok := s.byName[name]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, domain.ErrMerchantNotFound
}

func (s *fakeCatalogStore) GetMerchant(ctx context.Context, id string) (*domain.Merchant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byName {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, domain.ErrMerchantNotFound
}

func (s *fakeCatalogStore) CreateMerchant(ctx context.Context, m *domain.Merchant) (*domain.Merchant, error) {
	if s.beforeCreateMerchant != nil {
		s.beforeCreateMerchant(m.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[m.Name]; exists {
		return nil, domain.ErrDuplicateMerchant
	}
	rec := *m
	rec.ID = uuid.NewString()
	s.byName[rec.Name] = &rec
	s.creates++
	cp := rec
	return &cp, nil
}

func (s *fakeCatalogStore) ListMerchants(ctx context.Context, offset, limit int) ([]domain.Merchant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Merchant{}
	for _, m := range s.byName {
		out = append(out, *m)
	}
	return out, nil
}

func (s *fakeCatalogStore) CreateOffer(ctx context.Context, o *domain.Offer) (*domain.Offer, error) {
	if s.failOffer != nil {
		if err := s.failOffer(o); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := *o
	rec.ID = uuid.NewString()
	s.offers = append(s.offers, rec)
	cp := rec
	return &cp, nil
}

func (s *fakeCatalogStore) GetOffer(ctx context.Context, id string) (*domain.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.offers {
		if o.ID == id {
			cp := o
			return &cp, nil
		}
	}
	return nil, domain.ErrOfferNotFound
}

func (s *fakeCatalogStore) ListOffers(ctx context.Context, offset, limit int) ([]domain.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Offer{}, s.offers...), nil
}

func (s *fakeCatalogStore) ListOffersByMerchant(ctx context.Context, merchantID string) ([]domain.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Offer{}
	for _, o := range s.offers {
		if o.MerchantID == merchantID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *fakeCatalogStore) Close(ctx context.Context) error { return nil }

// sliceIterator feeds a fixed set of rows to the scheduler.
type sliceIterator struct {
	rows []domain.RawRow
	pos  int
}

func (it *sliceIterator) Next() (domain.RawRow, error) {
	if it.pos >= len(it.rows) {
		return nil, io.EOF
	}
	row := it.rows[it.pos]
	it.pos++
	return row, nil
}

func (it *sliceIterator) Index() int { return it.pos }

func feedRow(shop, title string, overrides map[string]string) domain.RawRow {
	row := domain.RawRow{
		domain.ColShop:        shop,
		domain.ColAddress:     "12 High St",
		domain.ColTitle:       title,
		domain.ColDescription: "desc",
		domain.ColStartDate:   "01/09/2025",
		domain.ColEndDate:     "30/09/2025",
		domain.ColCategory:    "Food",
	}
	for k, v := range overrides {
		row[k] = v
	}
	return row
}

func runScheduler(t *testing.T, store *fakeCatalogStore, rows []domain.RawRow, opts ...SchedulerOption) domain.RunReport {
	t.Helper()
	report := domain.NewReportBuilder()
	processor := NewChunkProcessor(store, NewMerchantResolver(store), 0)
	opts = append([]SchedulerOption{WithChunkInterval(time.Millisecond)}, opts...)
	err := NewScheduler(processor, opts...).Run(context.Background(), &sliceIterator{rows: rows}, report)
	require.NoError(t, err)
	return report.Snapshot()
}

func TestTwoRowsSameMerchant(t *testing.T) {
	store := newFakeCatalogStore()
	rows := []domain.RawRow{
		feedRow("Corner Cafe", "Breakfast Deal", nil),
		feedRow("Corner Cafe", "Lunch Deal", nil),
		feedRow("Book Nook", "Summer Sale", nil),
	}

	report := runScheduler(t, store, rows)
	require.Equal(t, 2, report.MerchantsCreated)
	require.Equal(t, 3, report.OffersCreated)
	require.Equal(t, 0, report.RowsFailed)
	require.Equal(t, 2, store.creates)
	require.Len(t, store.offers, 3)
}

func TestExistingMerchantReused(t *testing.T) {
	store := newFakeCatalogStore()
	_, err := store.CreateMerchant(context.Background(), &domain.Merchant{Name: "Corner Cafe"})
	require.NoError(t, err)
	store.creates = 0

	report := runScheduler(t, store, []domain.RawRow{feedRow("Corner Cafe", "Breakfast Deal", nil)})
	require.Equal(t, 0, report.MerchantsCreated)
	require.Equal(t, 1, report.OffersCreated)
	require.Equal(t, 0, store.creates)
}

func TestMerchantLookedUpOncePerRun(t *testing.T) {
	store := newFakeCatalogStore()
	rows := make([]domain.RawRow, 0, 120)
	for i := 0; i < 120; i++ {
		rows = append(rows, feedRow("Corner Cafe", fmt.Sprintf("Deal %d", i), nil))
	}

	report := runScheduler(t, store, rows)
	require.Equal(t, 1, report.MerchantsCreated)
	require.Equal(t, 120, report.OffersCreated)
	require.Equal(t, 1, store.lookups)
}

func TestChunkSizeDoesNotChangeOutcome(t *testing.T) {
	rows := []domain.RawRow{}
	for i := 0; i < 7; i++ {
		rows = append(rows, feedRow(fmt.Sprintf("Shop %d", i%3), fmt.Sprintf("Deal %d", i), nil))
	}

	small := runScheduler(t, newFakeCatalogStore(), rows, WithChunkSize(1))
	large := runScheduler(t, newFakeCatalogStore(), rows, WithChunkSize(50))

	require.Equal(t, large.MerchantsCreated, small.MerchantsCreated)
	require.Equal(t, large.OffersCreated, small.OffersCreated)
	require.Equal(t, large.RowsFailed, small.RowsFailed)
}

func TestMissingDiscountDefaults(t *testing.T) {
	store := newFakeCatalogStore()
	runScheduler(t, store, []domain.RawRow{feedRow("Corner Cafe", "Breakfast Deal", nil)})
	require.Len(t, store.offers, 1)
	require.Equal(t, domain.DefaultDiscount, store.offers[0].Discount)
}

func TestImpossibleDateFailsRowOnly(t *testing.T) {
	store := newFakeCatalogStore()
	rows := []domain.RawRow{
		feedRow("Corner Cafe", "Breakfast Deal", nil),
		feedRow("Corner Cafe", "Bad Deal", map[string]string{domain.ColStartDate: "31/02/2025"}),
		feedRow("Book Nook", "Summer Sale", nil),
	}

	report := runScheduler(t, store, rows)
	require.Equal(t, 2, report.OffersCreated)
	require.Equal(t, 1, report.RowsFailed)
	require.Len(t, report.Errors, 1)
	require.Equal(t, 1, report.Errors[0].RowIndex)
	require.Contains(t, report.Errors[0].Reason, domain.ErrMsgInvalidDate)
}

func TestMissingRequiredColumnFailsRow(t *testing.T) {
	store := newFakeCatalogStore()
	rows := []domain.RawRow{
		feedRow("", "Breakfast Deal", nil),
		feedRow("Book Nook", "Summer Sale", nil),
	}

	report := runScheduler(t, store, rows)
	require.Equal(t, 1, report.MerchantsCreated)
	require.Equal(t, 1, report.OffersCreated)
	require.Equal(t, 1, report.RowsFailed)
	require.Equal(t, 0, report.Errors[0].RowIndex)
}

func TestOfferWriteFailureDoesNotStopRun(t *testing.T) {
	store := newFakeCatalogStore()
	store.failOffer = func(o *domain.Offer) error {
		if o.Title == "Bad Deal" {
			return fmt.Errorf("write rejected")
		}
		return nil
	}

	rows := []domain.RawRow{
		feedRow("Corner Cafe", "Breakfast Deal", nil),
		feedRow("Corner Cafe", "Bad Deal", nil),
		feedRow("Corner Cafe", "Lunch Deal", nil),
	}

	report := runScheduler(t, store, rows)
	require.Equal(t, 2, report.OffersCreated)
	require.Equal(t, 1, report.RowsFailed)
	require.Contains(t, report.Errors[0].Reason, "write rejected")
}

func TestResolverLosesCreateRace(t *testing.T) {
	store := newFakeCatalogStore()
	var raced bool
	store.beforeCreateMerchant = func(name string) {
		if raced {
			return
		}
		raced = true
		// another writer lands the same name first
		store.mu.Lock()
		store.byName[name] = &domain.Merchant{ID: "external-id", Name: name}
		store.mu.Unlock()
	}

	report := runScheduler(t, store, []domain.RawRow{feedRow("Corner Cafe", "Breakfast Deal", nil)})
	require.Equal(t, 0, report.MerchantsCreated)
	require.Equal(t, 1, report.OffersCreated)
	require.Equal(t, "external-id", store.offers[0].MerchantID)
}

func TestResolverCacheHit(t *testing.T) {
	store := newFakeCatalogStore()
	resolver := NewMerchantResolver(store)
	ctx := context.Background()

	m1, created, err := resolver.Resolve(ctx, &domain.Merchant{Name: "Corner Cafe", Address: "12 High St"})
	require.NoError(t, err)
	require.True(t, created)

	m2, created, err := resolver.Resolve(ctx, &domain.Merchant{Name: "Corner Cafe", Address: "other"})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, m1.ID, m2.ID)
	require.Equal(t, 1, store.lookups)
}

func TestCancellationBetweenChunks(t *testing.T) {
	store := newFakeCatalogStore()
	ctx, cancel := context.WithCancel(context.Background())

	processed := 0
	store.failOffer = func(o *domain.Offer) error {
		processed++
		if processed == 2 {
			cancel()
		}
		return nil
	}

	rows := []domain.RawRow{
		feedRow("Corner Cafe", "Deal 1", nil),
		feedRow("Corner Cafe", "Deal 2", nil),
		feedRow("Corner Cafe", "Deal 3", nil),
		feedRow("Corner Cafe", "Deal 4", nil),
	}

	report := domain.NewReportBuilder()
	processor := NewChunkProcessor(store, NewMerchantResolver(store), 1)
	sched := NewScheduler(processor, WithChunkSize(2), WithChunkInterval(time.Millisecond))
	err := sched.Run(ctx, &sliceIterator{rows: rows}, report)
	require.ErrorIs(t, err, context.Canceled)

	snapshot := report.Snapshot()
	require.Equal(t, 2, snapshot.OffersCreated)
	require.Equal(t, 0, snapshot.RowsFailed)
	require.Len(t, store.offers, 2)
}

func TestCancellationDoesNotAbortInFlightChunk(t *testing.T) {
	store := newFakeCatalogStore()
	ctx, cancel := context.WithCancel(context.Background())

	// cancel while the first of three same-chunk writes is in flight
	store.failOffer = func(o *domain.Offer) error {
		cancel()
		return nil
	}

	rows := []domain.RawRow{
		feedRow("Corner Cafe", "Deal 1", nil),
		feedRow("Corner Cafe", "Deal 2", nil),
		feedRow("Corner Cafe", "Deal 3", nil),
	}

	report := domain.NewReportBuilder()
	processor := NewChunkProcessor(store, NewMerchantResolver(store), 1)
	sched := NewScheduler(processor, WithChunkSize(50), WithChunkInterval(time.Millisecond))
	err := sched.Run(ctx, &sliceIterator{rows: rows}, report)
	require.ErrorIs(t, err, context.Canceled)

	// the started chunk ran to completion; rows behind the cancel are
	// written, not charged as failures
	snapshot := report.Snapshot()
	require.Equal(t, 3, snapshot.OffersCreated)
	require.Equal(t, 0, snapshot.RowsFailed)
	require.Empty(t, snapshot.Errors)
	require.Len(t, store.offers, 3)
}
