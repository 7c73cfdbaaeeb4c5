package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/localmart/catalog-ingest/pkg/domain"
)

// MerchantResolver maps merchant names to persisted merchants for one run.
// Resolved merchants are cached so a name is looked up against the store at
// most once per run; the cache never outlives the run. The unique name
// constraint in the store is the backstop when another writer creates the
// same merchant between the lookup and the insert, in which case the
// resolver re-queries and adopts the winner.
type MerchantResolver struct {
	store domain.MerchantStore

	mu    sync.Mutex
	cache map[string]*domain.Merchant
}

// NewMerchantResolver returns a resolver with an empty cache.
func NewMerchantResolver(store domain.MerchantStore) *MerchantResolver {
	return &MerchantResolver{
		store: store,
		cache: map[string]*domain.Merchant{},
	}
}

// Resolve returns the merchant for the given identity, creating it if no
// merchant with that exact name exists. The boolean reports whether this call
// created the merchant.
func (r *MerchantResolver) Resolve(ctx context.Context, m *domain.Merchant) (*domain.Merchant, bool, error) {
	r.mu.Lock()
	if cached, ok := r.cache[m.Name]; ok {
		r.mu.Unlock()
		return cached, false, nil
	}
	r.mu.Unlock()

	existing, err := r.store.GetMerchantByName(ctx, m.Name)
	if err == nil {
		r.put(existing)
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrMerchantNotFound) {
		return nil, false, err
	}

	created, err := r.store.CreateMerchant(ctx, m)
	if err == nil {
		r.put(created)
		return created, true, nil
	}
	if !errors.Is(err, domain.ErrDuplicateMerchant) {
		return nil, false, err
	}

	// lost the create race; the winner's row is the merchant for this name
	winner, err := r.store.GetMerchantByName(ctx, m.Name)
	if err != nil {
		return nil, false, err
	}
	r.put(winner)
	return winner, false, nil
}

func (r *MerchantResolver) put(m *domain.Merchant) {
	r.mu.Lock()
	r.cache[m.Name] = m
	r.mu.Unlock()
}
