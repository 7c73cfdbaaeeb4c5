package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/localmart/catalog-ingest/pkg/domain"
)

// Error constants and variables
const (
	ErrMsgSQLiteDBConnection    = "sqlite: error connecting to database"
	ErrMsgSQLiteDBDisconnection = "sqlite: error disconnecting from database"
	ErrMsgSQLiteDBFileRequired  = "sqlite: db file path is required"
)

var (
	ErrSQLiteDBConn         = errors.New(ErrMsgSQLiteDBConnection)
	ErrSQLiteDBDisconn      = errors.New(ErrMsgSQLiteDBDisconnection)
	ErrSQLiteDBFileRequired = errors.New(ErrMsgSQLiteDBFileRequired)
)

const StoreName = "sqlite-catalog-store"

// CatalogStore persists merchants and offers in a SQLite database.
type CatalogStore struct {
	db *sqlx.DB
}

// NewCatalogStore connects to the database file and applies the schema.
// "file::memory:?cache=shared" works for tests.
func NewCatalogStore(dbFile string) (*CatalogStore, error) {
	if dbFile == "" {
		return nil, ErrSQLiteDBFileRequired
	}

	db, err := sqlx.Connect("sqlite3", dbFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSQLiteDBConn, err.Error())
	}
	// single writer; sqlite serializes writes anyway and a second connection
	// would race the shared in-memory db in tests
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(CatalogSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: error applying schema: %w", err)
	}

	return &CatalogStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *CatalogStore) Close(ctx context.Context) error {
	if err := s.db.Close(); err != nil {
		return ErrSQLiteDBDisconn
	}
	return nil
}

// CreateMerchant inserts a new merchant. A tripped unique name constraint
// surfaces as domain.ErrDuplicateMerchant so callers can re-query.
func (s *CatalogStore) CreateMerchant(ctx context.Context, m *domain.Merchant) (*domain.Merchant, error) {
	rec := *m
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO merchants (id, name, address, phone, category)
		VALUES (:id, :name, :address, :phone, :category)`, &rec)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateMerchant
		}
		return nil, fmt.Errorf("sqlite: error inserting merchant: %w", err)
	}
	return &rec, nil
}

// GetMerchantByName looks up a merchant by its exact name.
func (s *CatalogStore) GetMerchantByName(ctx context.Context, name string) (*domain.Merchant, error) {
	var m domain.Merchant
	err := s.db.GetContext(ctx, &m, `SELECT id, name, address, phone, category FROM merchants WHERE name = ?`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMerchantNotFound
		}
		return nil, fmt.Errorf("sqlite: error fetching merchant by name: %w", err)
	}
	return &m, nil
}

// GetMerchant looks up a merchant by id.
func (s *CatalogStore) GetMerchant(ctx context.Context, id string) (*domain.Merchant, error) {
	var m domain.Merchant
	err := s.db.GetContext(ctx, &m, `SELECT id, name, address, phone, category FROM merchants WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMerchantNotFound
		}
		return nil, fmt.Errorf("sqlite: error fetching merchant: %w", err)
	}
	return &m, nil
}

// ListMerchants returns a page of merchants ordered by name.
func (s *CatalogStore) ListMerchants(ctx context.Context, offset, limit int) ([]domain.Merchant, error) {
	merchants := []domain.Merchant{}
	err := s.db.SelectContext(ctx, &merchants, `
		SELECT id, name, address, phone, category FROM merchants
		ORDER BY name LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: error listing merchants: %w", err)
	}
	return merchants, nil
}

// CreateOffer inserts a new offer under an existing merchant.
func (s *CatalogStore) CreateOffer(ctx context.Context, o *domain.Offer) (*domain.Offer, error) {
	rec := *o
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.MerchantID == "" {
		return nil, domain.ErrMerchantNotFound
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO offers (id, title, description, image_url, discount, start_date, end_date, category, merchant_id, external_url)
		VALUES (:id, :title, :description, :image_url, :discount, :start_date, :end_date, :category, :merchant_id, :external_url)`, &rec)
	if err != nil {
		return nil, fmt.Errorf("sqlite: error inserting offer: %w", err)
	}
	return &rec, nil
}

// GetOffer looks up an offer by id.
func (s *CatalogStore) GetOffer(ctx context.Context, id string) (*domain.Offer, error) {
	var o domain.Offer
	err := s.db.GetContext(ctx, &o, `
		SELECT id, title, description, image_url, discount, start_date, end_date, category, merchant_id, external_url
		FROM offers WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOfferNotFound
		}
		return nil, fmt.Errorf("sqlite: error fetching offer: %w", err)
	}
	return &o, nil
}

// ListOffers returns a page of offers.
func (s *CatalogStore) ListOffers(ctx context.Context, offset, limit int) ([]domain.Offer, error) {
	offers := []domain.Offer{}
	err := s.db.SelectContext(ctx, &offers, `
		SELECT id, title, description, image_url, discount, start_date, end_date, category, merchant_id, external_url
		FROM offers ORDER BY title LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: error listing offers: %w", err)
	}
	return offers, nil
}

// ListOffersByMerchant returns all offers belonging to one merchant.
func (s *CatalogStore) ListOffersByMerchant(ctx context.Context, merchantID string) ([]domain.Offer, error) {
	offers := []domain.Offer{}
	err := s.db.SelectContext(ctx, &offers, `
		SELECT id, title, description, image_url, discount, start_date, end_date, category, merchant_id, external_url
		FROM offers WHERE merchant_id = ? ORDER BY title`, merchantID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: error listing offers by merchant: %w", err)
	}
	return offers, nil
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Config builds a SQLite-backed catalog store.
type Config struct {
	DBFile string
}

// Name of the store.
func (c Config) Name() string { return StoreName }

// BuildStore builds the store from the config.
func (c Config) BuildStore(ctx context.Context) (domain.CatalogStore, error) {
	return NewCatalogStore(c.DBFile)
}
