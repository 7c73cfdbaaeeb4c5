package domain

import (
	"context"
	"errors"
	"io"
	"time"
)

// RawRow is one decoded feed line, keyed by column name.
// Rows are ephemeral; they are discarded once normalized.
type RawRow map[string]string

// Feed column names. Unknown columns in a feed are ignored.
const (
	ColShop         = "shop"
	ColAddress      = "address"
	ColPhone        = "phone"
	ColShopCategory = "shop_category"
	ColTitle        = "title"
	ColDescription  = "description"
	ColImageURL     = "image_url"
	ColDiscount     = "discount"
	ColStartDate    = "start_date"
	ColEndDate      = "end_date"
	ColCategory     = "category"
	ColOfferURL     = "offer_url"
)

// NormalizedRow is the typed form of a feed row after parsing and defaulting.
type NormalizedRow struct {
	MerchantName     string
	MerchantAddress  string
	MerchantPhone    string
	MerchantCategory string
	OfferTitle       string
	OfferDescription string
	OfferImageURL    string
	OfferDiscount    int
	StartDate        time.Time
	EndDate          time.Time
	Category         string
	OfferExternalURL string
}

// Merchant is an independent catalog entity, unique by exact name.
type Merchant struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Address  string `json:"address" db:"address"`
	Phone    string `json:"phone,omitempty" db:"phone"`
	Category string `json:"category,omitempty" db:"category"`
}

// Offer is a dependent catalog entity; it exists only under a merchant.
type Offer struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	ImageURL    string    `json:"image_url,omitempty" db:"image_url"`
	Discount    int       `json:"discount" db:"discount"`
	StartDate   time.Time `json:"start_date" db:"start_date"`
	EndDate     time.Time `json:"end_date" db:"end_date"`
	Category    string    `json:"category" db:"category"`
	MerchantID  string    `json:"merchant_id" db:"merchant_id"`
	ExternalURL string    `json:"external_url,omitempty" db:"external_url"`
}

// RowFailure records one failed feed row with its zero-based row index.
type RowFailure struct {
	RowIndex int    `json:"row_index"`
	Reason   string `json:"reason"`
}

// RunReport is the outcome of one ingestion run.
type RunReport struct {
	MerchantsCreated int          `json:"merchants_created"`
	OffersCreated    int          `json:"offers_created"`
	RowsFailed       int          `json:"rows_failed"`
	Errors           []RowFailure `json:"errors,omitempty"`
}

// Error constants and variables
const (
	ErrMsgMerchantNotFound  = "catalog: merchant not found"
	ErrMsgOfferNotFound     = "catalog: offer not found"
	ErrMsgDuplicateMerchant = "catalog: merchant name already exists"
)

var (
	ErrMerchantNotFound  = errors.New(ErrMsgMerchantNotFound)
	ErrOfferNotFound     = errors.New(ErrMsgOfferNotFound)
	ErrDuplicateMerchant = errors.New(ErrMsgDuplicateMerchant)
)

// MerchantStore is the persistent merchant collaborator.
// CreateMerchant returns ErrDuplicateMerchant when the unique name constraint
// trips, which callers resolve by re-querying.
type MerchantStore interface {
	GetMerchantByName(ctx context.Context, name string) (*Merchant, error)
	GetMerchant(ctx context.Context, id string) (*Merchant, error)
	CreateMerchant(ctx context.Context, m *Merchant) (*Merchant, error)
	ListMerchants(ctx context.Context, offset, limit int) ([]Merchant, error)
}

// OfferStore is the persistent offer collaborator.
type OfferStore interface {
	CreateOffer(ctx context.Context, o *Offer) (*Offer, error)
	GetOffer(ctx context.Context, id string) (*Offer, error)
	ListOffers(ctx context.Context, offset, limit int) ([]Offer, error)
	ListOffersByMerchant(ctx context.Context, merchantID string) ([]Offer, error)
}

// CatalogStore is what the pipeline needs from the persistence layer.
type CatalogStore interface {
	MerchantStore
	OfferStore
	Close(ctx context.Context) error
}

// CatalogStoreConfig knows how to build a CatalogStore.
type CatalogStoreConfig interface {
	BuildStore(ctx context.Context) (CatalogStore, error)
	Name() string
}

// FeedSource provides the raw feed byte stream for one run.
type FeedSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	Name() string
	Close(ctx context.Context) error
}

// FeedSourceConfig knows how to build a FeedSource.
type FeedSourceConfig interface {
	BuildSource(ctx context.Context) (FeedSource, error)
	Name() string
}

// RowChunk is a bounded subsequence of decoded rows handed to the scheduler
// as one unit. StartIndex is the zero-based index of the first data row.
type RowChunk struct {
	StartIndex  int
	Rows        []RawRow
	StartOffset uint64
	NextOffset  uint64
	Done        bool
}

// ChunkReader pulls the next chunk of rows given a byte offset. It exists for
// callers that cannot hold a streaming decoder open between pulls; the
// in-process scheduler uses the decoder directly.
type ChunkReader interface {
	NextChunk(ctx context.Context, offset uint64, maxBytes uint) (*RowChunk, error)
	Name() string
	Close(ctx context.Context) error
}

// ChunkReaderConfig knows how to build a ChunkReader.
type ChunkReaderConfig interface {
	BuildReader(ctx context.Context) (ChunkReader, error)
	Name() string
}
