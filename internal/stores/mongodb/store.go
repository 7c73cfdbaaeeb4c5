package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/localmart/catalog-ingest/pkg/domain"
)

// Error constants and variables
const (
	ErrMsgMongoMissingDBName = "mongo: missing database name"
)

var (
	ErrMongoMissingDBName = errors.New(ErrMsgMongoMissingDBName)
)

const (
	StoreName = "mongo-catalog-store"

	merchantCollection = "merchants"
	offerCollection    = "offers"

	defaultPoolSize = 10
)

type merchantDoc struct {
	ID       string `bson:"_id"`
	Name     string `bson:"name"`
	Address  string `bson:"address"`
	Phone    string `bson:"phone,omitempty"`
	Category string `bson:"category,omitempty"`
}

type offerDoc struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	ImageURL    string    `bson:"image_url,omitempty"`
	Discount    int       `bson:"discount"`
	StartDate   time.Time `bson:"start_date"`
	EndDate     time.Time `bson:"end_date"`
	Category    string    `bson:"category"`
	MerchantID  string    `bson:"merchant_id"`
	ExternalURL string    `bson:"external_url,omitempty"`
}

// CatalogStore persists merchants and offers in MongoDB. Merchant names carry
// a unique index; concurrent creates for the same name trip E11000 and
// callers re-query.
type CatalogStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewCatalogStore connects to MongoDB, pings it and ensures the unique
// merchant name index.
func NewCatalogStore(ctx context.Context, cfg MongoConfig) (*CatalogStore, error) {
	if cfg.DBName == "" {
		return nil, ErrMongoMissingDBName
	}

	builder := NewMongoConnectionBuilder(
		cfg.Protocol,
		cfg.Host,
	).WithUser(
		cfg.User,
	).WithPassword(
		cfg.Pwd,
	).WithConnectionParams(
		cfg.Params,
	)

	dbConnStr, err := builder.Build()
	if err != nil {
		return nil, err
	}

	mOpts := options.Client().ApplyURI(
		dbConnStr,
	).SetReadPreference(
		readpref.Primary(),
	).SetMaxPoolSize(
		defaultPoolSize,
	)

	cl, err := mongo.Connect(ctx, mOpts)
	if err != nil {
		return nil, err
	}

	if err = cl.Ping(ctx, nil); err != nil {
		if disconnectErr := cl.Disconnect(ctx); disconnectErr != nil {
			return nil, errors.Join(err, disconnectErr)
		}
		return nil, err
	}

	s := &CatalogStore{
		client: cl,
		db:     cl.Database(cfg.DBName),
	}

	_, err = s.db.Collection(merchantCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		cl.Disconnect(ctx)
		return nil, fmt.Errorf("mongo: error creating merchant name index: %w", err)
	}

	return s, nil
}

// Close disconnects the underlying client.
func (s *CatalogStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil && err != mongo.ErrClientDisconnected {
		return err
	}
	return nil
}

// CreateMerchant inserts a new merchant. A tripped unique name index surfaces
// as domain.ErrDuplicateMerchant so callers can re-query.
func (s *CatalogStore) CreateMerchant(ctx context.Context, m *domain.Merchant) (*domain.Merchant, error) {
	rec := *m
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	_, err := s.db.Collection(merchantCollection).InsertOne(ctx, merchantToDoc(&rec))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicateMerchant
		}
		return nil, fmt.Errorf("mongo: error inserting merchant: %w", err)
	}
	return &rec, nil
}

// GetMerchantByName looks up a merchant by its exact name.
func (s *CatalogStore) GetMerchantByName(ctx context.Context, name string) (*domain.Merchant, error) {
	var doc merchantDoc
	err := s.db.Collection(merchantCollection).FindOne(ctx, bson.M{"name": name}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrMerchantNotFound
		}
		return nil, fmt.Errorf("mongo: error fetching merchant by name: %w", err)
	}
	return docToMerchant(&doc), nil
}

// GetMerchant looks up a merchant by id.
func (s *CatalogStore) GetMerchant(ctx context.Context, id string) (*domain.Merchant, error) {
	var doc merchantDoc
	err := s.db.Collection(merchantCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrMerchantNotFound
		}
		return nil, fmt.Errorf("mongo: error fetching merchant: %w", err)
	}
	return docToMerchant(&doc), nil
}

// ListMerchants returns a page of merchants ordered by name.
func (s *CatalogStore) ListMerchants(ctx context.Context, offset, limit int) ([]domain.Merchant, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cur, err := s.db.Collection(merchantCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: error listing merchants: %w", err)
	}
	defer cur.Close(ctx)

	merchants := []domain.Merchant{}
	for cur.Next(ctx) {
		var doc merchantDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: error decoding merchant: %w", err)
		}
		merchants = append(merchants, *docToMerchant(&doc))
	}
	return merchants, cur.Err()
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

	_, err := s.db.Collection(offerCollection).InsertOne(ctx, offerToDoc(&rec))
	if err != nil {
		return nil, fmt.Errorf("mongo: error inserting offer: %w", err)
	}
	return &rec, nil
}

// GetOffer looks up an offer by id.
func (s *CatalogStore) GetOffer(ctx context.Context, id string) (*domain.Offer, error) {
	var doc offerDoc
	err := s.db.Collection(offerCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrOfferNotFound
		}
		return nil, fmt.Errorf("mongo: error fetching offer: %w", err)
	}
	return docToOffer(&doc), nil
}

// ListOffers returns a page of offers.
func (s *CatalogStore) ListOffers(ctx context.Context, offset, limit int) ([]domain.Offer, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "title", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	return s.findOffers(ctx, bson.M{}, opts)
}

// ListOffersByMerchant returns all offers belonging to one merchant.
func (s *CatalogStore) ListOffersByMerchant(ctx context.Context, merchantID string) ([]domain.Offer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "title", Value: 1}})
	return s.findOffers(ctx, bson.M{"merchant_id": merchantID}, opts)
}

func (s *CatalogStore) findOffers(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Offer, error) {
	cur, err := s.db.Collection(offerCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: error listing offers: %w", err)
	}
	defer cur.Close(ctx)

	offers := []domain.Offer{}
	for cur.Next(ctx) {
		var doc offerDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: error decoding offer: %w", err)
		}
		offers = append(offers, *docToOffer(&doc))
	}
	return offers, cur.Err()
}

func merchantToDoc(m *domain.Merchant) *merchantDoc {
	return &merchantDoc{
		ID:       m.ID,
		Name:     m.Name,
		Address:  m.Address,
		Phone:    m.Phone,
		Category: m.Category,
	}
}

func docToMerchant(d *merchantDoc) *domain.Merchant {
	return &domain.Merchant{
		ID:       d.ID,
		Name:     d.Name,
		Address:  d.Address,
		Phone:    d.Phone,
		Category: d.Category,
	}
}

func offerToDoc(o *domain.Offer) *offerDoc {
	return &offerDoc{
		ID:          o.ID,
		Title:       o.Title,
		Description: o.Description,
		ImageURL:    o.ImageURL,
		Discount:    o.Discount,
		StartDate:   o.StartDate.UTC(),
		EndDate:     o.EndDate.UTC(),
		Category:    o.Category,
		MerchantID:  o.MerchantID,
		ExternalURL: o.ExternalURL,
	}
}

func docToOffer(d *offerDoc) *domain.Offer {
	return &domain.Offer{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		ImageURL:    d.ImageURL,
		Discount:    d.Discount,
		StartDate:   d.StartDate,
		EndDate:     d.EndDate,
		Category:    d.Category,
		MerchantID:  d.MerchantID,
		ExternalURL: d.ExternalURL,
	}
}

// Config builds a mongo-backed catalog store.
type Config struct {
	Mongo MongoConfig
}

// Name of the store.
func (c Config) Name() string { return StoreName }

// BuildStore builds the store from the config.
func (c Config) BuildStore(ctx context.Context) (domain.CatalogStore, error) {
	return NewCatalogStore(ctx, c.Mongo)
}
