package product

import (
	"context"
	"errors"
	"time"

	"catalog-pricing/internal/domain"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type productDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Price       float64            `bson:"price"`
	Category    string             `bson:"category"`
	Brand       string             `bson:"brand,omitempty"`
	Description string             `bson:"description,omitempty"`
	SKU         string             `bson:"sku,omitempty"`
	Stock       int                `bson:"stock"`
	Tags        []string           `bson:"tags"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d productDocument) toDomain() domain.Product {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return domain.Product{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Price:       d.Price,
		Category:    d.Category,
		Brand:       d.Brand,
		Description: d.Description,
		SKU:         d.SKU,
		Stock:       d.Stock,
		Tags:        tags,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type mongoRepo struct {
	coll   *mongo.Collection
	logger zerolog.Logger
}

// MongoRepository is the document store backend for products.
type MongoRepository interface {
	Repository
	Writer
}

func NewMongo(coll *mongo.Collection, logger zerolog.Logger) MongoRepository {
	return &mongoRepo{coll: coll, logger: logger}
}

func (r *mongoRepo) List(ctx context.Context) ([]domain.Product, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		r.logger.Error().Err(err).Msg("product repo: list")
		return nil, err
	}
	var docs []productDocument
	if err := cur.All(ctx, &docs); err != nil {
		r.logger.Error().Err(err).Msg("product repo: list decode")
		return nil, err
	}

	result := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		result = append(result, d.toDomain())
	}
	r.logger.Debug().Int("count", len(result)).Msg("product repo: list")
	return result, nil
}

func (r *mongoRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.Invalidf("invalid product id %q", id)
	}

	var d productDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.Debug().Str("id", id).Msg("product repo: get not found")
			return nil, domain.ErrNotFound
		}
		r.logger.Error().Err(err).Str("id", id).Msg("product repo: get")
		return nil, err
	}
	p := d.toDomain()
	return &p, nil
}

// Upsert inserts the product, or replaces the one with the same id. An empty
// ID gets a fresh object id.
func (r *mongoRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	oid := primitive.NewObjectID()
	if product.ID != "" {
		parsed, err := primitive.ObjectIDFromHex(product.ID)
		if err != nil {
			return nil, domain.Invalidf("invalid product id %q", product.ID)
		}
		oid = parsed
	}

	now := time.Now().UTC()
	tags := product.Tags
	if tags == nil {
		tags = []string{}
	}
	update := bson.M{
		"$set": bson.M{
			"name":        product.Name,
			"price":       product.Price,
			"category":    product.Category,
			"brand":       product.Brand,
			"description": product.Description,
			"sku":         product.SKU,
			"stock":       product.Stock,
			"tags":        tags,
			"updatedAt":   now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var d productDocument
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&d); err != nil {
		r.logger.Error().Err(err).Str("id", oid.Hex()).Str("sku", product.SKU).Msg("product repo: upsert")
		return nil, err
	}
	res := d.toDomain()
	r.logger.Debug().Str("id", res.ID).Str("sku", res.SKU).Msg("product repo: upserted")
	return &res, nil
}
