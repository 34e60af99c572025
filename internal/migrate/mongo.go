package migrate

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCollections names the collections EnsureMongoIndexes prepares.
type MongoCollections struct {
	Products      string
	SpecialPrices string
}

// EnsureMongoIndexes creates the indexes the document store relies on. It is
// idempotent. The unique email index is what rejects duplicate profiles.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database, names MongoCollections) error {
	profiles := db.Collection(names.SpecialPrices)
	_, err := profiles.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "products.productId", Value: 1}},
			Options: options.Index().SetName("products_product_id"),
		},
	})
	if err != nil {
		return fmt.Errorf("create %s indexes: %w", names.SpecialPrices, err)
	}

	products := db.Collection(names.Products)
	_, err = products.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sku", Value: 1}},
		Options: options.Index().SetName("sku"),
	})
	if err != nil {
		return fmt.Errorf("create %s indexes: %w", names.Products, err)
	}
	return nil
}
