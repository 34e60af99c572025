package specialprice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog-pricing/internal/domain"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// upsertAttempts bounds the set-or-push loop in UpsertOverride. A retry is
// only needed when another writer pushes the same product between our two
// conditional updates.
const upsertAttempts = 3

type overrideDocument struct {
	ProductID    primitive.ObjectID `bson:"productId"`
	SpecialPrice float64            `bson:"specialPrice"`
}

type profileDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Products  []overrideDocument `bson:"products"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d profileDocument) toDomain() domain.SpecialPriceProfile {
	return domain.SpecialPriceProfile{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Email:     d.Email,
		Products:  overridesToDomain(d.Products),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func overridesToDomain(docs []overrideDocument) []domain.PriceOverride {
	out := make([]domain.PriceOverride, 0, len(docs))
	for _, o := range docs {
		out = append(out, domain.PriceOverride{ProductID: o.ProductID.Hex(), SpecialPrice: o.SpecialPrice})
	}
	return out
}

type mongoRepo struct {
	coll   *mongo.Collection
	logger zerolog.Logger
	now    func() time.Time
}

func NewMongo(coll *mongo.Collection, logger zerolog.Logger) Repository {
	return &mongoRepo{coll: coll, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func parseIDs(profileID, productID string) (primitive.ObjectID, primitive.ObjectID, error) {
	pid, err := primitive.ObjectIDFromHex(profileID)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, domain.Invalidf("invalid profile id %q", profileID)
	}
	if productID == "" {
		return pid, primitive.NilObjectID, nil
	}
	prod, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, domain.Invalidf("invalid product id %q", productID)
	}
	return pid, prod, nil
}

func (r *mongoRepo) Create(ctx context.Context, profile domain.SpecialPriceProfile) (*domain.SpecialPriceProfile, error) {
	now := r.now()
	doc := profileDocument{
		ID:        primitive.NewObjectID(),
		Name:      profile.Name,
		Email:     profile.Email,
		Products:  make([]overrideDocument, 0, len(profile.Products)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, o := range profile.Products {
		prod, err := primitive.ObjectIDFromHex(o.ProductID)
		if err != nil {
			return nil, domain.Invalidf("invalid product id %q", o.ProductID)
		}
		doc.Products = append(doc.Products, overrideDocument{ProductID: prod, SpecialPrice: o.SpecialPrice})
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			r.logger.Debug().Str("email", profile.Email).Msg("special price repo: create duplicate email")
			return nil, &domain.Error{Kind: domain.ErrAlreadyExists, Message: "a special price profile already exists for this email", Err: err}
		}
		r.logger.Error().Err(err).Str("email", profile.Email).Msg("special price repo: create")
		return nil, err
	}
	// BSON dates have millisecond precision.
	doc.CreatedAt = doc.CreatedAt.Truncate(time.Millisecond)
	doc.UpdatedAt = doc.CreatedAt
	res := doc.toDomain()
	r.logger.Debug().Str("id", res.ID).Int("products", len(res.Products)).Msg("special price repo: created")
	return &res, nil
}

func (r *mongoRepo) List(ctx context.Context) ([]domain.SpecialPriceProfile, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		r.logger.Error().Err(err).Msg("special price repo: list")
		return nil, err
	}
	var docs []profileDocument
	if err := cur.All(ctx, &docs); err != nil {
		r.logger.Error().Err(err).Msg("special price repo: list decode")
		return nil, err
	}
	out := make([]domain.SpecialPriceProfile, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *mongoRepo) GetByID(ctx context.Context, id string) (*domain.SpecialPriceProfile, error) {
	oid, _, err := parseIDs(id, "")
	if err != nil {
		return nil, err
	}
	return r.decodeOne(r.coll.FindOne(ctx, bson.M{"_id": oid}), "get", id)
}

func (r *mongoRepo) Overrides(ctx context.Context, id string) ([]domain.PriceOverride, error) {
	profile, err := r.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return []domain.PriceOverride{}, nil
	}
	if err != nil {
		return nil, err
	}
	return profile.Products, nil
}

func (r *mongoRepo) UpsertOverride(ctx context.Context, id string, override domain.PriceOverride) (*domain.SpecialPriceProfile, error) {
	oid, prod, err := parseIDs(id, override.ProductID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < upsertAttempts; attempt++ {
		profile, err := r.setPrice(ctx, oid, prod, override.SpecialPrice)
		if !errors.Is(err, domain.ErrNotFound) {
			return profile, err
		}

		push := bson.M{
			"$push": bson.M{"products": overrideDocument{ProductID: prod, SpecialPrice: override.SpecialPrice}},
			"$set":  bson.M{"updatedAt": r.now()},
		}
		filter := bson.M{"_id": oid, "products.productId": bson.M{"$ne": prod}}
		profile, err = r.decodeOne(r.coll.FindOneAndUpdate(ctx, filter, push, afterUpdate()), "push override", id)
		if !errors.Is(err, domain.ErrNotFound) {
			return profile, err
		}

		// Neither filter matched: the profile is gone, or another writer
		// pushed this product between the two updates.
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
		if err != nil {
			r.logger.Error().Err(err).Str("id", id).Msg("special price repo: upsert override exists")
			return nil, err
		}
		if n == 0 {
			return nil, domain.NotFoundf("special price profile %s not found", id)
		}
		r.logger.Debug().Str("id", id).Str("product_id", override.ProductID).Int("attempt", attempt+1).Msg("special price repo: upsert override retry")
	}
	return nil, fmt.Errorf("special price repo: upsert override id=%s product_id=%s: too much contention", id, override.ProductID)
}

func (r *mongoRepo) SetOverridePrice(ctx context.Context, id string, override domain.PriceOverride) (*domain.SpecialPriceProfile, error) {
	oid, prod, err := parseIDs(id, override.ProductID)
	if err != nil {
		return nil, err
	}
	profile, err := r.setPrice(ctx, oid, prod, override.SpecialPrice)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFoundf("special price for product %s not found in profile %s", override.ProductID, id)
	}
	return profile, err
}

// setPrice updates the matching array element in place, keeping its position.
func (r *mongoRepo) setPrice(ctx context.Context, oid, prod primitive.ObjectID, price float64) (*domain.SpecialPriceProfile, error) {
	filter := bson.M{"_id": oid, "products.productId": prod}
	update := bson.M{"$set": bson.M{"products.$.specialPrice": price, "updatedAt": r.now()}}
	return r.decodeOne(r.coll.FindOneAndUpdate(ctx, filter, update, afterUpdate()), "set override", oid.Hex())
}

func (r *mongoRepo) PullOverride(ctx context.Context, id, productID string) (*domain.SpecialPriceProfile, error) {
	oid, prod, err := parseIDs(id, productID)
	if err != nil {
		return nil, err
	}
	update := bson.M{
		"$pull": bson.M{"products": bson.M{"productId": prod}},
		"$set":  bson.M{"updatedAt": r.now()},
	}
	profile, err := r.decodeOne(r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, afterUpdate()), "pull override", id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFoundf("special price profile %s not found", id)
	}
	return profile, err
}

func (r *mongoRepo) DeleteIfEmpty(ctx context.Context, id string) (bool, error) {
	oid, _, err := parseIDs(id, "")
	if err != nil {
		return false, err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid, "products": bson.M{"$size": 0}})
	if err != nil {
		r.logger.Error().Err(err).Str("id", id).Msg("special price repo: delete if empty")
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *mongoRepo) Delete(ctx context.Context, id string) error {
	oid, _, err := parseIDs(id, "")
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		r.logger.Error().Err(err).Str("id", id).Msg("special price repo: delete")
		return err
	}
	if res.DeletedCount == 0 {
		return domain.NotFoundf("special price profile %s not found", id)
	}
	r.logger.Debug().Str("id", id).Msg("special price repo: deleted")
	return nil
}

func (r *mongoRepo) decodeOne(res *mongo.SingleResult, op, id string) (*domain.SpecialPriceProfile, error) {
	var d profileDocument
	if err := res.Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.Debug().Str("id", id).Msgf("special price repo: %s no match", op)
			return nil, domain.NotFoundf("special price profile %s not found", id)
		}
		r.logger.Error().Err(err).Str("id", id).Msgf("special price repo: %s", op)
		return nil, err
	}
	profile := d.toDomain()
	return &profile, nil
}

func afterUpdate() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}
