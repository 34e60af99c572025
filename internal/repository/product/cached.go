package product

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"catalog-pricing/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	listCacheKey    = "catalog:products"
	productCacheKey = "catalog:product:"
)

// cachedRepo is a read-through cache in front of another Repository. Products
// are written outside this service, so entries simply expire after ttl.
// Cache failures are logged and fall through to the wrapped repository.
type cachedRepo struct {
	next   Repository
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCached(next Repository, rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) Repository {
	return &cachedRepo{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (r *cachedRepo) List(ctx context.Context) ([]domain.Product, error) {
	var cached []domain.Product
	if r.load(ctx, listCacheKey, &cached) {
		return cached, nil
	}

	products, err := r.next.List(ctx)
	if err != nil {
		return nil, err
	}
	r.store(ctx, listCacheKey, products)
	return products, nil
}

func (r *cachedRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	key := productCacheKey + id
	var cached domain.Product
	if r.load(ctx, key, &cached) {
		return &cached, nil
	}

	p, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, p)
	return p, nil
}

func (r *cachedRepo) load(ctx context.Context, key string, dst any) bool {
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn().Err(err).Str("key", key).Msg("product cache: get")
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("product cache: decode")
		return false
	}
	return true
}

func (r *cachedRepo) store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("product cache: encode")
		return
	}
	if err := r.rdb.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("product cache: set")
	}
}
