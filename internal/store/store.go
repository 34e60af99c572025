package store

import (
	"context"
	"errors"
	"fmt"

	"catalog-pricing/internal/config"
	"catalog-pricing/internal/db"
	"catalog-pricing/internal/migrate"
	productrepo "catalog-pricing/internal/repository/product"
	sprepo "catalog-pricing/internal/repository/specialprice"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Store bundles the repositories of the configured backend.
type Store struct {
	Products      productrepo.Repository
	ProductWriter productrepo.Writer
	SpecialPrices sprepo.Repository

	driver string
	mongo  *mongo.Client
	mdb    *mongo.Database
	names  migrate.MongoCollections
	pool   *pgxpool.Pool
	redis  *redis.Client
	logger zerolog.Logger
}

// Open connects to the backend selected by cfg.StoreDriver. When a Redis URL
// is configured, product reads go through a read-through cache.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Store, error) {
	s := &Store{driver: cfg.StoreDriver, logger: logger}

	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := db.ConnectMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		s.mongo = client
		s.mdb = client.Database(cfg.Mongo.Database)
		s.names = migrate.MongoCollections{
			Products:      cfg.Mongo.ProductsCollection,
			SpecialPrices: cfg.Mongo.SpecialPricesCollection,
		}
		products := productrepo.NewMongo(s.mdb.Collection(s.names.Products), logger)
		s.Products = products
		s.ProductWriter = products
		s.SpecialPrices = sprepo.NewMongo(s.mdb.Collection(s.names.SpecialPrices), logger)
		logger.Info().Str("database", cfg.Mongo.Database).Msg("mongo store connected")
	case config.StorePostgres:
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.pool = pool
		products := productrepo.NewPostgres(pool, logger)
		s.Products = products
		s.ProductWriter = products
		s.SpecialPrices = sprepo.NewPostgres(pool, logger)
		logger.Info().Msg("postgres store connected")
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			_ = s.Close(ctx)
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		s.redis = redis.NewClient(opts)
		if err := s.redis.Ping(ctx).Err(); err != nil {
			// The cache is optional; reads fall through while Redis is down.
			logger.Warn().Err(err).Msg("redis unreachable at startup")
		}
		s.Products = productrepo.NewCached(s.Products, s.redis, cfg.CacheTTL, logger)
		logger.Info().Dur("ttl", cfg.CacheTTL).Msg("product cache enabled")
	}

	return s, nil
}

// Migrate prepares the backend: unique indexes on MongoDB, the SQL schema on
// Postgres. Both are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	switch {
	case s.mdb != nil:
		return migrate.EnsureMongoIndexes(ctx, s.mdb, s.names)
	case s.pool != nil:
		version, err := migrate.Apply(ctx, s.pool)
		if err != nil {
			return err
		}
		s.logger.Info().Uint("schema_version", version).Msg("postgres schema up to date")
		return nil
	}
	return errors.New("store is not open")
}

// Rollback reverts the given number of SQL schema versions. MongoDB has no
// versioned schema, so it is rejected there.
func (s *Store) Rollback(ctx context.Context, steps int) error {
	if s.pool == nil {
		return fmt.Errorf("rollback is only supported by the %s driver", config.StorePostgres)
	}
	version, err := migrate.Rollback(ctx, s.pool, steps)
	if err != nil {
		return err
	}
	s.logger.Info().Uint("schema_version", version).Int("steps", steps).Msg("postgres schema rolled back")
	return nil
}

// Ping reports whether the primary backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	switch {
	case s.mongo != nil:
		return s.mongo.Ping(ctx, readpref.Primary())
	case s.pool != nil:
		return s.pool.Ping(ctx)
	}
	return errors.New("store is not open")
}

// Driver returns the configured backend name.
func (s *Store) Driver() string {
	return s.driver
}

func (s *Store) Close(ctx context.Context) error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.mongo != nil {
		errs = append(errs, s.mongo.Disconnect(ctx))
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return errors.Join(errs...)
}
