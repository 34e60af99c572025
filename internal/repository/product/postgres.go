package product

import (
	"context"
	"errors"

	"catalog-pricing/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// PostgresRepository is the relational store backend for products.
type PostgresRepository interface {
	Repository
	Writer
}

func NewPostgres(pool *pgxpool.Pool, logger zerolog.Logger) PostgresRepository {
	return &postgresRepo{pool: pool, logger: logger}
}

const productColumns = `id, name, price, category, COALESCE(brand, ''), COALESCE(description, ''), COALESCE(sku, ''), stock, tags, created_at, updated_at`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Category, &p.Brand, &p.Description, &p.SKU, &p.Stock, &p.Tags, &p.CreatedAt, &p.UpdatedAt)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p, err
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products ORDER BY id`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		r.logger.Error().Err(err).Msg("product repo: list")
		return nil, err
	}
	defer rows.Close()

	result := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("product repo: list rows")
		return nil, err
	}
	r.logger.Debug().Int("count", len(result)).Msg("product repo: list")
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("id", id).Msg("product repo: get not found")
			return nil, domain.ErrNotFound
		}
		r.logger.Error().Err(err).Str("id", id).Msg("product repo: get")
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = domain.NewID()
	} else if !domain.IsValidID(product.ID) {
		return nil, domain.Invalidf("invalid product id %q", product.ID)
	}
	tags := product.Tags
	if tags == nil {
		tags = []string{}
	}

	q := `
INSERT INTO products (id, name, price, category, brand, description, sku, stock, tags)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    price = EXCLUDED.price,
    category = EXCLUDED.category,
    brand = EXCLUDED.brand,
    description = EXCLUDED.description,
    sku = EXCLUDED.sku,
    stock = EXCLUDED.stock,
    tags = EXCLUDED.tags,
    updated_at = now()
RETURNING ` + productColumns
	res, err := scanProduct(r.pool.QueryRow(ctx, q,
		product.ID,
		product.Name,
		product.Price,
		product.Category,
		product.Brand,
		product.Description,
		product.SKU,
		product.Stock,
		tags,
	))
	if err != nil {
		r.logger.Error().Err(err).Str("id", product.ID).Str("sku", product.SKU).Msg("product repo: upsert")
		return nil, err
	}
	r.logger.Debug().Str("id", res.ID).Str("sku", res.SKU).Msg("product repo: upserted")
	return &res, nil
}
