package specialprice

import (
	"context"
	"errors"

	"catalog-pricing/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// postgresRepo keeps overrides in special_price_entries keyed by
// (profile_id, product_id); position preserves insertion order. Mutations
// lock the profile row first, which serializes writers per profile.
type postgresRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger zerolog.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) Create(ctx context.Context, profile domain.SpecialPriceProfile) (*domain.SpecialPriceProfile, error) {
	id := domain.NewID()
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO special_price_profiles (id, name, email) VALUES ($1, $2, $3)`, id, profile.Name, profile.Email); err != nil {
			return err
		}
		for _, o := range profile.Products {
			if _, err := tx.Exec(ctx, `
INSERT INTO special_price_entries (profile_id, product_id, special_price) VALUES ($1, $2, $3)
ON CONFLICT (profile_id, product_id) DO UPDATE SET special_price = EXCLUDED.special_price
`, id, o.ProductID, o.SpecialPrice); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			r.logger.Debug().Str("email", profile.Email).Msg("special price repo: create duplicate email")
			return nil, &domain.Error{Kind: domain.ErrAlreadyExists, Message: "a special price profile already exists for this email", Err: err}
		}
		r.logger.Error().Err(err).Str("email", profile.Email).Msg("special price repo: create")
		return nil, err
	}
	r.logger.Debug().Str("id", id).Int("products", len(profile.Products)).Msg("special price repo: created")
	return r.GetByID(ctx, id)
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.SpecialPriceProfile, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, email, created_at, updated_at FROM special_price_profiles ORDER BY created_at, id`)
	if err != nil {
		r.logger.Error().Err(err).Msg("special price repo: list")
		return nil, err
	}
	defer rows.Close()

	profiles := []domain.SpecialPriceProfile{}
	index := map[string]int{}
	for rows.Next() {
		var p domain.SpecialPriceProfile
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Products = []domain.PriceOverride{}
		index[p.ID] = len(profiles)
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entries, err := r.pool.Query(ctx, `SELECT profile_id, product_id, special_price FROM special_price_entries ORDER BY profile_id, position`)
	if err != nil {
		r.logger.Error().Err(err).Msg("special price repo: list entries")
		return nil, err
	}
	defer entries.Close()
	for entries.Next() {
		var profileID string
		var o domain.PriceOverride
		if err := entries.Scan(&profileID, &o.ProductID, &o.SpecialPrice); err != nil {
			return nil, err
		}
		if i, ok := index[profileID]; ok {
			profiles[i].Products = append(profiles[i].Products, o)
		}
	}
	if err := entries.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.SpecialPriceProfile, error) {
	return r.get(ctx, r.pool, id)
}

func (r *postgresRepo) get(ctx context.Context, q querier, id string) (*domain.SpecialPriceProfile, error) {
	var p domain.SpecialPriceProfile
	err := q.QueryRow(ctx, `SELECT id, name, email, created_at, updated_at FROM special_price_profiles WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("id", id).Msg("special price repo: get not found")
			return nil, domain.NotFoundf("special price profile %s not found", id)
		}
		r.logger.Error().Err(err).Str("id", id).Msg("special price repo: get")
		return nil, err
	}
	p.Products, err = r.overrides(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) overrides(ctx context.Context, q querier, id string) ([]domain.PriceOverride, error) {
	rows, err := q.Query(ctx, `SELECT product_id, special_price FROM special_price_entries WHERE profile_id = $1 ORDER BY position`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("id", id).Msg("special price repo: overrides")
		return nil, err
	}
	defer rows.Close()

	out := []domain.PriceOverride{}
	for rows.Next() {
		var o domain.PriceOverride
		if err := rows.Scan(&o.ProductID, &o.SpecialPrice); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *postgresRepo) Overrides(ctx context.Context, id string) ([]domain.PriceOverride, error) {
	return r.overrides(ctx, r.pool, id)
}

func (r *postgresRepo) UpsertOverride(ctx context.Context, id string, override domain.PriceOverride) (*domain.SpecialPriceProfile, error) {
	return r.mutate(ctx, id, "upsert override", func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO special_price_entries (profile_id, product_id, special_price) VALUES ($1, $2, $3)
ON CONFLICT (profile_id, product_id) DO UPDATE SET special_price = EXCLUDED.special_price
`, id, override.ProductID, override.SpecialPrice)
		return err
	})
}

func (r *postgresRepo) SetOverridePrice(ctx context.Context, id string, override domain.PriceOverride) (*domain.SpecialPriceProfile, error) {
	return r.mutate(ctx, id, "set override", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE special_price_entries SET special_price = $3 WHERE profile_id = $1 AND product_id = $2`,
			id, override.ProductID, override.SpecialPrice)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.NotFoundf("special price for product %s not found in profile %s", override.ProductID, id)
		}
		return nil
	})
}

func (r *postgresRepo) PullOverride(ctx context.Context, id, productID string) (*domain.SpecialPriceProfile, error) {
	return r.mutate(ctx, id, "pull override", func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM special_price_entries WHERE profile_id = $1 AND product_id = $2`, id, productID)
		return err
	})
}

func (r *postgresRepo) DeleteIfEmpty(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx, `SELECT id FROM special_price_profiles WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
DELETE FROM special_price_profiles p
WHERE p.id = $1 AND NOT EXISTS (SELECT 1 FROM special_price_entries e WHERE e.profile_id = p.id)
`, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		r.logger.Error().Err(err).Str("id", id).Msg("special price repo: delete if empty")
		return false, err
	}
	return deleted, nil
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM special_price_profiles WHERE id = $1`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("id", id).Msg("special price repo: delete")
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("special price profile %s not found", id)
	}
	r.logger.Debug().Str("id", id).Msg("special price repo: deleted")
	return nil
}

// mutate locks the profile row by touching updated_at, runs fn in the same
// transaction and returns the profile as committed.
func (r *postgresRepo) mutate(ctx context.Context, id, op string, fn func(tx pgx.Tx) error) (*domain.SpecialPriceProfile, error) {
	var out *domain.SpecialPriceProfile
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE special_price_profiles SET updated_at = now() WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.NotFoundf("special price profile %s not found", id)
		}
		if err := fn(tx); err != nil {
			return err
		}
		out, err = r.get(ctx, tx, id)
		return err
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Error().Err(err).Str("id", id).Msgf("special price repo: %s", op)
		}
		return nil, err
	}
	return out, nil
}
