package specialprice

import (
	"context"
	"sync"
	"testing"

	"catalog-pricing/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRepositoryContract exercises the behaviour every backend must share.
func testRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	p1, p2, p3 := domain.NewID(), domain.NewID(), domain.NewID()

	create := func(t *testing.T, repo Repository, email string) *domain.SpecialPriceProfile {
		t.Helper()
		profile, err := repo.Create(context.Background(), domain.SpecialPriceProfile{
			Name:     "Ana",
			Email:    email,
			Products: []domain.PriceOverride{{ProductID: p1, SpecialPrice: 50}},
		})
		require.NoError(t, err)
		return profile
	}

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		created := create(t, repo, "ana@x.com")
		require.True(t, domain.IsValidID(created.ID))

		got, err := repo.GetByID(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, "ana@x.com", got.Email)
		assert.Equal(t, []domain.PriceOverride{{ProductID: p1, SpecialPrice: 50}}, got.Products)
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := newRepo(t)
		create(t, repo, "ana@x.com")
		_, err := repo.Create(context.Background(), domain.SpecialPriceProfile{Name: "Other", Email: "ana@x.com",
			Products: []domain.PriceOverride{{ProductID: p2, SpecialPrice: 1}}})
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("upsert appends then updates in place", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		profile := create(t, repo, "ana@x.com")

		got, err := repo.UpsertOverride(ctx, profile.ID, domain.PriceOverride{ProductID: p2, SpecialPrice: 30})
		require.NoError(t, err)
		assert.Equal(t, []domain.PriceOverride{{ProductID: p1, SpecialPrice: 50}, {ProductID: p2, SpecialPrice: 30}}, got.Products)

		got, err = repo.UpsertOverride(ctx, profile.ID, domain.PriceOverride{ProductID: p1, SpecialPrice: 40})
		require.NoError(t, err)
		assert.Equal(t, []domain.PriceOverride{{ProductID: p1, SpecialPrice: 40}, {ProductID: p2, SpecialPrice: 30}}, got.Products)

		got, err = repo.UpsertOverride(ctx, profile.ID, domain.PriceOverride{ProductID: p1, SpecialPrice: 40})
		require.NoError(t, err)
		assert.Len(t, got.Products, 2)

		_, err = repo.UpsertOverride(ctx, domain.NewID(), domain.PriceOverride{ProductID: p1, SpecialPrice: 1})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("concurrent upserts keep one entry per product", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		profile := create(t, repo, "ana@x.com")

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(price float64) {
				defer wg.Done()
				_, err := repo.UpsertOverride(ctx, profile.ID, domain.PriceOverride{ProductID: p3, SpecialPrice: price})
				assert.NoError(t, err)
			}(float64(10 + i))
		}
		wg.Wait()

		got, err := repo.GetByID(ctx, profile.ID)
		require.NoError(t, err)
		seen := map[string]int{}
		for _, o := range got.Products {
			seen[o.ProductID]++
		}
		assert.Equal(t, map[string]int{p1: 1, p3: 1}, seen)
	})

	t.Run("set price requires entry", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		profile := create(t, repo, "ana@x.com")
		_, err := repo.UpsertOverride(ctx, profile.ID, domain.PriceOverride{ProductID: p2, SpecialPrice: 30})
		require.NoError(t, err)

		got, err := repo.SetOverridePrice(ctx, profile.ID, domain.PriceOverride{ProductID: p1, SpecialPrice: 45})
		require.NoError(t, err)
		assert.Equal(t, []domain.PriceOverride{{ProductID: p1, SpecialPrice: 45}, {ProductID: p2, SpecialPrice: 30}}, got.Products)

		_, err = repo.SetOverridePrice(ctx, profile.ID, domain.PriceOverride{ProductID: p3, SpecialPrice: 1})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = repo.SetOverridePrice(ctx, domain.NewID(), domain.PriceOverride{ProductID: p1, SpecialPrice: 1})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("pull and delete if empty", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		profile := create(t, repo, "ana@x.com")
		_, err := repo.UpsertOverride(ctx, profile.ID, domain.PriceOverride{ProductID: p2, SpecialPrice: 30})
		require.NoError(t, err)

		got, err := repo.PullOverride(ctx, profile.ID, p3)
		require.NoError(t, err)
		assert.Len(t, got.Products, 2)

		got, err = repo.PullOverride(ctx, profile.ID, p1)
		require.NoError(t, err)
		assert.Equal(t, []domain.PriceOverride{{ProductID: p2, SpecialPrice: 30}}, got.Products)

		deleted, err := repo.DeleteIfEmpty(ctx, profile.ID)
		require.NoError(t, err)
		assert.False(t, deleted)

		_, err = repo.PullOverride(ctx, profile.ID, p2)
		require.NoError(t, err)
		deleted, err = repo.DeleteIfEmpty(ctx, profile.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = repo.GetByID(ctx, profile.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = repo.PullOverride(ctx, profile.ID, p2)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("overrides and delete", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		profile := create(t, repo, "ana@x.com")

		overrides, err := repo.Overrides(ctx, profile.ID)
		require.NoError(t, err)
		assert.Equal(t, []domain.PriceOverride{{ProductID: p1, SpecialPrice: 50}}, overrides)

		missing, err := repo.Overrides(ctx, domain.NewID())
		require.NoError(t, err)
		assert.Empty(t, missing)

		list, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		require.NoError(t, repo.Delete(ctx, profile.ID))
		assert.ErrorIs(t, repo.Delete(ctx, profile.ID), domain.ErrNotFound)
	})
}
