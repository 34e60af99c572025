package specialprice

import (
	"context"

	"catalog-pricing/internal/domain"
)

// Repository stores SpecialPriceProfiles. Every method that changes a
// profile's override list does so atomically in the store, so concurrent
// writers to the same profile never drop each other's changes.
//
// Lookups of a missing profile report domain.ErrNotFound, except Overrides,
// which returns an empty list.
type Repository interface {
	// Create inserts a new profile. A duplicate email yields domain.ErrAlreadyExists.
	Create(ctx context.Context, profile domain.SpecialPriceProfile) (*domain.SpecialPriceProfile, error)
	List(ctx context.Context) ([]domain.SpecialPriceProfile, error)
	GetByID(ctx context.Context, id string) (*domain.SpecialPriceProfile, error)
	// Overrides returns just the {productId, specialPrice} pairs of a profile.
	Overrides(ctx context.Context, id string) ([]domain.PriceOverride, error)
	// UpsertOverride replaces the price of an existing entry in place or
	// appends a new entry.
	UpsertOverride(ctx context.Context, id string, override domain.PriceOverride) (*domain.SpecialPriceProfile, error)
	// SetOverridePrice updates an existing entry only; a missing profile or
	// entry yields domain.ErrNotFound.
	SetOverridePrice(ctx context.Context, id string, override domain.PriceOverride) (*domain.SpecialPriceProfile, error)
	// PullOverride removes the entry for productID, if any.
	PullOverride(ctx context.Context, id, productID string) (*domain.SpecialPriceProfile, error)
	// DeleteIfEmpty deletes the profile only when it has no entries left.
	DeleteIfEmpty(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}
