package product

import (
	"context"

	"catalog-pricing/internal/domain"
)

// Repository is the read-only view of the catalog used by the services.
type Repository interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

// Writer is implemented by the store backends for the seed and import tooling.
type Writer interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}
