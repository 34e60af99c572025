package pricing

import (
	"context"
	"errors"

	"catalog-pricing/internal/domain"
	productrepo "catalog-pricing/internal/repository/product"
)

type overrideLookup interface {
	Overrides(ctx context.Context, profileID string) ([]domain.PriceOverride, error)
}

// Service serves catalog reads, applying a user's special prices when a
// user id is supplied.
type Service struct {
	products  productrepo.Repository
	overrides overrideLookup
}

func New(products productrepo.Repository, overrides overrideLookup) *Service {
	return &Service{products: products, overrides: overrides}
}

// List returns every product. With an empty userID the products come back
// unpriced; otherwise the user's overrides are merged in.
func (s *Service) List(ctx context.Context, userID string) ([]domain.PricedProduct, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return Unpriced(products), nil
	}
	overrides, err := s.overrides.Overrides(ctx, userID)
	if err != nil {
		return nil, err
	}
	return PriceAll(products, overrides), nil
}

// Get returns one product, priced for userID with the same merge rules as List.
func (s *Service) Get(ctx context.Context, id, userID string) (*domain.PricedProduct, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFoundf("Product not found")
		}
		return nil, err
	}
	products := []domain.Product{*product}

	var priced []domain.PricedProduct
	if userID == "" {
		priced = Unpriced(products)
	} else {
		overrides, err := s.overrides.Overrides(ctx, userID)
		if err != nil {
			return nil, err
		}
		priced = PriceAll(products, overrides)
	}
	return &priced[0], nil
}

// PriceAll merges overrides into products. The output has one entry per
// product, in input order. Duplicate overrides for a product resolve to the
// last one. Overrides naming products that are not in the list are ignored.
func PriceAll(products []domain.Product, overrides []domain.PriceOverride) []domain.PricedProduct {
	lookup := make(map[string]float64, len(overrides))
	for _, o := range overrides {
		lookup[o.ProductID] = o.SpecialPrice
	}

	out := make([]domain.PricedProduct, 0, len(products))
	for _, p := range products {
		special, ok := lookup[p.ID]
		item := domain.PricedProduct{Product: p, HasSpecialPrice: boolPtr(ok)}
		if ok {
			original := p.Price
			item.OriginalPrice = &original
			item.Price = special
		}
		out = append(out, item)
	}
	return out
}

// Unpriced wraps products without any special-price information.
func Unpriced(products []domain.Product) []domain.PricedProduct {
	out := make([]domain.PricedProduct, 0, len(products))
	for _, p := range products {
		out = append(out, domain.PricedProduct{Product: p})
	}
	return out
}

func boolPtr(v bool) *bool {
	return &v
}
