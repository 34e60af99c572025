package specialprice

import (
	"context"
	"errors"
	"strings"

	"catalog-pricing/internal/domain"
	sprepo "catalog-pricing/internal/repository/specialprice"
	"github.com/rs/zerolog"
)

type productLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

// Service manages special-price profiles and their per-product overrides.
type Service struct {
	repo     sprepo.Repository
	products productLookup
	logger   zerolog.Logger
}

func New(repo sprepo.Repository, products productLookup, logger zerolog.Logger) *Service {
	return &Service{repo: repo, products: products, logger: logger}
}

// CreateInput captures the fields required to open a profile with its first
// override.
type CreateInput struct {
	Name         string
	Email        string
	ProductID    string
	SpecialPrice float64
}

// Create opens a profile holding exactly one override. The product must exist.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.SpecialPriceProfile, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" || email == "" || in.ProductID == "" {
		return nil, domain.Invalidf("name, email, productId and specialPrice are required")
	}
	override := domain.PriceOverride{ProductID: in.ProductID, SpecialPrice: in.SpecialPrice}
	if err := validateOverride(override); err != nil {
		return nil, err
	}
	if err := s.ensureProduct(ctx, in.ProductID); err != nil {
		return nil, err
	}

	profile, err := s.repo.Create(ctx, domain.SpecialPriceProfile{
		Name:     name,
		Email:    email,
		Products: []domain.PriceOverride{override},
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("profile_id", profile.ID).Str("product_id", in.ProductID).Msg("special price profile created")
	return profile, nil
}

func (s *Service) List(ctx context.Context) ([]domain.SpecialPriceProfile, error) {
	return s.repo.List(ctx)
}

// Get returns the full profile entity.
func (s *Service) Get(ctx context.Context, id string) (*domain.SpecialPriceProfile, error) {
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}
	profile, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, profileNotFound(err)
	}
	return profile, nil
}

// Overrides returns the grouped override pairs of a profile, empty when the
// profile does not exist.
func (s *Service) Overrides(ctx context.Context, id string) ([]domain.PriceOverride, error) {
	if err := validateID(id, "userId"); err != nil {
		return nil, err
	}
	return s.repo.Overrides(ctx, id)
}

// AddOrUpdateOverride sets the price for productID, appending an entry when
// the profile has none for it yet.
func (s *Service) AddOrUpdateOverride(ctx context.Context, id string, override domain.PriceOverride) (*domain.SpecialPriceProfile, error) {
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}
	if err := validateOverride(override); err != nil {
		return nil, err
	}
	if err := s.ensureProduct(ctx, override.ProductID); err != nil {
		return nil, err
	}
	profile, err := s.repo.UpsertOverride(ctx, id, override)
	if err != nil {
		return nil, profileNotFound(err)
	}
	return profile, nil
}

// UpdateOverride changes the price of an existing entry only.
func (s *Service) UpdateOverride(ctx context.Context, id string, override domain.PriceOverride) (*domain.SpecialPriceProfile, error) {
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}
	if err := validateOverride(override); err != nil {
		return nil, err
	}
	return s.repo.SetOverridePrice(ctx, id, override)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := validateID(id, "id"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return profileNotFound(err)
	}
	s.logger.Info().Str("profile_id", id).Msg("special price profile deleted")
	return nil
}

// RemoveOverride drops the entry for productID. When that leaves the profile
// empty the profile itself is deleted and a nil profile is returned.
func (s *Service) RemoveOverride(ctx context.Context, id, productID string) (*domain.SpecialPriceProfile, error) {
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}
	if productID == "" {
		return nil, domain.Invalidf("productId is required")
	}
	if err := validateID(productID, "productId"); err != nil {
		return nil, err
	}

	profile, err := s.repo.PullOverride(ctx, id, productID)
	if err != nil {
		return nil, profileNotFound(err)
	}
	if len(profile.Products) > 0 {
		return profile, nil
	}

	deleted, err := s.repo.DeleteIfEmpty(ctx, id)
	if err != nil {
		return nil, err
	}
	if !deleted {
		// A concurrent add refilled the list; report the current state.
		return s.Get(ctx, id)
	}
	s.logger.Info().Str("profile_id", id).Msg("special price profile removed after last override")
	return nil, nil
}

func (s *Service) ensureProduct(ctx context.Context, productID string) error {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NotFoundf("Product not found")
		}
		return err
	}
	return nil
}

func validateOverride(o domain.PriceOverride) error {
	if o.ProductID == "" {
		return domain.Invalidf("productId and specialPrice are required")
	}
	if err := validateID(o.ProductID, "productId"); err != nil {
		return err
	}
	if o.SpecialPrice <= 0 {
		return domain.Invalidf("specialPrice must be greater than 0")
	}
	return nil
}

func validateID(id, field string) error {
	if !domain.IsValidID(id) {
		return domain.Invalidf("invalid %s", field)
	}
	return nil
}

// profileNotFound gives bare not-found errors from the store a client message.
func profileNotFound(err error) error {
	var de *domain.Error
	if errors.Is(err, domain.ErrNotFound) && !errors.As(err, &de) {
		return domain.NotFoundf("Special price profile not found")
	}
	return err
}
