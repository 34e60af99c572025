package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"catalog-pricing/internal/domain"
	productrepo "catalog-pricing/internal/repository/product"
	sprepo "catalog-pricing/internal/repository/specialprice"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var fixturesYAML []byte

type productFixture struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Price       float64  `yaml:"price"`
	Category    string   `yaml:"category"`
	Brand       string   `yaml:"brand"`
	Description string   `yaml:"description"`
	SKU         string   `yaml:"sku"`
	Stock       int      `yaml:"stock"`
	Tags        []string `yaml:"tags"`
}

type overrideFixture struct {
	ProductID    string  `yaml:"productId"`
	SpecialPrice float64 `yaml:"specialPrice"`
}

type profileFixture struct {
	Name     string            `yaml:"name"`
	Email    string            `yaml:"email"`
	Products []overrideFixture `yaml:"products"`
}

// Fixtures is the demo data set.
type Fixtures struct {
	Products []productFixture `yaml:"products"`
	Profiles []profileFixture `yaml:"profiles"`
}

// Load parses the embedded fixtures.
func Load() (Fixtures, error) {
	return parse(fixturesYAML)
}

func parse(raw []byte) (Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Fixtures{}, fmt.Errorf("parse fixtures: %w", err)
	}
	for i, p := range f.Products {
		if !domain.IsValidID(p.ID) {
			return Fixtures{}, fmt.Errorf("fixture product %d: invalid id %q", i, p.ID)
		}
		if p.Price <= 0 {
			return Fixtures{}, fmt.Errorf("fixture product %s: price must be positive", p.ID)
		}
	}
	return f, nil
}

// Result counts what Apply wrote.
type Result struct {
	Products int
	Profiles int
}

// Apply upserts the fixture products and creates the demo profiles. It is
// idempotent: products are keyed by id and existing profiles are left alone.
func Apply(ctx context.Context, f Fixtures, products productrepo.Writer, profiles sprepo.Repository, logger zerolog.Logger) (Result, error) {
	var res Result
	for _, p := range f.Products {
		_, err := products.Upsert(ctx, domain.Product{
			ID:          p.ID,
			Name:        p.Name,
			Price:       p.Price,
			Category:    p.Category,
			Brand:       p.Brand,
			Description: p.Description,
			SKU:         p.SKU,
			Stock:       p.Stock,
			Tags:        p.Tags,
		})
		if err != nil {
			return res, fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
		res.Products++
	}

	for _, pf := range f.Profiles {
		overrides := make([]domain.PriceOverride, 0, len(pf.Products))
		for _, o := range pf.Products {
			overrides = append(overrides, domain.PriceOverride{ProductID: o.ProductID, SpecialPrice: o.SpecialPrice})
		}
		_, err := profiles.Create(ctx, domain.SpecialPriceProfile{Name: pf.Name, Email: pf.Email, Products: overrides})
		if errors.Is(err, domain.ErrAlreadyExists) {
			logger.Info().Str("email", pf.Email).Msg("seed: profile exists, skipping")
			continue
		}
		if err != nil {
			return res, fmt.Errorf("create profile %s: %w", pf.Email, err)
		}
		res.Profiles++
	}
	return res, nil
}
