package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"catalog-pricing/internal/domain"
	"github.com/rs/zerolog"
)

// Kind names the type of rows a CSV file carries.
type Kind string

const (
	KindProducts      Kind = "products"
	KindSpecialPrices Kind = "special-prices"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// ProfileWriter is the subset of the special-price repository the importer
// needs.
type ProfileWriter interface {
	Create(ctx context.Context, profile domain.SpecialPriceProfile) (*domain.SpecialPriceProfile, error)
	List(ctx context.Context) ([]domain.SpecialPriceProfile, error)
	UpsertOverride(ctx context.Context, id string, override domain.PriceOverride) (*domain.SpecialPriceProfile, error)
}

// ProductLookup resolves the products that special-price rows reference.
type ProductLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

// CSVImporter reads product or special-price CSV files and upserts them.
type CSVImporter struct {
	reader   *csv.Reader
	products ProductWriter
	profiles ProfileWriter
	catalog  ProductLookup
	logger   zerolog.Logger

	profileIDs    map[string]string
	knownProducts map[string]bool
}

func NewCSVImporter(r io.Reader, products ProductWriter, profiles ProfileWriter, catalog ProductLookup, logger zerolog.Logger) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:        csvr,
		products:      products,
		profiles:      profiles,
		catalog:       catalog,
		logger:        logger,
		knownProducts: map[string]bool{},
	}
}

// DetectKind inspects the header row.
func DetectKind(r io.Reader) (Kind, error) {
	headers, err := csv.NewReader(r).Read()
	if err != nil {
		return "", fmt.Errorf("read headers: %w", err)
	}
	return kindOf(headerIndex(headers))
}

func kindOf(index map[string]int) (Kind, error) {
	_, hasEmail := index["email"]
	_, hasSpecial := index["specialPrice"]
	_, hasName := index["name"]
	_, hasPrice := index["price"]
	switch {
	case hasEmail && hasSpecial:
		return KindSpecialPrices, nil
	case hasName && hasPrice:
		return KindProducts, nil
	}
	return "", errors.New("unrecognised CSV header: expected product or special-price columns")
}

// Run parses CSV rows and upserts them. Rows without a leading key (id/name
// for products, email for special prices) continue the previous record.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	kind, err := kindOf(index)
	if err != nil {
		return 0, err
	}

	switch kind {
	case KindSpecialPrices:
		if i.profiles == nil || i.catalog == nil {
			return 0, errors.New("special-price import needs a profile writer and a product lookup")
		}
		return i.runSpecialPrices(ctx, index)
	default:
		if i.products == nil {
			return 0, errors.New("product import needs a product writer")
		}
		return i.runProducts(ctx, index)
	}
}

func (i *CSVImporter) runProducts(ctx context.Context, index map[string]int) (int, error) {
	var (
		current  *domain.Product
		imported int
		line     = 1
	)

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line++

		id := pick(record, index, "id")
		name := pick(record, index, "name")
		tags := splitList(pick(record, index, "tags"))

		if id == "" && name == "" {
			// Continuation rows carry extra tags for the current product.
			if current != nil && len(tags) > 0 {
				current.Tags = append(current.Tags, tags...)
			}
			continue
		}

		if current != nil {
			if err := i.saveProduct(ctx, current); err != nil {
				return imported, err
			}
			imported++
		}
		current, err = parseProduct(record, index, line)
		if err != nil {
			return imported, err
		}
	}

	if current != nil {
		if err := i.saveProduct(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

func parseProduct(record []string, index map[string]int, line int) (*domain.Product, error) {
	p := &domain.Product{
		ID:          pick(record, index, "id"),
		Name:        pick(record, index, "name"),
		Category:    pick(record, index, "category"),
		Brand:       pick(record, index, "brand"),
		Description: pick(record, index, "description"),
		SKU:         pick(record, index, "sku"),
		Tags:        splitList(pick(record, index, "tags")),
	}
	if p.ID == "" {
		p.ID = domain.NewID()
	}
	if !domain.IsValidID(p.ID) {
		return nil, fmt.Errorf("line %d: invalid id %q", line, p.ID)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("line %d: name is required", line)
	}

	price, err := strconv.ParseFloat(pick(record, index, "price"), 64)
	if err != nil || price <= 0 {
		return nil, fmt.Errorf("line %d: price must be a positive number", line)
	}
	p.Price = price

	if s := pick(record, index, "stock"); s != "" {
		stock, err := strconv.Atoi(s)
		if err != nil || stock < 0 {
			return nil, fmt.Errorf("line %d: stock must be a non-negative integer", line)
		}
		p.Stock = stock
	}
	return p, nil
}

func (i *CSVImporter) saveProduct(ctx context.Context, p *domain.Product) error {
	if _, err := i.products.Upsert(ctx, *p); err != nil {
		return fmt.Errorf("upsert product %q: %w", p.ID, err)
	}
	return nil
}

type profileRow struct {
	name      string
	email     string
	overrides []domain.PriceOverride
}

func (i *CSVImporter) runSpecialPrices(ctx context.Context, index map[string]int) (int, error) {
	var (
		current  *profileRow
		imported int
		line     = 1
	)

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line++

		override, err := parseOverride(record, index, line)
		if err != nil {
			return imported, err
		}
		if err := i.ensureProduct(ctx, override.ProductID, line); err != nil {
			return imported, err
		}

		email := strings.ToLower(pick(record, index, "email"))
		if email == "" {
			if current == nil {
				return imported, fmt.Errorf("line %d: email is required", line)
			}
			current.overrides = append(current.overrides, override)
			continue
		}

		if current != nil {
			if err := i.saveProfile(ctx, current); err != nil {
				return imported, err
			}
			imported++
		}
		current = &profileRow{
			name:      pick(record, index, "name"),
			email:     email,
			overrides: []domain.PriceOverride{override},
		}
		if current.name == "" {
			current.name = email
		}
	}

	if current != nil {
		if err := i.saveProfile(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func parseOverride(record []string, index map[string]int, line int) (domain.PriceOverride, error) {
	productID := pick(record, index, "productId")
	if !domain.IsValidID(productID) {
		return domain.PriceOverride{}, fmt.Errorf("line %d: invalid productId %q", line, productID)
	}
	price, err := strconv.ParseFloat(pick(record, index, "specialPrice"), 64)
	if err != nil || price <= 0 {
		return domain.PriceOverride{}, fmt.Errorf("line %d: specialPrice must be a positive number", line)
	}
	return domain.PriceOverride{ProductID: productID, SpecialPrice: price}, nil
}

// ensureProduct rejects overrides for products missing from the catalog.
func (i *CSVImporter) ensureProduct(ctx context.Context, productID string, line int) error {
	if i.knownProducts[productID] {
		return nil
	}
	if _, err := i.catalog.GetByID(ctx, productID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("line %d: product %s not found", line, productID)
		}
		return fmt.Errorf("line %d: look up product %s: %w", line, productID, err)
	}
	i.knownProducts[productID] = true
	return nil
}

// saveProfile creates the profile, or merges its overrides into an existing
// profile with the same email.
func (i *CSVImporter) saveProfile(ctx context.Context, row *profileRow) error {
	overrides := dedupe(row.overrides)
	created, err := i.profiles.Create(ctx, domain.SpecialPriceProfile{
		Name:     row.name,
		Email:    row.email,
		Products: overrides,
	})
	if err == nil {
		if i.profileIDs != nil {
			i.profileIDs[row.email] = created.ID
		}
		i.logger.Debug().Str("profile_id", created.ID).Str("email", row.email).Msg("importer: profile created")
		return nil
	}
	if !errors.Is(err, domain.ErrAlreadyExists) {
		return fmt.Errorf("create profile %q: %w", row.email, err)
	}

	id, err := i.profileID(ctx, row.email)
	if err != nil {
		return err
	}
	for _, o := range overrides {
		if _, err := i.profiles.UpsertOverride(ctx, id, o); err != nil {
			return fmt.Errorf("upsert override %s for %q: %w", o.ProductID, row.email, err)
		}
	}
	i.logger.Debug().Str("profile_id", id).Str("email", row.email).Int("overrides", len(overrides)).Msg("importer: profile merged")
	return nil
}

// profileID resolves an existing profile's id by email. The email index is
// loaded on first use and reloaded once on a miss, since other writers may
// have created the profile since.
func (i *CSVImporter) profileID(ctx context.Context, email string) (string, error) {
	if id, ok := i.profileIDs[email]; ok {
		return id, nil
	}
	if err := i.loadProfileIDs(ctx); err != nil {
		return "", err
	}
	id, ok := i.profileIDs[email]
	if !ok {
		return "", fmt.Errorf("profile %q reported as existing but not listed", email)
	}
	return id, nil
}

func (i *CSVImporter) loadProfileIDs(ctx context.Context) error {
	profiles, err := i.profiles.List(ctx)
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}
	i.profileIDs = make(map[string]string, len(profiles))
	for _, p := range profiles {
		i.profileIDs[p.Email] = p.ID
	}
	return nil
}

// dedupe keeps the last price per product, in first-seen order.
func dedupe(in []domain.PriceOverride) []domain.PriceOverride {
	pos := make(map[string]int, len(in))
	out := make([]domain.PriceOverride, 0, len(in))
	for _, o := range in {
		if i, ok := pos[o.ProductID]; ok {
			out[i].SpecialPrice = o.SpecialPrice
			continue
		}
		pos[o.ProductID] = len(out)
		out = append(out, o)
	}
	return out
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		idx[h] = i
	}
	return idx
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
