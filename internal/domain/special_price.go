package domain

import "time"

// PriceOverride is a single per-product special price inside a profile.
type PriceOverride struct {
	ProductID    string  `json:"productId"`
	SpecialPrice float64 `json:"specialPrice"`
}

// SpecialPriceProfile groups the price overrides of one user. Products holds at
// most one entry per ProductID.
type SpecialPriceProfile struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Products  []PriceOverride `json:"products"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Override returns the entry for productID, if present.
func (p SpecialPriceProfile) Override(productID string) (PriceOverride, bool) {
	for _, o := range p.Products {
		if o.ProductID == productID {
			return o, true
		}
	}
	return PriceOverride{}, false
}
