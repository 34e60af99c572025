package domain

// PricedProduct is a product as seen by a particular user. HasSpecialPrice is
// nil when no user was supplied, so the field is absent from the JSON output
// rather than false.
type PricedProduct struct {
	Product
	HasSpecialPrice *bool    `json:"hasSpecialPrice,omitempty"`
	OriginalPrice   *float64 `json:"originalPrice,omitempty"`
}
