package domain

import "time"

// Product is a catalog entry. The core only reads products; they are written
// by the seed and import tooling.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Brand       string    `json:"brand,omitempty"`
	Description string    `json:"description,omitempty"`
	SKU         string    `json:"sku,omitempty"`
	Stock       int       `json:"stock"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
