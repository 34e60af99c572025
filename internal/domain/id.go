package domain

import "go.mongodb.org/mongo-driver/bson/primitive"

// NewID returns a fresh object id in its 24-character hex form. Both store
// backends use this format for products and profiles.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// IsValidID reports whether s is a 24-character hex object id.
func IsValidID(s string) bool {
	return primitive.IsValidObjectID(s)
}
