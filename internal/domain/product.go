package domain

import (
	"time"
)

// Product represents an entry of the storefront catalog.
// The json tags correspond to the fields exposed in API responses; the bson tags to the
// document layout in the products collection.
type Product struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	Name        string    `json:"name" bson:"name"`
	Price       float64   `json:"price" bson:"price"`
	Description string    `json:"description" bson:"description"`
	Image       string    `json:"image,omitempty" bson:"image,omitempty"`       // Public URL of the uploaded image
	Category    string    `json:"category,omitempty" bson:"category,omitempty"` // Category slug, empty means uncategorized
	IsFeatured  bool      `json:"isFeatured" bson:"is_featured"`
	Rating      *float64  `json:"rating,omitempty" bson:"rating,omitempty"`            // Pointer: absent until captured
	ReviewCount *int      `json:"reviewCount,omitempty" bson:"review_count,omitempty"` // Pointer: absent until captured
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updated_at"`
}

// HasRatings reports whether both rating fields carry authoritative values.
func (p Product) HasRatings() bool {
	return p.Rating != nil && p.ReviewCount != nil
}

// Clone returns a deep copy so optional fields are not shared between copies.
func (p Product) Clone() Product {
	c := p
	if p.Rating != nil {
		r := *p.Rating
		c.Rating = &r
	}
	if p.ReviewCount != nil {
		n := *p.ReviewCount
		c.ReviewCount = &n
	}
	return c
}

// Category is an administrator-defined category record.
// Built-in categories are not stored; see catalog.BuiltinCategories.
type Category struct {
	ID         string    `json:"id" bson:"_id,omitempty"`
	CategoryID string    `json:"categoryId" bson:"category_id"` // Normalized slug, unique across built-in and custom
	Name       string    `json:"name" bson:"name"`              // Display string as entered, never translated
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
}

// User is an admin account allowed to manage the catalog.
type User struct {
	ID           string    `json:"id" bson:"_id,omitempty"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Role         string    `json:"role" bson:"role"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updated_at"`
}

// RoleAdmin grants write access to products and categories.
const RoleAdmin = "admin"
