package store

import (
	"context"

	"storefront-catalog-service/internal/domain"
)

// CategoryStorer defines the persistence operations for custom categories.
type CategoryStorer interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) // Assigns ID and CreatedAt
	DeleteCategory(ctx context.Context, id string) error
}

// ProductStorer defines the persistence operations for products.
// The catalog is small enough to be loaded whole; filtering happens in memory.
type ProductStorer interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) // Assigns ID, CreatedAt and UpdatedAt
	UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// UserStorer defines the operations on admin accounts.
type UserStorer interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// Gateway is the full read/write contract to the product and category store.
type Gateway interface {
	ProductStorer
	CategoryStorer
	UserStorer
	Ping(ctx context.Context) error
	Close() error
}
