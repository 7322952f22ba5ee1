package store

import "errors"

// Predefined errors for store operations
var (
	ErrCategoryNotFound   = errors.New("store: category not found")
	ErrCategorySlugExists = errors.New("store: category slug already exists")
	ErrProductNotFound    = errors.New("store: product not found")
	ErrUserNotFound       = errors.New("store: user not found")
	ErrUserEmailExists    = errors.New("store: user email already exists")
)
