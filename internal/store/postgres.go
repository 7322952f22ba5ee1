package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"storefront-catalog-service/internal/domain"
)

// PostgresStore implements Gateway on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const productColumns = `id, name, price, COALESCE(description, ''), COALESCE(image, ''), COALESCE(category, ''),
		is_featured, rating, review_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner, p *domain.Product) error {
	return row.Scan(
		&p.ID, &p.Name, &p.Price, &p.Description, &p.Image, &p.Category,
		&p.IsFeatured, &p.Rating, &p.ReviewCount, &p.CreatedAt, &p.UpdatedAt,
	)
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return strings.Contains(pqErr.Constraint, constraint)
	}
	return false
}

// isMalformedID reports whether Postgres rejected a key that does not parse as a UUID.
// Such a key cannot match any row.
func isMalformedID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "22P02"
}

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the storefront schema and its tables when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: EnsureSchema failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- CategoryStorer Implementation ---

func (s *PostgresStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	query := `
		SELECT id, category_id, name, created_at
		FROM storefront.categories
		ORDER BY created_at ASC;
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: ListCategories failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.CategoryID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: ListCategories failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListCategories iteration error: %w", err)
	}
	return categories, nil
}

func (s *PostgresStore) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	query := `
		INSERT INTO storefront.categories (id, category_id, name)
		VALUES ($1, $2, $3)
		RETURNING id, category_id, name, created_at;
	`
	var created domain.Category
	err := s.db.QueryRowContext(ctx, query, uuid.NewString(), category.CategoryID, category.Name).Scan(
		&created.ID, &created.CategoryID, &created.Name, &created.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "categories_category_id_key") {
			return nil, ErrCategorySlugExists
		}
		return nil, fmt.Errorf("store: CreateCategory failed to scan row: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) DeleteCategory(ctx context.Context, id string) error {
	// Products keep the orphaned slug; there is no foreign key on products.category.
	query := `DELETE FROM storefront.categories WHERE id = $1;`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		if isMalformedID(err) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("store: DeleteCategory failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteCategory failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// --- ProductStorer Implementation ---

func (s *PostgresStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM storefront.products
		ORDER BY created_at DESC;`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: ListProducts failed to query products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("store: ListProducts failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListProducts iteration error: %w", err)
	}
	return products, nil
}

func (s *PostgresStore) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM storefront.products
		WHERE id = $1;`
	var product domain.Product
	if err := scanProduct(s.db.QueryRowContext(ctx, query, id), &product); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isMalformedID(err) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: GetProductByID failed to scan row: %w", err)
	}
	return &product, nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	query := `
		INSERT INTO storefront.products
			(id, name, price, description, image, category, is_featured, rating, review_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + productColumns + `;`
	var created domain.Product
	err := scanProduct(s.db.QueryRowContext(ctx, query,
		uuid.NewString(), product.Name, product.Price, product.Description, product.Image,
		product.Category, product.IsFeatured, product.Rating, product.ReviewCount,
	), &created)
	if err != nil {
		return nil, fmt.Errorf("store: CreateProduct failed to scan row: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	query := `
		UPDATE storefront.products
		SET name = $1, price = $2, description = $3, image = $4, category = $5,
			is_featured = $6, rating = $7, review_count = $8, updated_at = $9
		WHERE id = $10
		RETURNING ` + productColumns + `;`
	var updated domain.Product
	err := scanProduct(s.db.QueryRowContext(ctx, query,
		product.Name, product.Price, product.Description, product.Image, product.Category,
		product.IsFeatured, product.Rating, product.ReviewCount, product.UpdatedAt, product.ID,
	), &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isMalformedID(err) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: UpdateProduct failed to scan row: %w", err)
	}
	return &updated, nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	query := `DELETE FROM storefront.products WHERE id = $1;`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		if isMalformedID(err) {
			return ErrProductNotFound
		}
		return fmt.Errorf("store: DeleteProduct failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// --- UserStorer Implementation ---

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, role, created_at, updated_at
		FROM storefront.users
		WHERE email = $1;
	`
	var u domain.User
	err := s.db.QueryRowContext(ctx, query, strings.ToLower(email)).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("store: GetUserByEmail failed to scan row: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO storefront.users (id, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, password_hash, role, created_at, updated_at;
	`
	var u domain.User
	err := s.db.QueryRowContext(ctx, query, uuid.NewString(), strings.ToLower(user.Email), user.PasswordHash, user.Role).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return nil, ErrUserEmailExists
		}
		return nil, fmt.Errorf("store: CreateUser failed to scan row: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	query := `UPDATE storefront.users SET password_hash = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2;`
	result, err := s.db.ExecContext(ctx, query, hash, id)
	if err != nil {
		if isMalformedID(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("store: UpdatePasswordHash failed to execute update: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: UpdatePasswordHash failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	zap.L().Info("Closing database connection pool")
	if err := s.db.Close(); err != nil {
		zap.L().Error("Failed to close database connection pool", zap.Error(err))
		return err
	}
	return nil
}
