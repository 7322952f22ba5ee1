package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/store"
)

// Store is the part of the gateway the catalog service writes through.
type Store interface {
	store.ProductStorer
	store.CategoryStorer
}

// ProductInput carries the fields of a new product.
type ProductInput struct {
	Name        string   `json:"name" validate:"required,min=1,max=200"`
	Price       float64  `json:"price" validate:"gte=0"`
	Description string   `json:"description" validate:"max=5000"`
	Category    string   `json:"category" validate:"max=100"`
	IsFeatured  bool     `json:"isFeatured"`
	Rating      *float64 `json:"rating,omitempty" validate:"omitempty,gte=1,lte=5"`
	ReviewCount *int     `json:"reviewCount,omitempty" validate:"omitempty,gte=0"`
}

// Service runs the admin operations around the gateway and keeps the in-memory
// collection and custom category list in step with it.
type Service struct {
	store    Store
	uploader ImageUploader
	products *Collection

	mu     sync.RWMutex
	custom []domain.Category
	catGen uint64 // bumped by every category write
}

// NewService creates a Service. Call Load before serving reads.
func NewService(st Store, uploader ImageUploader, products *Collection) *Service {
	return &Service{store: st, uploader: uploader, products: products}
}

// Products returns the shared collection.
func (s *Service) Products() *Collection {
	return s.products
}

// Snapshot returns a copy of the current products.
func (s *Service) Snapshot() []domain.Product {
	return s.products.Snapshot()
}

// Categories returns a copy of the custom categories.
func (s *Service) Categories() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Category(nil), s.custom...)
}

// Load replaces the collection and the custom categories with the store's contents.
// Nothing is replaced unless both reads succeed.
func (s *Service) Load(ctx context.Context) error {
	const op = "Load"
	// Writes that land while the store is being read win over the older listing; the
	// next reload picks up whatever was skipped.
	productsVersion := s.products.Version()
	s.mu.RLock()
	catGen := s.catGen
	s.mu.RUnlock()

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return newError(op, ErrGatewayFailure, err)
	}
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return newError(op, ErrGatewayFailure, err)
	}
	if !s.products.ResetIfVersion(products, productsVersion) {
		zap.L().Debug("Catalog reload kept products written during load")
	}
	s.mu.Lock()
	if s.catGen == catGen {
		s.custom = categories
		s.catGen++
	} else {
		zap.L().Debug("Catalog reload kept categories written during load")
	}
	s.mu.Unlock()
	zap.L().Debug("Catalog loaded", zap.Int("products", len(products)), zap.Int("categories", len(categories)))
	return nil
}

// CreateProduct uploads img when given, then inserts the product. An upload failure
// aborts before anything is written.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput, img *PendingImage) (domain.Product, error) {
	const op = "CreateProduct"
	category := strings.TrimSpace(in.Category)
	switch category {
	case SelectorUncategorized:
		category = ""
	case SelectorAll:
		return domain.Product{}, invalid(op, "category %q is a selector, not a category", category)
	}
	p := domain.Product{
		Name:        strings.TrimSpace(in.Name),
		Price:       in.Price,
		Description: in.Description,
		Category:    category,
		IsFeatured:  in.IsFeatured,
		Rating:      in.Rating,
		ReviewCount: in.ReviewCount,
	}
	if err := validateProduct(op, p); err != nil {
		return domain.Product{}, err
	}
	if img != nil {
		url, err := upload(ctx, s.uploader, *img)
		if err != nil {
			zap.L().Warn("Image upload failed, product not created", zap.Error(err))
			return domain.Product{}, newError(op, ErrUploadFailure, err)
		}
		p.Image = url
	}

	created, err := s.store.CreateProduct(ctx, &p)
	if err != nil {
		return domain.Product{}, newError(op, ErrGatewayFailure, err)
	}
	s.products.Add(*created)
	zap.L().Info("Product created", zap.String("productID", created.ID))
	return created.Clone(), nil
}

// DeleteProduct removes the product from the store, then from the collection.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	const op = "DeleteProduct"
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			return newError(op, ErrNotFound, err)
		}
		return newError(op, ErrGatewayFailure, err)
	}
	s.products.Remove(id)
	zap.L().Info("Product deleted", zap.String("productID", id))
	return nil
}

// CreateCategory stores a custom category named name. The slug is Normalize(name) and
// must not collide with a built-in, a reserved selector or an existing custom category.
func (s *Service) CreateCategory(ctx context.Context, name string) (domain.Category, error) {
	const op = "CreateCategory"
	name = strings.TrimSpace(name)
	slug := Normalize(name)
	if slug == "" {
		return domain.Category{}, invalid(op, "category name is empty")
	}
	if IsBuiltin(slug) || IsReserved(slug) || s.hasCustom(slug) {
		return domain.Category{}, newError(op, ErrCategoryConflict, nil)
	}

	created, err := s.store.CreateCategory(ctx, &domain.Category{CategoryID: slug, Name: name})
	if err != nil {
		if errors.Is(err, store.ErrCategorySlugExists) {
			return domain.Category{}, newError(op, ErrCategoryConflict, err)
		}
		return domain.Category{}, newError(op, ErrGatewayFailure, err)
	}
	s.mu.Lock()
	s.custom = append(s.custom, *created)
	s.catGen++
	s.mu.Unlock()
	return *created, nil
}

func (s *Service) hasCustom(slug string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.custom {
		if c.CategoryID == slug {
			return true
		}
	}
	return false
}

// DeleteCategory removes a custom category record. Products that reference it keep
// the now orphaned id.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	const op = "DeleteCategory"
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		if errors.Is(err, store.ErrCategoryNotFound) {
			return newError(op, ErrNotFound, err)
		}
		return newError(op, ErrGatewayFailure, err)
	}
	s.mu.Lock()
	for i, c := range s.custom {
		if c.ID == id {
			s.custom = append(s.custom[:i:i], s.custom[i+1:]...)
			break
		}
	}
	s.catGen++
	s.mu.Unlock()
	return nil
}

// ScheduleReload registers a job on sched that reloads the catalog every interval,
// picking up writes made by other instances. A failed reload keeps the current state.
func (s *Service) ScheduleReload(sched *cron.Cron, interval time.Duration) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("catalog: reload interval must be positive, got %s", interval)
	}
	return sched.AddFunc("@every "+interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		if err := s.Load(ctx); err != nil {
			zap.L().Warn("Scheduled catalog reload failed", zap.Error(err))
		}
	})
}

const reloadTimeout = 30 * time.Second
