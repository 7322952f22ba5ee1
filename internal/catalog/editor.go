package catalog

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/media"
	"storefront-catalog-service/internal/store"
)

// Field names an editable product attribute.
type Field string

const (
	FieldName        Field = "name"
	FieldPrice       Field = "price"
	FieldDescription Field = "description"
	FieldImage       Field = "image"
	FieldCategory    Field = "category"
	FieldIsFeatured  Field = "isFeatured"
	FieldRating      Field = "rating"
	FieldReviewCount Field = "reviewCount"
)

// ImageUploader stores image bytes and returns the public URL.
type ImageUploader interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// PendingImage is an image staged for upload.
type PendingImage struct {
	Data        []byte
	ContentType string
}

// EditBuffer holds the uncommitted values of one product.
type EditBuffer struct {
	ProductID   string   `json:"productId"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	Category    string   `json:"category"`
	IsFeatured  bool     `json:"isFeatured"`
	Rating      *float64 `json:"rating"`
	ReviewCount *int     `json:"reviewCount"`

	PendingImage *PendingImage `json:"-"`

	base domain.Product
}

// BeginEdit snapshots the editable fields of p into a new buffer.
func BeginEdit(p domain.Product) *EditBuffer {
	p = p.Clone()
	return &EditBuffer{
		ProductID:   p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		Image:       p.Image,
		Category:    p.Category,
		IsFeatured:  p.IsFeatured,
		Rating:      p.Rating,
		ReviewCount: p.ReviewCount,
		base:        p,
	}
}

func (b *EditBuffer) clone() *EditBuffer {
	c := *b
	c.base = b.base.Clone()
	if b.Rating != nil {
		r := *b.Rating
		c.Rating = &r
	}
	if b.ReviewCount != nil {
		n := *b.ReviewCount
		c.ReviewCount = &n
	}
	if b.PendingImage != nil {
		img := *b.PendingImage
		c.PendingImage = &img
	}
	return &c
}

// HasPendingImage reports whether an image is staged for upload.
func (b *EditBuffer) HasPendingImage() bool {
	return b.PendingImage != nil
}

// Update coerces value and stores it in field. On error the buffer is unchanged.
// A nil or empty value clears the optional rating fields.
func (b *EditBuffer) Update(field Field, value any) error {
	const op = "Update"
	switch field {
	case FieldName:
		s, err := cast.ToStringE(value)
		if err != nil || strings.TrimSpace(s) == "" {
			return invalid(op, "name must be a non-empty string")
		}
		b.Name = strings.TrimSpace(s)
	case FieldPrice:
		f, err := toFinite(value)
		if err != nil || f < 0 {
			return invalid(op, "price must be a number >= 0")
		}
		b.Price = f
	case FieldDescription:
		s, err := cast.ToStringE(value)
		if err != nil {
			return invalid(op, "description must be a string")
		}
		b.Description = s
	case FieldImage:
		s, err := cast.ToStringE(value)
		if err != nil {
			return invalid(op, "image must be a URL string")
		}
		b.Image = strings.TrimSpace(s)
	case FieldCategory:
		s, err := cast.ToStringE(value)
		if err != nil {
			return invalid(op, "category must be a string")
		}
		s = strings.TrimSpace(s)
		switch s {
		case SelectorAll:
			return invalid(op, "category %q is a selector, not a category", s)
		case SelectorUncategorized:
			s = ""
		}
		b.Category = s
	case FieldIsFeatured:
		v, err := cast.ToBoolE(value)
		if err != nil {
			return invalid(op, "isFeatured must be a boolean")
		}
		b.IsFeatured = v
	case FieldRating:
		if isBlank(value) {
			b.Rating = nil
			return nil
		}
		f, err := toFinite(value)
		if err != nil || f < 1 || f > 5 {
			return invalid(op, "rating must be a number between 1 and 5")
		}
		b.Rating = &f
	case FieldReviewCount:
		if isBlank(value) {
			b.ReviewCount = nil
			return nil
		}
		n, err := ParseCount(value)
		if err != nil {
			return invalid(op, "reviewCount must be a non-negative integer")
		}
		b.ReviewCount = &n
	default:
		return invalid(op, "unknown field %q", field)
	}
	return nil
}

// StageImage records an image to upload at commit time, optionally cropped to a
// square first.
func (b *EditBuffer) StageImage(img PendingImage, crop *media.CropRect) error {
	const op = "StageImage"
	if len(img.Data) == 0 {
		return invalid(op, "image is empty")
	}
	if crop != nil {
		cropped, err := media.CropSquare(img.Data, *crop)
		if err != nil {
			return newError(op, ErrInvalidInput, err)
		}
		img = PendingImage{Data: cropped, ContentType: "image/jpeg"}
	}
	b.PendingImage = &img
	return nil
}

// Validate checks the cross-field rules a buffer must satisfy before commit.
func (b *EditBuffer) Validate() error {
	return validateProduct("Commit", b.product())
}

// product applies the buffer on top of the original record.
func (b *EditBuffer) product() domain.Product {
	p := b.base.Clone()
	p.ID = b.ProductID
	p.Name = b.Name
	p.Price = b.Price
	p.Description = b.Description
	p.Image = b.Image
	p.Category = b.Category
	p.IsFeatured = b.IsFeatured
	p.Rating = b.Rating
	p.ReviewCount = b.ReviewCount
	return p.Clone()
}

func validateProduct(op string, p domain.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid(op, "name is required")
	}
	if p.Price < 0 || math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
		return invalid(op, "price must be a number >= 0")
	}
	if (p.Rating == nil) != (p.ReviewCount == nil) {
		return invalid(op, "rating and reviewCount must be set together")
	}
	if p.Rating != nil && (*p.Rating < 1 || *p.Rating > 5) {
		return invalid(op, "rating must be between 1 and 5")
	}
	if p.ReviewCount != nil && *p.ReviewCount < 0 {
		return invalid(op, "reviewCount must be >= 0")
	}
	return nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func toFinite(v any) (float64, error) {
	if isBlank(v) {
		return 0, errors.New("empty value")
	}
	switch t := v.(type) {
	case string:
		v = strings.TrimSpace(t)
	case bool:
		return 0, errors.New("not a number")
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("not a finite number")
	}
	return f, nil
}

// ParseCount coerces v to a non-negative whole number. Strings are parsed in base 10
// explicitly; cast would read "010" as octal.
func ParseCount(v any) (int, error) {
	var n int
	switch t := v.(type) {
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, err
		}
		n = parsed
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return 0, errors.New("not a whole number")
		}
		n = int(t)
	case float32:
		if float64(t) != math.Trunc(float64(t)) {
			return 0, errors.New("not a whole number")
		}
		n = int(t)
	case bool:
		return 0, errors.New("not a number")
	default:
		parsed, err := cast.ToIntE(v)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	if n < 0 {
		return 0, errors.New("negative count")
	}
	return n, nil
}

// SessionState is the state of the editor's single session slot.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionEditing
	SessionCommitting
)

func (s SessionState) String() string {
	switch s {
	case SessionEditing:
		return "editing"
	case SessionCommitting:
		return "committing"
	default:
		return "idle"
	}
}

// Editor owns the single edit session of the admin console.
type Editor struct {
	mu       sync.Mutex
	store    store.ProductStorer
	uploader ImageUploader
	products *Collection
	now      func() time.Time

	state  SessionState
	buffer *EditBuffer

	lastRequestID string
	lastResult    *domain.Product
}

// NewEditor creates an idle editor writing through st and updating products.
func NewEditor(st store.ProductStorer, uploader ImageUploader, products *Collection) *Editor {
	return &Editor{
		store:    st,
		uploader: uploader,
		products: products,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// State returns the current session state.
func (e *Editor) State() SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Begin opens a session on productID. Re-opening the product already being edited
// returns the current buffer; any other product is refused while a session is open.
func (e *Editor) Begin(ctx context.Context, productID string) (*EditBuffer, error) {
	const op = "Begin"
	e.mu.Lock()
	if err := e.checkOpenable(op, productID); err != nil || e.state == SessionEditing {
		defer e.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return e.buffer.clone(), nil
	}
	e.mu.Unlock()

	p, ok := e.products.Get(productID)
	if !ok {
		loaded, err := e.store.GetProductByID(ctx, productID)
		if err != nil {
			if errors.Is(err, store.ErrProductNotFound) {
				return nil, newError(op, ErrNotFound, err)
			}
			return nil, newError(op, ErrGatewayFailure, err)
		}
		p = *loaded
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkOpenable(op, productID); err != nil {
		return nil, err
	}
	if e.state == SessionIdle {
		e.buffer = BeginEdit(p)
		e.state = SessionEditing
	}
	return e.buffer.clone(), nil
}

func (e *Editor) checkOpenable(op, productID string) error {
	switch e.state {
	case SessionCommitting:
		return newError(op, ErrCommitInProgress, nil)
	case SessionEditing:
		if e.buffer.ProductID != productID {
			return newError(op, ErrSessionBusy, nil)
		}
	}
	return nil
}

func (e *Editor) requireEditing(op string) error {
	switch e.state {
	case SessionCommitting:
		return newError(op, ErrCommitInProgress, nil)
	case SessionIdle:
		return newError(op, ErrNoSession, nil)
	}
	return nil
}

// Update sets one field of the open session's buffer.
func (e *Editor) Update(field Field, value any) (*EditBuffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireEditing("Update"); err != nil {
		return nil, err
	}
	if err := e.buffer.Update(field, value); err != nil {
		return nil, err
	}
	return e.buffer.clone(), nil
}

// StageImage stages an image on the open session.
func (e *Editor) StageImage(img PendingImage, crop *media.CropRect) (*EditBuffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireEditing("StageImage"); err != nil {
		return nil, err
	}
	if err := e.buffer.StageImage(img, crop); err != nil {
		return nil, err
	}
	return e.buffer.clone(), nil
}

// Current returns a copy of the open session's buffer.
func (e *Editor) Current() (*EditBuffer, SessionState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.buffer == nil {
		return nil, e.state
	}
	return e.buffer.clone(), e.state
}

// Cancel discards the open session without touching the store.
func (e *Editor) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireEditing("Cancel"); err != nil {
		return err
	}
	e.buffer = nil
	e.state = SessionIdle
	return nil
}

// Commit writes the buffer through the store and updates the collection. A commit
// repeating the request id of the last successful one returns that result again
// without writing. On failure the session stays open with its buffer intact.
func (e *Editor) Commit(ctx context.Context, requestID string) (domain.Product, error) {
	const op = "Commit"
	e.mu.Lock()
	if requestID != "" && requestID == e.lastRequestID && e.lastResult != nil {
		defer e.mu.Unlock()
		return e.lastResult.Clone(), nil
	}
	if err := e.requireEditing(op); err != nil {
		e.mu.Unlock()
		return domain.Product{}, err
	}
	if err := e.buffer.Validate(); err != nil {
		e.mu.Unlock()
		return domain.Product{}, err
	}
	buf := e.buffer.clone()
	e.state = SessionCommitting
	e.mu.Unlock()

	updated, err := e.write(ctx, op, buf)
	if err != nil {
		e.mu.Lock()
		e.state = SessionEditing
		e.mu.Unlock()
		return domain.Product{}, err
	}

	e.products.Replace(*updated)

	e.mu.Lock()
	e.state = SessionIdle
	e.buffer = nil
	e.lastRequestID = requestID
	e.lastResult = updated
	e.mu.Unlock()

	zap.L().Info("Product updated", zap.String("productID", updated.ID))
	return updated.Clone(), nil
}

func (e *Editor) write(ctx context.Context, op string, buf *EditBuffer) (*domain.Product, error) {
	p := buf.product()
	if buf.PendingImage != nil {
		url, err := upload(ctx, e.uploader, *buf.PendingImage)
		if err != nil {
			return nil, newError(op, ErrUploadFailure, err)
		}
		p.Image = url
	}
	p.UpdatedAt = e.now()

	updated, err := e.store.UpdateProduct(ctx, &p)
	if err != nil {
		zap.L().Error("Failed to update product", zap.String("productID", p.ID), zap.Error(err))
		if errors.Is(err, store.ErrProductNotFound) {
			return nil, newError(op, ErrNotFound, err)
		}
		return nil, newError(op, ErrGatewayFailure, err)
	}
	return updated, nil
}

func upload(ctx context.Context, uploader ImageUploader, img PendingImage) (string, error) {
	if uploader == nil {
		return "", errors.New("no image storage configured")
	}
	url, err := uploader.Upload(ctx, img.Data, img.ContentType)
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", errors.New("image storage returned an empty URL")
	}
	return url, nil
}
