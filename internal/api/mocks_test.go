package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront-catalog-service/internal/auth"
	"storefront-catalog-service/internal/catalog"
	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/i18n"
	"storefront-catalog-service/internal/prefs"
)

// MockGateway is a mock implementation of the product, category and user stores.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) ListProducts(ctx context.Context) ([]domain.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *MockGateway) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockGateway) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	args := m.Called(ctx, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockGateway) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	args := m.Called(ctx, product)
	if fn, ok := args.Get(0).(func(context.Context, *domain.Product) *domain.Product); ok {
		return fn(ctx, product), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockGateway) DeleteProduct(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockGateway) ListCategories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *MockGateway) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *MockGateway) DeleteCategory(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockGateway) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockGateway) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockGateway) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return m.Called(ctx, id, hash).Error(0)
}

// MockUploader is a mock implementation of catalog.ImageUploader.
type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, data, contentType)
	return args.String(0), args.Error(1)
}

// echo returns a copy of the product it is given, like a store that accepts every write.
func echo(ctx context.Context, p *domain.Product) *domain.Product {
	c := p.Clone()
	return &c
}

// Helper function to get a pointer (useful for optional fields in domain structs)
func PtrTo[T any](v T) *T {
	return &v
}

const testBaseURL = "https://shop.example"

func testProducts() []domain.Product {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return []domain.Product{
		{ID: "p1", Name: "Veste Bogolan", Price: 25000, Description: "Veste en tissu bogolan", Category: "vestes",
			IsFeatured: true, Rating: PtrTo(4.9), ReviewCount: PtrTo(12), CreatedAt: created, UpdatedAt: created},
		{ID: "p2", Name: "Robe Wax", Price: 18000, Category: "boubous", CreatedAt: created, UpdatedAt: created},
		{ID: "p3", Name: "Chemise Lin", Price: 9000, CreatedAt: created, UpdatedAt: created},
		{ID: "p4", Name: "Pantalon Toile", Price: 12000, Category: "ancienne", CreatedAt: created, UpdatedAt: created},
	}
}

func testCategories() []domain.Category {
	return []domain.Category{{ID: "c1", CategoryID: "boubous", Name: "Boubous"}}
}

type testEnv struct {
	server *httptest.Server
	gw     *MockGateway
	up     *MockUploader
	svc    *catalog.Service
	editor *catalog.Editor
	auth   *auth.Authenticator
}

// Helper for setting up tests with a chi router and handler over a loaded catalog.
func setupTestChiServer(t *testing.T) *testEnv {
	t.Helper()
	gw := new(MockGateway)
	up := new(MockUploader)
	products := catalog.NewCollection()
	svc := catalog.NewService(gw, up, products)
	gw.On("ListProducts", mock.Anything).Return(testProducts(), nil).Once()
	gw.On("ListCategories", mock.Anything).Return(testCategories(), nil).Once()
	require.NoError(t, svc.Load(context.Background()))

	tr, err := i18n.New()
	require.NoError(t, err)
	authn := auth.NewAuthenticator(gw, "test-secret", time.Hour)
	editor := catalog.NewEditor(gw, up, products)

	handler := NewHTTPHandler(Deps{
		Catalog:    svc,
		Editor:     editor,
		Auth:       authn,
		Translator: tr,
		Prefs:      prefs.NewMemoryLocaleStore(),
		Contact: ContactInfo{
			WhatsAppPhone: "22383561498",
			Phone:         "+223 83 56 14 98",
			Email:         "info@goldenthreads.com",
			PublicBaseURL: testBaseURL,
		},
		DefaultLocale: domain.LocaleFR,
		Health:        func(context.Context) error { return nil },
	})
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testEnv{server: server, gw: gw, up: up, svc: svc, editor: editor, auth: authn}
}

func (e *testEnv) token(t *testing.T, role string) string {
	t.Helper()
	tok, err := e.auth.IssueToken(&domain.User{ID: "u1", Email: "admin@goldenthreads.com", Role: role})
	require.NoError(t, err)
	return tok
}

// do sends a request with an optional JSON body and bearer token.
func (e *testEnv) do(t *testing.T, method, path string, body any, token string, headers ...string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
