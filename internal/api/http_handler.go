package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"storefront-catalog-service/internal/auth"
	"storefront-catalog-service/internal/catalog"
	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/prefs"
)

// ContactInfo is the public contact block of the shop.
type ContactInfo struct {
	WhatsAppPhone string
	Phone         string
	Email         string
	PublicBaseURL string
}

// Deps are the collaborators of the HTTP API.
type Deps struct {
	Catalog       *catalog.Service
	Editor        *catalog.Editor
	Auth          *auth.Authenticator
	Translator    catalog.Translator
	Prefs         prefs.LocaleStore
	Contact       ContactInfo
	DefaultLocale domain.Locale
	MaxUploadMB   int64
	Health        func(ctx context.Context) error
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	catalog       *catalog.Service
	editor        *catalog.Editor
	auth          *auth.Authenticator
	tr            catalog.Translator
	prefs         prefs.LocaleStore
	contact       ContactInfo
	defaultLocale domain.Locale
	maxUpload     int64
	health        func(ctx context.Context) error
	validate      *validator.Validate
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(d Deps) *HTTPHandler {
	if d.Prefs == nil {
		d.Prefs = prefs.NewMemoryLocaleStore()
	}
	if d.DefaultLocale == "" {
		d.DefaultLocale = domain.DefaultLocale
	}
	if d.MaxUploadMB <= 0 {
		d.MaxUploadMB = 10
	}
	return &HTTPHandler{
		catalog:       d.Catalog,
		editor:        d.Editor,
		auth:          d.Auth,
		tr:            d.Translator,
		prefs:         d.Prefs,
		contact:       d.Contact,
		defaultLocale: d.DefaultLocale,
		maxUpload:     d.MaxUploadMB << 20,
		health:        d.Health,
		validate:      validator.New(),
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil { // Avoid writing empty body for 204 No Content
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			zap.L().Error("Failed to encode JSON response", zap.Error(err))
		}
	}
}

// errorStatus maps catalog error kinds to an HTTP status and a message key.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, catalog.ErrInvalidInput):
		return http.StatusBadRequest, "errors.invalidInput"
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, "errors.notFound"
	case errors.Is(err, catalog.ErrCategoryConflict):
		return http.StatusConflict, "errors.categoryConflict"
	case errors.Is(err, catalog.ErrSessionBusy):
		return http.StatusConflict, "errors.sessionBusy"
	case errors.Is(err, catalog.ErrNoSession):
		return http.StatusNotFound, "errors.noSession"
	case errors.Is(err, catalog.ErrCommitInProgress):
		return http.StatusConflict, "errors.commitInProgress"
	case errors.Is(err, catalog.ErrUploadFailure):
		return http.StatusBadGateway, "errors.upload"
	case errors.Is(err, catalog.ErrGatewayFailure):
		return http.StatusBadGateway, "errors.gateway"
	default:
		return http.StatusInternalServerError, "login.errors.generic"
	}
}

// respondWithCatalogError writes err as a localized error response.
func (h *HTTPHandler) respondWithCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	code, key := errorStatus(err)
	if code >= http.StatusInternalServerError {
		zap.L().Error("Catalog operation failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		zap.L().Debug("Catalog operation rejected", zap.String("path", r.URL.Path), zap.Error(err))
	}
	respondWithJSON(w, code, ErrorResponse{
		Error:   h.tr.Translate(key, h.localeFor(r)),
		Details: err.Error(),
	})
}

func (h *HTTPHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return false
	}
	return true
}

// --- Health ---

func (h *HTTPHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	storeStatus := "healthy"
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			storeStatus = "unhealthy"
			zap.L().Warn("Health check store ping failed", zap.Error(err))
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"serviceName": ServiceName,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"store":       storeStatus,
		"products":    h.catalog.Products().Len(),
	})
}

// ServiceName identifies the service in health and log output.
const ServiceName = "StorefrontCatalogService"

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", h.Healthz)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Get("/featured", h.ListFeaturedProducts) // before {productId}
			r.Get("/{productId}", h.GetProduct)
		})
		r.Get("/categories", h.ListCategories)
		r.Get("/contact", h.GetContact)
		r.Get("/locale", h.GetLocale)
		r.Put("/locale", h.SetLocale)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.auth.RequireAdmin)

			r.Get("/auth/me", h.Me)
			r.Post("/auth/password", h.ChangePassword)

			r.Route("/admin", func(r chi.Router) {
				r.Get("/products", h.AdminListProducts)
				r.Post("/products", h.CreateProduct)
				r.Delete("/products/{productId}", h.DeleteProduct)
				r.Post("/categories", h.CreateCategory)
				r.Delete("/categories/{categoryId}", h.DeleteCategory)
				r.Post("/reload", h.Reload)

				r.Route("/edit", func(r chi.Router) {
					r.Get("/", h.GetEditSession)
					r.Patch("/", h.UpdateEditField)
					r.Delete("/", h.CancelEdit)
					r.Put("/image", h.StageEditImage)
					r.Post("/commit", h.CommitEdit)
					r.Post("/{productId}", h.BeginEdit)
				})
			})
		})
	})
}
