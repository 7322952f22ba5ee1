package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-catalog-service/internal/auth"
	"storefront-catalog-service/internal/catalog"
	"storefront-catalog-service/internal/domain"
)

// clientCookie identifies an anonymous visitor for the stored language preference.
const clientCookie = "sf_client"

// ProductView is a product as rendered by the storefront.
type ProductView struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Price           float64   `json:"price"`
	PriceLabel      string    `json:"priceLabel"`
	Description     string    `json:"description"`
	Image           string    `json:"image,omitempty"`
	Category        string    `json:"category"`
	CategoryName    string    `json:"categoryName"`
	IsFeatured      bool      `json:"isFeatured"`
	Rating          float64   `json:"rating"`
	ReviewCount     int       `json:"reviewCount"`
	RatingGenerated bool      `json:"ratingGenerated"`
	OrderLink       string    `json:"orderLink,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ProductListResponse is the body of the product list endpoints.
type ProductListResponse struct {
	Data    []ProductView   `json:"data"`
	Summary catalog.Summary `json:"summary"`
}

func toProductView(p domain.Product, locale domain.Locale, custom []domain.Category) ProductView {
	rating, reviews := catalog.Ratings(p)
	return ProductView{
		ID:              p.ID,
		Name:            p.Name,
		Price:           p.Price,
		PriceLabel:      catalog.FormatPrice(p.Price),
		Description:     p.Description,
		Image:           p.Image,
		Category:        catalog.CategoryKey(p),
		CategoryName:    catalog.DisplayName(p.Category, locale, custom),
		IsFeatured:      p.IsFeatured,
		Rating:          rating,
		ReviewCount:     reviews,
		RatingGenerated: !p.HasRatings(),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func toProductViews(products []domain.Product, locale domain.Locale, custom []domain.Category) []ProductView {
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, toProductView(p, locale, custom))
	}
	return views
}

func (h *HTTPHandler) productViews(products []domain.Product, locale domain.Locale) []ProductView {
	return toProductViews(products, locale, h.catalog.Categories())
}

func (h *HTTPHandler) productView(p domain.Product, locale domain.Locale) ProductView {
	return toProductView(p, locale, h.catalog.Categories())
}

// ProductURL is the public storefront page of a product.
func (c ContactInfo) ProductURL(id string) string {
	base := strings.TrimRight(c.PublicBaseURL, "/")
	if base == "" {
		return ""
	}
	return base + "/product/" + id
}

// OrderLink is the WhatsApp order link for p in locale.
func (c ContactInfo) OrderLink(tr catalog.Translator, locale domain.Locale, p domain.Product) string {
	return catalog.WhatsAppLink(c.WhatsAppPhone, catalog.OrderMessage(tr, locale, p, c.ProductURL(p.ID)))
}

// localeFor resolves the request locale: explicit query parameter first, then the
// stored preference of the visitor, then the configured default.
func (h *HTTPHandler) localeFor(r *http.Request) domain.Locale {
	if v := r.URL.Query().Get("locale"); v != "" {
		return domain.ParseLocale(v)
	}
	if c, err := r.Cookie(clientCookie); err == nil && c.Value != "" {
		locale, ok, err := h.prefs.GetLocale(r.Context(), c.Value)
		if err != nil {
			zap.L().Warn("Failed to read locale preference", zap.Error(err))
		} else if ok {
			return locale
		}
	}
	return h.defaultLocale
}

// --- Product Handlers ---

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	price, err := catalog.ParsePriceRange(q.Get("price"))
	if err != nil {
		h.respondWithCatalogError(w, r, err)
		return
	}
	query := catalog.Query{Search: q.Get("q"), Category: q.Get("category"), Price: price}

	all := h.catalog.Snapshot()
	filtered := query.Apply(all)
	respondWithJSON(w, http.StatusOK, ProductListResponse{
		Data:    h.productViews(filtered, h.localeFor(r)),
		Summary: catalog.Summarize(all, filtered),
	})
}

func (h *HTTPHandler) ListFeaturedProducts(w http.ResponseWriter, r *http.Request) {
	featured := catalog.Featured(h.catalog.Snapshot())
	respondWithJSON(w, http.StatusOK, h.productViews(featured, h.localeFor(r)))
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	locale := h.localeFor(r)

	p, ok := h.catalog.Products().Get(productID)
	if !ok {
		respondWithError(w, http.StatusNotFound, h.tr.Translate("errors.notFound", locale))
		return
	}
	view := h.productView(p, locale)
	view.OrderLink = h.contact.OrderLink(h.tr, locale, p)
	respondWithJSON(w, http.StatusOK, view)
}

// --- Category Handlers ---

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	options := catalog.CategoryOptions(h.localeFor(r), h.catalog.Categories(), h.catalog.Snapshot())
	respondWithJSON(w, http.StatusOK, options)
}

// --- Contact ---

// ContactResponse is the public contact block.
type ContactResponse struct {
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	WhatsApp     string `json:"whatsapp"`
	WhatsAppLink string `json:"whatsappLink"`
}

func (h *HTTPHandler) GetContact(w http.ResponseWriter, r *http.Request) {
	message := h.tr.Translate("contact.whatsappMessage", h.localeFor(r))
	respondWithJSON(w, http.StatusOK, ContactResponse{
		Phone:        h.contact.Phone,
		Email:        h.contact.Email,
		WhatsApp:     h.contact.WhatsAppPhone,
		WhatsAppLink: catalog.WhatsAppLink(h.contact.WhatsAppPhone, message),
	})
}

// --- Locale ---

// LocaleRequest sets the visitor language, or flips it when Toggle is set.
type LocaleRequest struct {
	Locale string `json:"locale" validate:"omitempty,oneof=fr en"`
	Toggle bool   `json:"toggle"`
}

// LocaleResponse reports the effective language.
type LocaleResponse struct {
	Locale domain.Locale `json:"locale"`
}

func (h *HTTPHandler) GetLocale(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, LocaleResponse{Locale: h.localeFor(r)})
}

func (h *HTTPHandler) SetLocale(w http.ResponseWriter, r *http.Request) {
	var req LocaleRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if req.Locale == "" && !req.Toggle {
		respondWithError(w, http.StatusBadRequest, "Validation failed: locale or toggle is required")
		return
	}

	locale := domain.ParseLocale(req.Locale)
	if req.Toggle {
		locale = h.localeFor(r).Toggle()
	}

	clientID := ""
	if c, err := r.Cookie(clientCookie); err == nil && c.Value != "" {
		clientID = c.Value
	} else {
		clientID = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     clientCookie,
			Value:    clientID,
			Path:     "/",
			MaxAge:   int((365 * 24 * time.Hour).Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	if err := h.prefs.SetLocale(r.Context(), clientID, locale); err != nil {
		// The choice still applies to this response; only persistence failed.
		zap.L().Warn("Failed to store locale preference", zap.String("clientID", clientID), zap.Error(err))
	}
	respondWithJSON(w, http.StatusOK, LocaleResponse{Locale: locale})
}

// --- Auth ---

// LoginRequest carries admin credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the signed token.
type LoginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	locale := h.localeFor(r)

	token, user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			zap.L().Info("Login rejected", zap.String("email", req.Email))
			respondWithError(w, http.StatusUnauthorized, h.tr.Translate("login.errors.wrongPassword", locale))
			return
		}
		zap.L().Error("Login failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, h.tr.Translate("login.errors.generic", locale))
		return
	}
	respondWithJSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
}
