package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"storefront-catalog-service/internal/auth"
	"storefront-catalog-service/internal/catalog"
	"storefront-catalog-service/internal/media"
	"storefront-catalog-service/internal/store"
)

// --- Account ---

// MeResponse describes the authenticated admin.
type MeResponse struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

func (h *HTTPHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, h.tr.Translate("errors.unauthorized", h.localeFor(r)))
		return
	}
	respondWithJSON(w, http.StatusOK, MeResponse{ID: claims.Subject, Email: claims.Email, Roles: claims.Roles})
}

// ChangePasswordRequest is the body of the password change form.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

func (h *HTTPHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, h.tr.Translate("errors.unauthorized", h.localeFor(r)))
		return
	}
	var req ChangePasswordRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	locale := h.localeFor(r)

	err := h.auth.ChangePassword(r.Context(), claims.Email, req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, map[string]string{
			"title":   h.tr.Translate("admin.changePassword.success.title", locale),
			"message": h.tr.Translate("admin.changePassword.success.message", locale),
		})
	case errors.Is(err, auth.ErrPasswordTooShort):
		respondWithError(w, http.StatusBadRequest, h.tr.Translate("admin.changePassword.errors.passwordTooShort", locale))
	case errors.Is(err, auth.ErrPasswordMismatch):
		respondWithError(w, http.StatusBadRequest, h.tr.Translate("admin.changePassword.errors.passwordMismatch", locale))
	case errors.Is(err, auth.ErrWrongCurrentPassword):
		respondWithError(w, http.StatusBadRequest, h.tr.Translate("admin.changePassword.errors.wrongCurrentPassword", locale))
	case errors.Is(err, store.ErrUserNotFound):
		respondWithError(w, http.StatusNotFound, h.tr.Translate("login.errors.userNotFound", locale))
	default:
		zap.L().Error("Password change failed", zap.String("email", claims.Email), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, h.tr.Translate("admin.changePassword.errors.generic", locale))
	}
}

// --- Product Administration ---

// AdminListProducts returns the whole collection with the dashboard counters. It
// accepts the same q and category filters as the storefront.
func (h *HTTPHandler) AdminListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	all := h.catalog.Snapshot()
	filtered := catalog.Filter(all, q.Get("q"), q.Get("category"))
	respondWithJSON(w, http.StatusOK, ProductListResponse{
		Data:    h.productViews(filtered, h.localeFor(r)),
		Summary: catalog.Summarize(all, filtered),
	})
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var (
		in  catalog.ProductInput
		img *catalog.PendingImage
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var err error
		if in, err = h.productInputFromForm(w, r); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid form: "+err.Error())
			return
		}
		if img, err = h.imageFromForm(r, false); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid image: "+err.Error())
			return
		}
		if err := h.validate.Struct(in); err != nil {
			respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
			return
		}
	} else if !h.decodeAndValidate(w, r, &in) {
		return
	}

	created, err := h.catalog.CreateProduct(r.Context(), in, img)
	if err != nil {
		h.respondWithCatalogError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, h.productView(created, h.localeFor(r)))
}

func (h *HTTPHandler) productInputFromForm(w http.ResponseWriter, r *http.Request) (catalog.ProductInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return catalog.ProductInput{}, err
	}
	in := catalog.ProductInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
	}
	var err error
	if in.Price, err = cast.ToFloat64E(strings.TrimSpace(r.FormValue("price"))); err != nil {
		return in, fmt.Errorf("price: %w", err)
	}
	if v := r.FormValue("isFeatured"); v != "" {
		if in.IsFeatured, err = cast.ToBoolE(v); err != nil {
			return in, fmt.Errorf("isFeatured: %w", err)
		}
	}
	if v := strings.TrimSpace(r.FormValue("rating")); v != "" {
		rating, err := cast.ToFloat64E(v)
		if err != nil {
			return in, fmt.Errorf("rating: %w", err)
		}
		in.Rating = &rating
	}
	if v := strings.TrimSpace(r.FormValue("reviewCount")); v != "" {
		count, err := catalog.ParseCount(v)
		if err != nil {
			return in, fmt.Errorf("reviewCount: %w", err)
		}
		in.ReviewCount = &count
	}
	return in, nil
}

// imageFromForm reads the optional "image" part of a parsed multipart form. A crop
// selection (cropX, cropY, cropWidth) is applied when present.
func (h *HTTPHandler) imageFromForm(r *http.Request, required bool) (*catalog.PendingImage, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) && !required {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload))
	if err != nil {
		return nil, err
	}
	if _, _, err := media.DetectImage(data); err != nil {
		return nil, err
	}
	img := &catalog.PendingImage{Data: data, ContentType: header.Header.Get("Content-Type")}

	crop, err := h.cropFromForm(r)
	if err != nil {
		return nil, err
	}
	if crop != nil {
		cropped, err := media.CropSquare(img.Data, *crop)
		if err != nil {
			return nil, err
		}
		img = &catalog.PendingImage{Data: cropped, ContentType: "image/jpeg"}
	}
	return img, nil
}

func (h *HTTPHandler) cropFromForm(r *http.Request) (*media.CropRect, error) {
	if r.FormValue("cropWidth") == "" {
		return nil, nil
	}
	var crop media.CropRect
	var err error
	if crop.X, err = cast.ToFloat64E(r.FormValue("cropX")); err != nil {
		return nil, fmt.Errorf("cropX: %w", err)
	}
	if crop.Y, err = cast.ToFloat64E(r.FormValue("cropY")); err != nil {
		return nil, fmt.Errorf("cropY: %w", err)
	}
	if crop.Width, err = cast.ToFloat64E(r.FormValue("cropWidth")); err != nil {
		return nil, fmt.Errorf("cropWidth: %w", err)
	}
	if err := h.validate.Struct(crop); err != nil {
		return nil, err
	}
	return &crop, nil
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	if err := h.catalog.DeleteProduct(r.Context(), productID); err != nil {
		h.respondWithCatalogError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reload refetches products and categories from the store.
func (h *HTTPHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Load(r.Context()); err != nil {
		h.respondWithCatalogError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{
		"products":   h.catalog.Products().Len(),
		"categories": len(h.catalog.Categories()),
	})
}

// --- Category Administration ---

// CreateCategoryRequest defines the expected JSON body for creating a category.
type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

func (h *HTTPHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	created, err := h.catalog.CreateCategory(r.Context(), req.Name)
	if err != nil {
		h.respondWithCatalogError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryId")
	if err := h.catalog.DeleteCategory(r.Context(), categoryID); err != nil {
		h.respondWithCatalogError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Edit Session ---

// EditSessionResponse reports the editor state and its buffer.
type EditSessionResponse struct {
	State           string              `json:"state"`
	Buffer          *catalog.EditBuffer `json:"buffer,omitempty"`
	HasPendingImage bool                `json:"hasPendingImage"`
}

func sessionResponse(buf *catalog.EditBuffer, state catalog.SessionState) EditSessionResponse {
	resp := EditSessionResponse{State: state.String(), Buffer: buf}
	if buf != nil {
		resp.HasPendingImage = buf.HasPendingImage()
	}
	return resp
}

func (h *HTTPHandler) BeginEdit(w http.ResponseWriter, r *http.Request) {
	buf, err := h.editor.Begin(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		h.respondWithCatalogError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sessionResponse(buf, h.editor.State()))
}

func (h *HTTPHandler) GetEditSession(w http.ResponseWriter, r *http.Request) {
	buf, state := h.editor.Current()
	respondWithJSON(w, http.StatusOK, sessionResponse(buf, state))
}

// UpdateFieldRequest sets one buffer field. Value is coerced per field.
type UpdateFieldRequest struct {
	Field string `json:"field" validate:"required,oneof=name price description image category isFeatured rating reviewCount"`
	Value any    `json:"value"`
}

func (h *HTTPHandler) UpdateEditField(w http.ResponseWriter, r *http.Request) {
	var req UpdateFieldRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	buf, err := h.editor.Update(catalog.Field(req.Field), req.Value)
	if err != nil {
		h.respondWithCatalogError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sessionResponse(buf, h.editor.State()))
}

// StageEditImage stages a replacement image. Without an explicit selection the
// image is cropped to the default centered square.
func (h *HTTPHandler) StageEditImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid image: "+err.Error())
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid image: "+err.Error())
		return
	}
	if _, _, err := media.DetectImage(data); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid image: "+err.Error())
		return
	}

	crop, err := h.cropFromForm(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid crop: "+err.Error())
		return
	}
	if crop == nil && !strings.EqualFold(r.FormValue("crop"), "false") {
		def := media.DefaultCrop
		crop = &def
	}

	buf, err := h.editor.StageImage(catalog.PendingImage{Data: data, ContentType: header.Header.Get("Content-Type")}, crop)
	if err != nil {
		h.respondWithCatalogError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sessionResponse(buf, h.editor.State()))
}

// CommitRequest optionally carries the idempotency key in the body.
type CommitRequest struct {
	RequestID string `json:"requestId" validate:"omitempty,max=128"`
}

// CommitEdit saves the buffer. Repeating a commit with the same Idempotency-Key
// returns the earlier result without writing again.
func (h *HTTPHandler) CommitEdit(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("Idempotency-Key")
	if requestID == "" && r.ContentLength > 0 {
		var req CommitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
			return
		}
		if err := h.validate.Struct(req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
			return
		}
		requestID = req.RequestID
	}

	saved, err := h.editor.Commit(r.Context(), requestID)
	if err != nil {
		h.respondWithCatalogError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.productView(saved, h.localeFor(r)))
}

func (h *HTTPHandler) CancelEdit(w http.ResponseWriter, r *http.Request) {
	if err := h.editor.Cancel(); err != nil {
		h.respondWithCatalogError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
