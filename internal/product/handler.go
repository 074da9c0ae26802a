package product

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/inventio/inventory-api/internal/httputil"
	"github.com/inventio/inventory-api/internal/logging"
	"github.com/inventio/inventory-api/internal/user"
)

// Multipart forms are parsed with this much in-memory buffer; larger
// parts spill to temp files.
const maxFormMemory = 10 << 20

// Handler contains HTTP handlers for product endpoints
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Create handles product creation
// @Summary      Create a product
// @Description  Create a product from a multipart form. The optional "image" part must be PNG or JPEG, at most 5 MB.
// @Tags         products
// @Accept       multipart/form-data
// @Produce      json
// @Param        name formData string true "Product name"
// @Param        sku formData string false "Stock keeping unit"
// @Param        category formData string true "Category"
// @Param        quantity formData integer true "Quantity in stock"
// @Param        price formData number true "Unit price"
// @Param        description formData string true "Description"
// @Param        image formData file false "Product image"
// @Success      201 {object} Product
// @Failure      400 {object} ErrorResponse "Validation or upload error"
// @Failure      401 {object} ErrorResponse "Not authenticated"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Security     CookieAuth
// @Router       /products [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	u, ok := user.FromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "Not authorized, please login", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		logger.Warn("invalid multipart form", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid multipart form", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	quantityStr := strings.TrimSpace(r.FormValue("quantity"))
	priceStr := strings.TrimSpace(r.FormValue("price"))
	if quantityStr == "" || priceStr == "" {
		httputil.RespondErrorWithCode(w, ErrMissingFields.Error(), httputil.CodeMissingFields, http.StatusBadRequest)
		return
	}

	quantity, err := strconv.ParseInt(quantityStr, 10, 64)
	if err != nil {
		httputil.RespondErrorWithCode(w, ErrInvalidQuantity.Error(), httputil.CodeInvalidQuantity, http.StatusBadRequest)
		return
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		httputil.RespondErrorWithCode(w, ErrInvalidPrice.Error(), httputil.CodeInvalidPrice, http.StatusBadRequest)
		return
	}

	created, err := h.service.Create(r.Context(), u.ID, CreateInput{
		Name:        r.FormValue("name"),
		SKU:         r.FormValue("sku"),
		Category:    r.FormValue("category"),
		Quantity:    quantity,
		Price:       price,
		Description: r.FormValue("description"),
		ImageFile:   imageFile(r),
	})
	if err != nil {
		respondProductError(w, logger, err, "failed to create product")
		return
	}

	logger.Info("product created", "product_id", created.ID.Hex(), "user_id", u.ID.Hex())

	httputil.RespondJSON(w, created, http.StatusCreated)
}

// List returns the caller's products
// @Summary      List products
// @Description  Return the caller's products, newest first
// @Tags         products
// @Produce      json
// @Success      200 {array} Product
// @Failure      401 {object} ErrorResponse "Not authenticated"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Security     CookieAuth
// @Router       /products [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	u, ok := user.FromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "Not authorized, please login", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	products, err := h.service.List(r.Context(), u.ID)
	if err != nil {
		logger.Error("failed to list products", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to list products", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, products, http.StatusOK)
}

// Get returns one of the caller's products
// @Summary      Get a product
// @Description  Return one product by id. Products owned by other users are reported as not found.
// @Tags         products
// @Produce      json
// @Param        id path string true "Product id"
// @Success      200 {object} Product
// @Failure      401 {object} ErrorResponse "Not authenticated"
// @Failure      404 {object} ErrorResponse "Product not found"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Security     CookieAuth
// @Router       /products/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	u, ok := user.FromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "Not authorized, please login", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondErrorWithCode(w, ErrNotFound.Error(), httputil.CodeProductNotFound, http.StatusNotFound)
		return
	}

	p, err := h.service.Get(r.Context(), u.ID, id)
	if err != nil {
		respondProductError(w, logger, err, "failed to get product")
		return
	}

	httputil.RespondJSON(w, p, http.StatusOK)
}

// Update applies a partial update to one of the caller's products
// @Summary      Update a product
// @Description  Update product fields from a multipart form. Omitted fields keep their values; a new "image" part replaces the stored image.
// @Tags         products
// @Accept       multipart/form-data
// @Produce      json
// @Param        id path string true "Product id"
// @Param        name formData string false "Product name"
// @Param        category formData string false "Category"
// @Param        quantity formData integer false "Quantity in stock"
// @Param        price formData number false "Unit price"
// @Param        description formData string false "Description"
// @Param        image formData file false "Replacement image"
// @Success      200 {object} Product
// @Failure      400 {object} ErrorResponse "Validation or upload error"
// @Failure      401 {object} ErrorResponse "Not authenticated"
// @Failure      404 {object} ErrorResponse "Product not found"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Security     CookieAuth
// @Router       /products/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	u, ok := user.FromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "Not authorized, please login", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondErrorWithCode(w, ErrNotFound.Error(), httputil.CodeProductNotFound, http.StatusNotFound)
		return
	}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		logger.Warn("invalid multipart form", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid multipart form", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	var in UpdateInput
	if v, ok := formValue(r, "name"); ok {
		in.Name = &v
	}
	if v, ok := formValue(r, "category"); ok {
		in.Category = &v
	}
	if v, ok := formValue(r, "description"); ok {
		in.Description = &v
	}
	if v, ok := formValue(r, "quantity"); ok {
		quantity, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			httputil.RespondErrorWithCode(w, ErrInvalidQuantity.Error(), httputil.CodeInvalidQuantity, http.StatusBadRequest)
			return
		}
		in.Quantity = &quantity
	}
	if v, ok := formValue(r, "price"); ok {
		price, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			httputil.RespondErrorWithCode(w, ErrInvalidPrice.Error(), httputil.CodeInvalidPrice, http.StatusBadRequest)
			return
		}
		in.Price = &price
	}
	in.ImageFile = imageFile(r)

	updated, err := h.service.UpdateFields(r.Context(), u.ID, id, in)
	if err != nil {
		respondProductError(w, logger, err, "failed to update product")
		return
	}

	logger.Info("product updated", "product_id", id.Hex(), "user_id", u.ID.Hex())

	httputil.RespondJSON(w, updated, http.StatusOK)
}

// Delete removes one of the caller's products
// @Summary      Delete a product
// @Description  Delete one product by id along with its stored image
// @Tags         products
// @Produce      json
// @Param        id path string true "Product id"
// @Success      200 {object} map[string]string
// @Failure      401 {object} ErrorResponse "Not authenticated"
// @Failure      404 {object} ErrorResponse "Product not found"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Security     CookieAuth
// @Router       /products/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	u, ok := user.FromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "Not authorized, please login", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondErrorWithCode(w, ErrNotFound.Error(), httputil.CodeProductNotFound, http.StatusNotFound)
		return
	}

	if err := h.service.Delete(r.Context(), u.ID, id); err != nil {
		respondProductError(w, logger, err, "failed to delete product")
		return
	}

	logger.Info("product deleted", "product_id", id.Hex(), "user_id", u.ID.Hex())

	httputil.RespondJSON(w, map[string]string{"message": "product deleted"}, http.StatusOK)
}

// respondProductError maps service errors to HTTP responses
func respondProductError(w http.ResponseWriter, logger *logging.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeProductNotFound, http.StatusNotFound)
	case errors.Is(err, ErrMissingFields):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeMissingFields, http.StatusBadRequest)
	case errors.Is(err, ErrInvalidQuantity):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeInvalidQuantity, http.StatusBadRequest)
	case errors.Is(err, ErrInvalidPrice):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeInvalidPrice, http.StatusBadRequest)
	case errors.Is(err, ErrInvalidFileType):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeInvalidFileType, http.StatusBadRequest)
	case errors.Is(err, ErrFileTooLarge):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeFileTooLarge, http.StatusBadRequest)
	case errors.Is(err, ErrUploadFailed):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeUploadFailed, http.StatusInternalServerError)
	default:
		logger.Error(fallback, "error", err.Error())
		httputil.RespondErrorWithCode(w, fallback, httputil.CodeInternalError, http.StatusInternalServerError)
	}
}

// formValue reports whether a multipart field was present at all, so a
// PATCH can tell "omitted" apart from "set to empty"
func formValue(r *http.Request, key string) (string, bool) {
	if r.MultipartForm == nil {
		return "", false
	}
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// imageFile returns the uploaded image part, if any
func imageFile(r *http.Request) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}
