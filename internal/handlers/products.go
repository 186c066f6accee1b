package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"storefront-system/internal/logger"
	"storefront-system/internal/models"
)

// ProductHandler обрабатывает запросы каталога товаров.
type ProductHandler struct {
	catalogService CatalogService
	log            *logger.Logger
}

// NewProductHandler создает обработчик каталога.
func NewProductHandler(catalogService CatalogService, log *logger.Logger) *ProductHandler {
	return &ProductHandler{
		catalogService: catalogService,
		log:            log,
	}
}

// ListProducts возвращает витрину товаров с фильтрами.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	filter := &models.ProductFilter{
		CategorySlug: r.URL.Query().Get("category"),
		FeaturedOnly: r.URL.Query().Get("featured") == "true",
		Limit:        parsePositiveInt(r.URL.Query().Get("limit"), 50, 200),
		Offset:       parsePositiveInt(r.URL.Query().Get("offset"), 0, 1<<30),
	}
	// Явный фильтр по статусу доступен только персоналу,
	// для остальных витрина показывает стандартный набор.
	if status := r.URL.Query().Get("status"); status != "" && VisitorFromContext(r.Context()).IsStaff {
		filter.Statuses = []models.ProductStatus{models.ProductStatus(strings.ToUpper(status))}
	}

	products, err := h.catalogService.ListProducts(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list products")
		return
	}
	if products == nil {
		products = []*models.Product{}
	}

	writeJSONResponse(w, http.StatusOK, products)
}

// GetProduct возвращает товар по slug.
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	slug := strings.TrimPrefix(r.URL.Path, "/api/products/")
	if slug == "" || strings.Contains(slug, "/") {
		writeErrorResponse(w, http.StatusBadRequest, "invalid product slug")
		return
	}

	product, err := h.catalogService.GetProductBySlug(r.Context(), slug)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get product")
		return
	}

	writeJSONResponse(w, http.StatusOK, product)
}

// CreateProduct создает товар с базовым вариантом. Доступно сотрудникам.
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if _, ok := requireStaff(w, r); !ok {
		return
	}

	var req models.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	product, err := h.catalogService.CreateProduct(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create product")
		return
	}

	writeJSONResponse(w, http.StatusCreated, product)
}

func parsePositiveInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 || v > max {
		return fallback
	}
	return v
}
