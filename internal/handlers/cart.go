package handlers

import (
	"encoding/json"
	"net/http"

	"storefront-system/internal/logger"
	"storefront-system/internal/models"
)

// CartHandler обрабатывает корзину текущего посетителя.
type CartHandler struct {
	cartService    CartService
	catalogService CatalogService
	promoService   PromoService
	log            *logger.Logger
}

// NewCartHandler создает обработчик корзины.
func NewCartHandler(cartService CartService, catalogService CatalogService, promoService PromoService, log *logger.Logger) *CartHandler {
	return &CartHandler{
		cartService:    cartService,
		catalogService: catalogService,
		promoService:   promoService,
		log:            log,
	}
}

func (h *CartHandler) resolveCart(w http.ResponseWriter, r *http.Request) (*models.Cart, bool) {
	visitor := VisitorFromContext(r.Context())
	cart, err := h.cartService.Resolve(r.Context(), visitor)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to resolve cart")
		return nil, false
	}
	return cart, true
}

func (h *CartHandler) writeSummary(w http.ResponseWriter, r *http.Request, cart *models.Cart, status int) {
	summary, err := h.cartService.Summary(r.Context(), cart)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to build cart summary")
		return
	}
	if summary.Items == nil {
		summary.Items = []*models.CartItem{}
	}
	writeJSONResponse(w, status, summary)
}

// GetCart возвращает корзину с итогами.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	cart, ok := h.resolveCart(w, r)
	if !ok {
		return
	}
	h.writeSummary(w, r, cart, http.StatusOK)
}

// HandleItems направляет запросы строк корзины по методу.
func (h *CartHandler) HandleItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.addItem(w, r)
	case http.MethodPut:
		h.updateItem(w, r)
	default:
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req models.AddCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Отсутствующее количество трактуется как одна штука,
	// отрицательное отклоняется без изменения корзины.
	if req.Quantity < 0 {
		writeErrorResponse(w, http.StatusBadRequest, "quantity must be positive")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	variant, err := h.catalogService.GetVariant(r.Context(), req.VariantID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get product variant")
		return
	}

	// Доступность проверяется на границе, до изменения корзины.
	switch variant.ProductStatus {
	case models.ProductStatusAvailable:
		if variant.Stock < req.Quantity {
			writeErrorResponse(w, http.StatusConflict, "insufficient stock for variant")
			return
		}
	case models.ProductStatusPreOrder:
		// Предзаказ не ограничен остатком.
	default:
		writeErrorResponse(w, http.StatusConflict, "product is not available for purchase")
		return
	}

	cart, ok := h.resolveCart(w, r)
	if !ok {
		return
	}

	if err := h.cartService.AddItem(r.Context(), cart, variant, req.Quantity, nil); err != nil {
		writeServiceError(w, h.log, err, "Failed to add item to cart")
		return
	}

	h.writeSummary(w, r, cart, http.StatusCreated)
}

func (h *CartHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cart, ok := h.resolveCart(w, r)
	if !ok {
		return
	}

	if err := h.cartService.UpdateItemQuantity(r.Context(), cart, req.VariantID, req.Quantity); err != nil {
		writeServiceError(w, h.log, err, "Failed to update cart item")
		return
	}

	h.writeSummary(w, r, cart, http.StatusOK)
}

// RemoveItem удаляет строку корзины по идентификатору из пути.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	itemID, err := extractUUIDFromPath(r.URL.Path, "/api/cart/items/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	cart, ok := h.resolveCart(w, r)
	if !ok {
		return
	}

	if err := h.cartService.RemoveItem(r.Context(), cart, itemID); err != nil {
		writeServiceError(w, h.log, err, "Failed to remove cart item")
		return
	}

	h.writeSummary(w, r, cart, http.StatusOK)
}

// HandlePromotion применяет или снимает промокод корзины.
func (h *CartHandler) HandlePromotion(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.applyPromotion(w, r)
	case http.MethodDelete:
		h.removePromotion(w, r)
	default:
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *CartHandler) applyPromotion(w http.ResponseWriter, r *http.Request) {
	var req models.ApplyPromotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cart, ok := h.resolveCart(w, r)
	if !ok {
		return
	}

	if err := h.promoService.ApplyToCart(r.Context(), cart, req.Code); err != nil {
		writeServiceError(w, h.log, err, "Failed to apply promotion")
		return
	}

	h.writeSummary(w, r, cart, http.StatusOK)
}

func (h *CartHandler) removePromotion(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.resolveCart(w, r)
	if !ok {
		return
	}

	if err := h.promoService.RemoveFromCart(r.Context(), cart); err != nil {
		writeServiceError(w, h.log, err, "Failed to remove promotion")
		return
	}

	h.writeSummary(w, r, cart, http.StatusOK)
}
