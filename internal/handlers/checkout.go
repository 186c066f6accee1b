package handlers

import (
	"encoding/json"
	"net/http"

	"storefront-system/internal/logger"
	"storefront-system/internal/models"
)

// CheckoutHandler оформляет заказ из корзины посетителя.
type CheckoutHandler struct {
	cartService     CartService
	checkoutService CheckoutService
	producer        EventProducer
	log             *logger.Logger
}

// NewCheckoutHandler создает обработчик оформления заказа.
func NewCheckoutHandler(cartService CartService, checkoutService CheckoutService, producer EventProducer, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		cartService:     cartService,
		checkoutService: checkoutService,
		producer:        producer,
		log:             log,
	}
}

// Checkout превращает корзину в заказ.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	visitor := VisitorFromContext(r.Context())
	cart, err := h.cartService.Resolve(r.Context(), visitor)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to resolve cart")
		return
	}

	resp, err := h.checkoutService.Checkout(r.Context(), visitor, cart, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to checkout")
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishOrderCreated(resp.Order); err != nil {
			h.log.WithError(err).Error("Failed to publish order created event")
			// Заказ уже создан, клиент ошибку не видит.
		}
	}

	writeJSONResponse(w, http.StatusCreated, resp)
}
