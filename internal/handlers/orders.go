package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"storefront-system/internal/logger"
	"storefront-system/internal/models"
)

// OrderHandler обрабатывает просмотр заказов и их жизненный цикл.
type OrderHandler struct {
	orderService OrderService
	producer     EventProducer
	log          *logger.Logger
}

// NewOrderHandler создает обработчик заказов.
func NewOrderHandler(orderService OrderService, producer EventProducer, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		producer:     producer,
		log:          log,
	}
}

// ListOrders возвращает заказы: пользователю свои, сотруднику все с фильтром.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	visitor := VisitorFromContext(r.Context())
	limit := parsePositiveInt(r.URL.Query().Get("limit"), 50, 200)
	offset := parsePositiveInt(r.URL.Query().Get("offset"), 0, 1<<30)

	var orders []*models.Order
	var err error
	switch {
	case visitor.IsStaff:
		var status *models.OrderStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			s := models.OrderStatus(strings.ToUpper(raw))
			status = &s
		}
		orders, err = h.orderService.List(r.Context(), status, limit, offset)
	case visitor.Authenticated():
		orders, err = h.orderService.ListForUser(r.Context(), *visitor.UserID, limit, offset)
	default:
		writeErrorResponse(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list orders")
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}

	writeJSONResponse(w, http.StatusOK, orders)
}

// HandleOrder направляет запросы по номеру заказа: просмотр и смена статуса.
func (h *OrderHandler) HandleOrder(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	if rest == "" {
		writeErrorResponse(w, http.StatusBadRequest, "missing order number")
		return
	}

	parts := strings.Split(rest, "/")
	orderNumber := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.getOrder(w, r, orderNumber)
	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPut:
		h.updateStatus(w, r, orderNumber)
	default:
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request, orderNumber string) {
	visitor := VisitorFromContext(r.Context())

	order, err := h.orderService.GetByOrderNumber(r.Context(), orderNumber, visitor)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get order")
		return
	}

	writeJSONResponse(w, http.StatusOK, order)
}

func (h *OrderHandler) updateStatus(w http.ResponseWriter, r *http.Request, orderNumber string) {
	if _, ok := requireStaff(w, r); !ok {
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, oldStatus, err := h.orderService.UpdateStatus(r.Context(), orderNumber, req.Status)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update order status")
		return
	}

	if h.producer != nil && oldStatus != order.Status {
		if err := h.producer.PublishOrderStatusChanged(order.ID, order.OrderNumber, oldStatus, order.Status); err != nil {
			h.log.WithError(err).Error("Failed to publish order status changed event")
		}
	}

	writeJSONResponse(w, http.StatusOK, order)
}

// SalesSummary возвращает сводку продаж за период. Доступно сотрудникам.
func (h *OrderHandler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if _, ok := requireStaff(w, r); !ok {
		return
	}

	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "invalid from date, expected YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "invalid to date, expected YYYY-MM-DD")
			return
		}
		to = parsed.AddDate(0, 0, 1)
	}
	if !to.After(from) {
		writeErrorResponse(w, http.StatusBadRequest, "to must be after from")
		return
	}

	summary, err := h.orderService.SalesSummary(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to build sales summary")
		return
	}

	writeJSONResponse(w, http.StatusOK, summary)
}
