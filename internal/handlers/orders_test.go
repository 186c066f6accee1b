package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-system/internal/apperror"
	"storefront-system/internal/models"

	"github.com/google/uuid"
)

type stubOrderService struct {
	order     *models.Order
	orders    []*models.Order
	oldStatus models.OrderStatus
	summary   *models.SalesSummary
	err       error

	listStatus   *models.OrderStatus
	listedUserID uuid.UUID
}

func (s *stubOrderService) GetByOrderNumber(ctx context.Context, orderNumber string, visitor models.Visitor) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubOrderService) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Order, error) {
	s.listedUserID = userID
	return s.orders, s.err
}

func (s *stubOrderService) List(ctx context.Context, status *models.OrderStatus, limit, offset int) ([]*models.Order, error) {
	s.listStatus = status
	return s.orders, s.err
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, orderNumber string, newStatus models.OrderStatus) (*models.Order, models.OrderStatus, error) {
	return s.order, s.oldStatus, s.err
}

func (s *stubOrderService) SalesSummary(ctx context.Context, from, to time.Time) (*models.SalesSummary, error) {
	return s.summary, s.err
}

func TestOrderHandler_ListOrders_User(t *testing.T) {
	userID := uuid.New()
	service := &stubOrderService{orders: []*models.Order{testOrder()}}
	handler := NewOrderHandler(service, &stubProducer{}, testLog())

	req := userRequest(httptest.NewRequest(http.MethodGet, "/api/orders", nil), userID)
	rr := httptest.NewRecorder()
	handler.ListOrders(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if service.listedUserID != userID {
		t.Fatalf("expected list for user %s, got %s", userID, service.listedUserID)
	}
}

func TestOrderHandler_ListOrders_StaffWithStatusFilter(t *testing.T) {
	service := &stubOrderService{orders: []*models.Order{}}
	handler := NewOrderHandler(service, &stubProducer{}, testLog())

	req := staffRequest(httptest.NewRequest(http.MethodGet, "/api/orders?status=paid", nil))
	rr := httptest.NewRecorder()
	handler.ListOrders(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if service.listStatus == nil || *service.listStatus != models.OrderStatusPaid {
		t.Fatalf("expected PAID filter, got %v", service.listStatus)
	}
}

func TestOrderHandler_ListOrders_GuestUnauthorized(t *testing.T) {
	handler := NewOrderHandler(&stubOrderService{}, &stubProducer{}, testLog())

	req := guestRequest(httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	rr := httptest.NewRecorder()
	handler.ListOrders(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestOrderHandler_GetOrder(t *testing.T) {
	handler := NewOrderHandler(&stubOrderService{order: testOrder()}, &stubProducer{}, testLog())

	req := userRequest(httptest.NewRequest(http.MethodGet, "/api/orders/20260901-A1B2", nil), uuid.New())
	rr := httptest.NewRecorder()
	handler.HandleOrder(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestOrderHandler_GetOrder_Forbidden(t *testing.T) {
	handler := NewOrderHandler(&stubOrderService{err: apperror.Forbidden("order belongs to another customer", nil)}, &stubProducer{}, testLog())

	req := userRequest(httptest.NewRequest(http.MethodGet, "/api/orders/20260901-A1B2", nil), uuid.New())
	rr := httptest.NewRecorder()
	handler.HandleOrder(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestOrderHandler_GetOrder_NotFound(t *testing.T) {
	handler := NewOrderHandler(&stubOrderService{err: apperror.NotFound("order not found", nil)}, &stubProducer{}, testLog())

	req := staffRequest(httptest.NewRequest(http.MethodGet, "/api/orders/ABSENT", nil))
	rr := httptest.NewRecorder()
	handler.HandleOrder(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestOrderHandler_UpdateStatus(t *testing.T) {
	order := testOrder()
	order.Status = models.OrderStatusPaid
	producer := &stubProducer{}
	service := &stubOrderService{order: order, oldStatus: models.OrderStatusPending}
	handler := NewOrderHandler(service, producer, testLog())

	body := bytes.NewBufferString(`{"status":"PAID"}`)
	req := staffRequest(httptest.NewRequest(http.MethodPut, "/api/orders/20260901-A1B2/status", body))
	rr := httptest.NewRecorder()
	handler.HandleOrder(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(producer.statusChanges) != 1 || producer.statusChanges[0] != models.OrderStatusPaid {
		t.Fatalf("expected status change event, got %v", producer.statusChanges)
	}
}

func TestOrderHandler_UpdateStatus_SameStatusNoEvent(t *testing.T) {
	order := testOrder()
	order.Status = models.OrderStatusPaid
	producer := &stubProducer{}
	handler := NewOrderHandler(&stubOrderService{order: order, oldStatus: models.OrderStatusPaid}, producer, testLog())

	body := bytes.NewBufferString(`{"status":"PAID"}`)
	req := staffRequest(httptest.NewRequest(http.MethodPut, "/api/orders/20260901-A1B2/status", body))
	rr := httptest.NewRecorder()
	handler.HandleOrder(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(producer.statusChanges) != 0 {
		t.Fatalf("expected no event for unchanged status, got %v", producer.statusChanges)
	}
}

func TestOrderHandler_UpdateStatus_RequiresStaff(t *testing.T) {
	handler := NewOrderHandler(&stubOrderService{}, &stubProducer{}, testLog())

	body := bytes.NewBufferString(`{"status":"PAID"}`)
	req := userRequest(httptest.NewRequest(http.MethodPut, "/api/orders/20260901-A1B2/status", body), uuid.New())
	rr := httptest.NewRecorder()
	handler.HandleOrder(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestOrderHandler_UpdateStatus_InvalidTransition(t *testing.T) {
	handler := NewOrderHandler(&stubOrderService{err: apperror.Conflict("invalid status transition", nil)}, &stubProducer{}, testLog())

	body := bytes.NewBufferString(`{"status":"PAID"}`)
	req := staffRequest(httptest.NewRequest(http.MethodPut, "/api/orders/20260901-A1B2/status", body))
	rr := httptest.NewRecorder()
	handler.HandleOrder(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestOrderHandler_HandleOrder_MethodNotAllowed(t *testing.T) {
	handler := NewOrderHandler(&stubOrderService{}, &stubProducer{}, testLog())

	req := staffRequest(httptest.NewRequest(http.MethodDelete, "/api/orders/20260901-A1B2", nil))
	rr := httptest.NewRecorder()
	handler.HandleOrder(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestOrderHandler_HandleOrder_MissingNumber(t *testing.T) {
	handler := NewOrderHandler(&stubOrderService{}, &stubProducer{}, testLog())

	req := staffRequest(httptest.NewRequest(http.MethodGet, "/api/orders/", nil))
	rr := httptest.NewRecorder()
	handler.HandleOrder(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestOrderHandler_SalesSummary(t *testing.T) {
	summary := &models.SalesSummary{TotalOrders: 3, ByStatus: map[models.OrderStatus]int{models.OrderStatusPaid: 3}}
	handler := NewOrderHandler(&stubOrderService{summary: summary}, &stubProducer{}, testLog())

	req := staffRequest(httptest.NewRequest(http.MethodGet, "/api/orders/summary?from=2026-08-01&to=2026-08-31", nil))
	rr := httptest.NewRecorder()
	handler.SalesSummary(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestOrderHandler_SalesSummary_RequiresStaff(t *testing.T) {
	handler := NewOrderHandler(&stubOrderService{}, &stubProducer{}, testLog())

	req := userRequest(httptest.NewRequest(http.MethodGet, "/api/orders/summary", nil), uuid.New())
	rr := httptest.NewRecorder()
	handler.SalesSummary(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestOrderHandler_SalesSummary_BadRange(t *testing.T) {
	handler := NewOrderHandler(&stubOrderService{}, &stubProducer{}, testLog())

	req := staffRequest(httptest.NewRequest(http.MethodGet, "/api/orders/summary?from=2026-08-31&to=2026-08-01", nil))
	rr := httptest.NewRecorder()
	handler.SalesSummary(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	req = staffRequest(httptest.NewRequest(http.MethodGet, "/api/orders/summary?from=not-a-date", nil))
	rr = httptest.NewRecorder()
	handler.SalesSummary(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", rr.Code)
	}
}
