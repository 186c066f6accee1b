package services

import (
	"context"
	"testing"
	"time"

	"storefront-system/internal/apperror"
	"storefront-system/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func orderRows(orderID uuid.UUID, orderNumber string, userID *uuid.UUID, status models.OrderStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "order_number", "user_id", "status", "total_amount", "discount_amount", "grand_total",
		"promotion_code", "full_name", "email", "phone_number", "shipping_address",
		"payment_method", "payment_proof", "created_at", "updated_at",
	}).AddRow(orderID, orderNumber, userID, status, "39.80", "0", "39.80",
		nil, "Ivan Petrov", "ivan@example.com", "+70000000000", "Moscow, Tverskaya 1",
		models.PaymentMethodCOD, nil, time.Now(), time.Now())
}

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from models.OrderStatus
		to   models.OrderStatus
		want bool
	}{
		{models.OrderStatusPending, models.OrderStatusPaid, true},
		{models.OrderStatusPending, models.OrderStatusCancelled, true},
		{models.OrderStatusPending, models.OrderStatusShipped, false},
		{models.OrderStatusPending, models.OrderStatusDelivered, false},
		{models.OrderStatusPaid, models.OrderStatusShipped, true},
		{models.OrderStatusPaid, models.OrderStatusCancelled, true},
		{models.OrderStatusPaid, models.OrderStatusDelivered, false},
		{models.OrderStatusShipped, models.OrderStatusDelivered, true},
		{models.OrderStatusShipped, models.OrderStatusCancelled, false},
		{models.OrderStatusDelivered, models.OrderStatusCancelled, false},
		{models.OrderStatusCancelled, models.OrderStatusPending, false},
		{models.OrderStatusPaid, models.OrderStatusPaid, true},
	}

	for _, tc := range cases {
		if got := isValidOrderStatusTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("transition %s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestOrderService_GetByOrderNumber_Owner(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewOrderService(db, newTestLogger())

	orderID := uuid.New()
	userID := uuid.New()

	mock.ExpectQuery("FROM orders WHERE order_number").
		WithArgs("20260901-A1B2").
		WillReturnRows(orderRows(orderID, "20260901-A1B2", &userID, models.OrderStatusPending))
	mock.ExpectQuery("FROM order_items").
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "product_name", "variant_size", "quantity", "unit_price"}).
			AddRow(uuid.New(), orderID, uuid.New(), "Classic Hoodie", "M", 2, "19.90"))

	order, err := service.GetByOrderNumber(context.Background(), "20260901-A1B2", userVisitor(userID, ""))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(order.Items) != 1 {
		t.Errorf("expected 1 item, got %d", len(order.Items))
	}
}

func TestOrderService_GetByOrderNumber_ForeignUser(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewOrderService(db, newTestLogger())

	ownerID := uuid.New()
	otherID := uuid.New()

	mock.ExpectQuery("FROM orders WHERE order_number").
		WithArgs("20260901-A1B2").
		WillReturnRows(orderRows(uuid.New(), "20260901-A1B2", &ownerID, models.OrderStatusPending))

	_, err := service.GetByOrderNumber(context.Background(), "20260901-A1B2", userVisitor(otherID, ""))
	if !apperror.Is(err, apperror.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestOrderService_GetByOrderNumber_GuestOrderRequiresStaff(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewOrderService(db, newTestLogger())

	mock.ExpectQuery("FROM orders WHERE order_number").
		WithArgs("20260901-A1B2").
		WillReturnRows(orderRows(uuid.New(), "20260901-A1B2", nil, models.OrderStatusPending))

	_, err := service.GetByOrderNumber(context.Background(), "20260901-A1B2", guestVisitor("s"))
	if !apperror.Is(err, apperror.KindForbidden) {
		t.Fatalf("expected forbidden for guest, got %v", err)
	}
}

func TestOrderService_GetByOrderNumber_Staff(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewOrderService(db, newTestLogger())

	orderID := uuid.New()
	staff := models.Visitor{IsStaff: true}
	staffID := uuid.New()
	staff.UserID = &staffID

	mock.ExpectQuery("FROM orders WHERE order_number").
		WithArgs("20260901-A1B2").
		WillReturnRows(orderRows(orderID, "20260901-A1B2", nil, models.OrderStatusPending))
	mock.ExpectQuery("FROM order_items").
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := service.GetByOrderNumber(context.Background(), "20260901-A1B2", staff); err != nil {
		t.Fatalf("staff must see any order, got %v", err)
	}
}

func TestOrderService_GetByOrderNumber_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewOrderService(db, newTestLogger())

	mock.ExpectQuery("FROM orders WHERE order_number").
		WithArgs("20260901-FFFF").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := service.GetByOrderNumber(context.Background(), "20260901-FFFF", models.Visitor{IsStaff: true})
	if !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderService_UpdateStatus_Success(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewOrderService(db, newTestLogger())

	orderID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE order_number").
		WithArgs("20260901-A1B2").
		WillReturnRows(orderRows(orderID, "20260901-A1B2", nil, models.OrderStatusPending))
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(models.OrderStatusPaid, sqlmock.AnyArg(), orderID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order, oldStatus, err := service.UpdateStatus(context.Background(), "20260901-A1B2", models.OrderStatusPaid)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if oldStatus != models.OrderStatusPending {
		t.Errorf("expected old status PENDING, got %s", oldStatus)
	}
	if order.Status != models.OrderStatusPaid {
		t.Errorf("expected new status PAID, got %s", order.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOrderService_UpdateStatus_InvalidTransition(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewOrderService(db, newTestLogger())

	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE order_number").
		WithArgs("20260901-A1B2").
		WillReturnRows(orderRows(uuid.New(), "20260901-A1B2", nil, models.OrderStatusDelivered))
	mock.ExpectRollback()

	_, _, err := service.UpdateStatus(context.Background(), "20260901-A1B2", models.OrderStatusPaid)
	if !apperror.Is(err, apperror.KindConflict) {
		t.Fatalf("expected conflict for terminal order, got %v", err)
	}
}

func TestOrderService_UpdateStatus_UnknownStatus(t *testing.T) {
	db, _ := newMockDB(t)
	defer db.Close()

	service := NewOrderService(db, newTestLogger())

	_, _, err := service.UpdateStatus(context.Background(), "20260901-A1B2", "LOST")
	if !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestOrderService_SalesSummary(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewOrderService(db, newTestLogger())

	from := time.Now().Add(-24 * time.Hour)
	to := time.Now()

	mock.ExpectQuery("FROM orders WHERE created_at").
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "revenue", "discount"}).
			AddRow(models.OrderStatusPaid, 3, "300.00", "30.00").
			AddRow(models.OrderStatusPending, 2, "100.00", "0").
			AddRow(models.OrderStatusCancelled, 1, "50.00", "5.00"))

	summary, err := service.SalesSummary(context.Background(), from, to)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if summary.TotalOrders != 6 {
		t.Errorf("expected 6 orders, got %d", summary.TotalOrders)
	}
	// Отмененные заказы в выручку не входят.
	if summary.TotalRevenue.StringFixed(2) != "400.00" {
		t.Errorf("expected revenue 400.00, got %s", summary.TotalRevenue)
	}
	if summary.TotalDiscount.StringFixed(2) != "30.00" {
		t.Errorf("expected discount 30.00, got %s", summary.TotalDiscount)
	}
	if summary.ByStatus[models.OrderStatusCancelled] != 1 {
		t.Errorf("expected cancelled count 1")
	}
}

func TestOrderService_ListForUser(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewOrderService(db, newTestLogger())

	userID := uuid.New()

	mock.ExpectQuery("FROM orders WHERE user_id").
		WithArgs(userID, 50, 0).
		WillReturnRows(orderRows(uuid.New(), "20260901-A1B2", &userID, models.OrderStatusPaid))

	orders, err := service.ListForUser(context.Background(), userID, 0, 0)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
}
