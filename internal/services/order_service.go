package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront-system/internal/apperror"
	"storefront-system/internal/database"
	"storefront-system/internal/logger"
	"storefront-system/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderService отвечает за чтение заказов и их жизненный цикл после оформления.
type OrderService struct {
	db  *database.DB
	log *logger.Logger
}

// NewOrderService создает сервис заказов.
func NewOrderService(db *database.DB, log *logger.Logger) *OrderService {
	return &OrderService{
		db:  db,
		log: log,
	}
}

const selectOrderColumns = `id, order_number, user_id, status, total_amount, discount_amount, grand_total, promotion_code, full_name, email, phone_number, shipping_address, payment_method, payment_proof, created_at, updated_at`

func scanOrder(scan func(dest ...interface{}) error) (*models.Order, error) {
	o := &models.Order{}
	err := scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.TotalAmount, &o.DiscountAmount,
		&o.GrandTotal, &o.PromotionCode, &o.FullName, &o.Email, &o.PhoneNumber,
		&o.ShippingAddress, &o.PaymentMethod, &o.PaymentProof, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// GetByOrderNumber возвращает заказ с позициями. Заказ виден владельцу
// и сотрудникам, гостевые заказы — только сотрудникам.
func (s *OrderService) GetByOrderNumber(ctx context.Context, orderNumber string, visitor models.Visitor) (*models.Order, error) {
	query := `SELECT ` + selectOrderColumns + ` FROM orders WHERE order_number = $1`
	order, err := scanOrder(s.db.QueryRowContext(ctx, query, orderNumber).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("order not found", err)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if !visitor.IsStaff {
		if !visitor.Authenticated() || order.UserID == nil || *order.UserID != *visitor.UserID {
			return nil, apperror.Forbidden("order belongs to another customer", nil)
		}
	}

	itemsQuery := `
		SELECT id, order_id, product_id, product_name, variant_size, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
	`
	rows, err := s.db.QueryContext(ctx, itemsQuery, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.VariantSize, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}

	return order, nil
}

// ListForUser возвращает заказы пользователя, новые первыми.
func (s *OrderService) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + selectOrderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list user orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// List возвращает заказы для сотрудников с фильтром по статусу.
func (s *OrderService) List(ctx context.Context, status *models.OrderStatus, limit, offset int) ([]*models.Order, error) {
	query := `SELECT ` + selectOrderColumns + ` FROM orders WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *status)
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d", argIndex)
	args = append(args, limit)
	argIndex++

	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

func collectOrders(rows *sql.Rows) ([]*models.Order, error) {
	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus переводит заказ в новый статус под блокировкой строки.
// Возвращает прежний статус для публикации события.
func (s *OrderService) UpdateStatus(ctx context.Context, orderNumber string, newStatus models.OrderStatus) (*models.Order, models.OrderStatus, error) {
	switch newStatus {
	case models.OrderStatusPending, models.OrderStatusPaid, models.OrderStatusShipped,
		models.OrderStatusDelivered, models.OrderStatusCancelled:
	default:
		return nil, "", apperror.Validation("invalid order status", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	lockQuery := `SELECT ` + selectOrderColumns + ` FROM orders WHERE order_number = $1 FOR UPDATE`
	order, err := scanOrder(tx.QueryRowContext(ctx, lockQuery, orderNumber).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", apperror.NotFound("order not found", err)
		}
		return nil, "", fmt.Errorf("failed to lock order: %w", err)
	}

	oldStatus := order.Status
	if !isValidOrderStatusTransition(oldStatus, newStatus) {
		return nil, "", apperror.Conflict(fmt.Sprintf("cannot change order status from %s to %s", oldStatus, newStatus), nil)
	}

	now := time.Now()
	updateQuery := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	if _, err := tx.ExecContext(ctx, updateQuery, newStatus, now, order.ID); err != nil {
		return nil, "", fmt.Errorf("failed to update order status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, "", fmt.Errorf("failed to commit order status update: %w", err)
	}

	order.Status = newStatus
	order.UpdatedAt = now

	s.log.WithFields(map[string]interface{}{
		"order_number": orderNumber,
		"old_status":   oldStatus,
		"new_status":   newStatus,
	}).Info("Order status updated")

	return order, oldStatus, nil
}

// SalesSummary возвращает сводку продаж за период, всегда от живых данных.
func (s *OrderService) SalesSummary(ctx context.Context, from, to time.Time) (*models.SalesSummary, error) {
	summary := &models.SalesSummary{
		From:          from,
		To:            to,
		TotalRevenue:  decimal.Zero,
		TotalDiscount: decimal.Zero,
		ByStatus:      make(map[models.OrderStatus]int),
	}

	query := `
		SELECT status, COUNT(*), COALESCE(SUM(grand_total), 0), COALESCE(SUM(discount_amount), 0)
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY status
	`
	rows, err := s.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get sales summary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status   models.OrderStatus
			count    int
			revenue  decimal.Decimal
			discount decimal.Decimal
		)
		if err := rows.Scan(&status, &count, &revenue, &discount); err != nil {
			return nil, fmt.Errorf("failed to scan sales summary row: %w", err)
		}
		summary.ByStatus[status] = count
		summary.TotalOrders += count
		if status != models.OrderStatusCancelled {
			summary.TotalRevenue = summary.TotalRevenue.Add(revenue)
			summary.TotalDiscount = summary.TotalDiscount.Add(discount)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sales summary: %w", err)
	}

	summary.TotalRevenue = summary.TotalRevenue.Round(2)
	summary.TotalDiscount = summary.TotalDiscount.Round(2)
	return summary, nil
}

func isValidOrderStatusTransition(from, to models.OrderStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case models.OrderStatusPending:
		return to == models.OrderStatusPaid || to == models.OrderStatusCancelled
	case models.OrderStatusPaid:
		return to == models.OrderStatusShipped || to == models.OrderStatusCancelled
	case models.OrderStatusShipped:
		return to == models.OrderStatusDelivered
	case models.OrderStatusDelivered, models.OrderStatusCancelled:
		return false
	default:
		return false
	}
}
