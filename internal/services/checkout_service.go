package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-system/internal/apperror"
	"storefront-system/internal/config"
	"storefront-system/internal/database"
	"storefront-system/internal/logger"
	"storefront-system/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// CheckoutService превращает корзину в заказ. Все изменения одного
// оформления идут в одной транзакции.
type CheckoutService struct {
	db       *database.DB
	log      *logger.Logger
	cart     *CartService
	promo    *PromoService
	catalog  *CatalogService
	attempts int
}

// NewCheckoutService создает сервис оформления заказа.
func NewCheckoutService(db *database.DB, log *logger.Logger, cart *CartService, promo *PromoService, catalog *CatalogService, cfg *config.CheckoutConfig) *CheckoutService {
	attempts := 1
	if cfg != nil && cfg.OrderNumberAttempts > 0 {
		attempts = cfg.OrderNumberAttempts
	}
	return &CheckoutService{
		db:       db,
		log:      log,
		cart:     cart,
		promo:    promo,
		catalog:  catalog,
		attempts: attempts,
	}
}

var errOrderNumberTaken = errors.New("order number already taken")

// Checkout оформляет заказ из корзины посетителя. Коллизия номера заказа
// повторяет попытку со свежим номером, число попыток ограничено.
func (s *CheckoutService) Checkout(ctx context.Context, visitor models.Visitor, cart *models.Cart, req *models.CheckoutRequest) (*models.CheckoutResponse, error) {
	if err := validateCheckoutRequest(req); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		resp, err := s.checkoutOnce(ctx, visitor, cart, req)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, errOrderNumberTaken) {
			return nil, err
		}
		lastErr = err
		s.log.WithField("attempt", attempt+1).Warn("Order number collision, retrying with a fresh number")
	}

	return nil, fmt.Errorf("failed to allocate order number after %d attempts: %w", s.attempts, lastErr)
}

func (s *CheckoutService) checkoutOnce(ctx context.Context, visitor models.Visitor, cart *models.Cart, req *models.CheckoutRequest) (*models.CheckoutResponse, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	itemsQuery := `
		SELECT i.variant_id, i.quantity, i.price_at_addition, p.id, p.name, v.size
		FROM cart_items i
		JOIN product_variants v ON v.id = i.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE i.cart_id = $1
		ORDER BY i.created_at
	`
	rows, err := tx.QueryContext(ctx, itemsQuery, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart items for checkout: %w", err)
	}

	type checkoutLine struct {
		variantID   uuid.UUID
		quantity    int
		price       decimal.Decimal
		productID   uuid.UUID
		productName string
		variantSize string
	}
	var lines []checkoutLine
	for rows.Next() {
		var line checkoutLine
		if err := rows.Scan(&line.variantID, &line.quantity, &line.price, &line.productID, &line.productName, &line.variantSize); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan cart item for checkout: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate cart items for checkout: %w", err)
	}
	rows.Close()

	if len(lines) == 0 {
		return nil, apperror.Validation("cart is empty", nil)
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.price.Mul(decimal.NewFromInt(int64(line.quantity))))
	}
	subtotal = subtotal.Round(2)

	// Скидка пересчитывается от живых строк, а не берется из корзины.
	var warning string
	var promoCode *string
	discount := decimal.Zero
	if cart.PromotionCode != nil && *cart.PromotionCode != "" {
		promo, err := s.promo.RedeemWithTx(ctx, tx, *cart.PromotionCode)
		switch {
		case err == nil:
			discount, err = Discount(subtotal, promo)
			if err != nil {
				return nil, err
			}
			promoCode = &promo.Code
		case apperror.Is(err, apperror.KindNotFound):
			// Код исчез между применением и оформлением: заказ проходит
			// без скидки, клиент получает предупреждение.
			warning = fmt.Sprintf("promotion code %s is no longer available and was not applied", *cart.PromotionCode)
		default:
			return nil, err
		}
	}

	now := time.Now()
	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     generateOrderNumber(now),
		UserID:          visitor.UserID,
		Status:          models.OrderStatusPending,
		TotalAmount:     subtotal,
		DiscountAmount:  discount,
		GrandTotal:      GrandTotal(subtotal, discount),
		PromotionCode:   promoCode,
		FullName:        req.FullName,
		Email:           req.Email,
		PhoneNumber:     req.PhoneNumber,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		PaymentProof:    req.PaymentProof,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	orderQuery := `
		INSERT INTO orders (id, order_number, user_id, status, total_amount, discount_amount, grand_total, promotion_code, full_name, email, phone_number, shipping_address, payment_method, payment_proof, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = tx.ExecContext(ctx, orderQuery, order.ID, order.OrderNumber, order.UserID, order.Status,
		order.TotalAmount, order.DiscountAmount, order.GrandTotal, order.PromotionCode,
		order.FullName, order.Email, order.PhoneNumber, order.ShippingAddress,
		order.PaymentMethod, order.PaymentProof, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, errOrderNumberTaken
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, product_name, variant_size, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, line := range lines {
		productID := line.productID
		item := models.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductID:   &productID,
			ProductName: line.productName,
			VariantSize: line.variantSize,
			Quantity:    line.quantity,
			UnitPrice:   line.price,
		}
		if _, err := tx.ExecContext(ctx, itemQuery, item.ID, item.OrderID, item.ProductID,
			item.ProductName, item.VariantSize, item.Quantity, item.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
		order.Items = append(order.Items, item)

		if err := s.catalog.DecrementStockTx(ctx, tx, line.variantID, line.quantity); err != nil {
			return nil, err
		}
	}

	if err := s.cart.ClearTx(ctx, tx, cart.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit checkout: %w", err)
	}

	cart.PromotionCode = nil
	cart.DiscountAmount = decimal.Zero

	s.log.WithFields(map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"grand_total":  order.GrandTotal,
	}).Info("Order created from cart")

	return &models.CheckoutResponse{Order: order, Warning: warning}, nil
}

func validateCheckoutRequest(req *models.CheckoutRequest) error {
	var problems []string
	if strings.TrimSpace(req.FullName) == "" {
		problems = append(problems, "full_name is required")
	}
	if !strings.Contains(req.Email, "@") {
		problems = append(problems, "email is invalid")
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		problems = append(problems, "phone_number is required")
	}
	if strings.TrimSpace(req.ShippingAddress) == "" {
		problems = append(problems, "shipping_address is required")
	}

	switch req.PaymentMethod {
	case models.PaymentMethodBank:
		if req.PaymentProof == nil || strings.TrimSpace(*req.PaymentProof) == "" {
			problems = append(problems, "payment_proof is required for bank transfer")
		}
	case models.PaymentMethodCredit, models.PaymentMethodCOD:
	default:
		problems = append(problems, "payment_method is invalid")
	}

	if len(problems) > 0 {
		return apperror.Validation(strings.Join(problems, "; "), nil)
	}
	return nil
}

// generateOrderNumber строит номер вида 20260901-A1B2: дата плюс
// случайный hex-суффикс. Уникальность гарантирует ограничение в базе.
func generateOrderNumber(now time.Time) string {
	suffix := make([]byte, 2)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("%s-%s", now.Format("20060102"), strings.ToUpper(hex.EncodeToString(suffix)))
}
