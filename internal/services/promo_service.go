package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-system/internal/apperror"
	"storefront-system/internal/database"
	"storefront-system/internal/logger"
	"storefront-system/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// PromoService управляет промокодами и расчетом скидок.
type PromoService struct {
	db   *database.DB
	log  *logger.Logger
	cart *CartService
}

// NewPromoService создает сервис промокодов.
func NewPromoService(db *database.DB, log *logger.Logger, cart *CartService) *PromoService {
	return &PromoService{
		db:   db,
		log:  log,
		cart: cart,
	}
}

var hundred = decimal.NewFromInt(100)

// Discount рассчитывает скидку промокода от промежуточного итога.
// Неизвестный тип скидки — ошибка наполнения, а не нулевая скидка.
func Discount(subtotal decimal.Decimal, promo *models.Promotion) (decimal.Decimal, error) {
	var discount decimal.Decimal
	switch promo.DiscountType {
	case models.DiscountTypePercent:
		percent := promo.DiscountValue
		if percent.GreaterThan(hundred) {
			percent = hundred
		}
		discount = subtotal.Mul(percent).Div(hundred)
	case models.DiscountTypeFixed:
		discount = promo.DiscountValue
	default:
		return decimal.Zero, apperror.Validation(fmt.Sprintf("unknown discount type: %s", promo.DiscountType), nil)
	}

	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount.Round(2), nil
}

func validatePromotionPayload(discountType models.DiscountType, value decimal.Decimal, validFrom, validTo time.Time) error {
	switch discountType {
	case models.DiscountTypeFixed:
		if value.IsNegative() {
			return fmt.Errorf("discount_value must be non-negative for fixed discount")
		}
	case models.DiscountTypePercent:
		if value.LessThanOrEqual(decimal.Zero) || value.GreaterThan(hundred) {
			return fmt.Errorf("percent discount_value must be between 0 and 100")
		}
	default:
		return fmt.Errorf("invalid discount_type")
	}
	if !validTo.After(validFrom) {
		return fmt.Errorf("valid_to must be after valid_from")
	}
	return nil
}

// CreatePromotion создает новый промокод. Код хранится в верхнем регистре.
func (s *PromoService) CreatePromotion(ctx context.Context, req *models.CreatePromotionRequest) (*models.Promotion, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return nil, apperror.Validation("code is required", nil)
	}
	if err := validatePromotionPayload(req.DiscountType, req.DiscountValue, req.ValidFrom, req.ValidTo); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}

	promo := &models.Promotion{
		ID:             uuid.New(),
		Code:           code,
		DiscountType:   req.DiscountType,
		DiscountValue:  req.DiscountValue,
		MinOrderAmount: req.MinOrderAmount,
		IsActive:       req.IsActive,
		ValidFrom:      req.ValidFrom,
		ValidTo:        req.ValidTo,
		MaxUses:        req.MaxUses,
		CreatedAt:      time.Now(),
	}

	query := `
		INSERT INTO promotions (id, code, discount_type, discount_value, min_order_amount, is_active, valid_from, valid_to, max_uses, times_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10)
	`
	_, err := s.db.ExecContext(ctx, query, promo.ID, promo.Code, promo.DiscountType, promo.DiscountValue,
		promo.MinOrderAmount, promo.IsActive, promo.ValidFrom, promo.ValidTo, promo.MaxUses, promo.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, apperror.Conflict("promotion code already exists", err)
		}
		return nil, fmt.Errorf("failed to create promotion: %w", err)
	}

	s.log.WithField("code", promo.Code).Info("Promotion created")
	return promo, nil
}

const selectPromotionColumns = `id, code, discount_type, discount_value, min_order_amount, is_active, valid_from, valid_to, max_uses, times_used, created_at`

func scanPromotion(scan func(dest ...interface{}) error) (*models.Promotion, error) {
	p := &models.Promotion{}
	err := scan(&p.ID, &p.Code, &p.DiscountType, &p.DiscountValue, &p.MinOrderAmount,
		&p.IsActive, &p.ValidFrom, &p.ValidTo, &p.MaxUses, &p.TimesUsed, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetPromotion возвращает промокод по коду.
func (s *PromoService) GetPromotion(ctx context.Context, code string) (*models.Promotion, error) {
	query := `SELECT ` + selectPromotionColumns + ` FROM promotions WHERE code = $1`
	promo, err := scanPromotion(s.db.QueryRowContext(ctx, query, strings.ToUpper(strings.TrimSpace(code))).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("promotion not found", err)
		}
		return nil, fmt.Errorf("failed to get promotion: %w", err)
	}
	return promo, nil
}

// ListPromotions возвращает список промокодов.
func (s *PromoService) ListPromotions(ctx context.Context, limit, offset int) ([]*models.Promotion, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + selectPromotionColumns + `
		FROM promotions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	defer rows.Close()

	var promos []*models.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan promotion: %w", err)
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

// UpdatePromotion обновляет параметры промокода.
func (s *PromoService) UpdatePromotion(ctx context.Context, code string, req *models.UpdatePromotionRequest) (*models.Promotion, error) {
	if err := validatePromotionPayload(req.DiscountType, req.DiscountValue, req.ValidFrom, req.ValidTo); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}

	query := `
		UPDATE promotions
		SET discount_type = $1, discount_value = $2, min_order_amount = $3, is_active = $4, valid_from = $5, valid_to = $6, max_uses = $7
		WHERE code = $8
	`
	result, err := s.db.ExecContext(ctx, query, req.DiscountType, req.DiscountValue, req.MinOrderAmount,
		req.IsActive, req.ValidFrom, req.ValidTo, req.MaxUses, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, fmt.Errorf("failed to update promotion: %w", err)
	}
	if err := requireRowAffected(result, "promotion not found"); err != nil {
		return nil, err
	}

	return s.GetPromotion(ctx, code)
}

// DeletePromotion удаляет промокод.
func (s *PromoService) DeletePromotion(ctx context.Context, code string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM promotions WHERE code = $1`, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return fmt.Errorf("failed to delete promotion: %w", err)
	}
	return requireRowAffected(result, "promotion not found")
}

// ValidateCode проверяет код против присланного итога без каких-либо записей.
// Отказ — штатный ответ, не ошибка.
func (s *PromoService) ValidateCode(ctx context.Context, code string, subtotal decimal.Decimal) (*models.ValidateCouponResponse, error) {
	if strings.TrimSpace(code) == "" {
		return &models.ValidateCouponResponse{Valid: false, Message: "coupon code is required"}, nil
	}

	promo, err := s.GetPromotion(ctx, code)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return &models.ValidateCouponResponse{Valid: false, Message: "coupon code not found"}, nil
		}
		return nil, err
	}

	if !promo.IsValid(time.Now()) {
		return &models.ValidateCouponResponse{Valid: false, Message: "coupon code is not valid"}, nil
	}

	if subtotal.LessThan(promo.MinOrderAmount) {
		return &models.ValidateCouponResponse{
			Valid:   false,
			Message: fmt.Sprintf("order subtotal must be at least %s", promo.MinOrderAmount.StringFixed(2)),
		}, nil
	}

	discount, err := Discount(subtotal, promo)
	if err != nil {
		return nil, err
	}

	return &models.ValidateCouponResponse{
		Valid:          true,
		DiscountAmount: &discount,
		Message:        "coupon applied",
	}, nil
}

// ApplyToCart применяет промокод к корзине: пишет код и сумму скидки.
// Счетчик использований здесь не трогается, он списывается при оформлении.
func (s *PromoService) ApplyToCart(ctx context.Context, cart *models.Cart, code string) error {
	if strings.TrimSpace(code) == "" {
		return apperror.Validation("code is required", nil)
	}

	subtotal, err := s.cart.Subtotal(ctx, cart)
	if err != nil {
		return err
	}
	if subtotal.IsZero() {
		return apperror.Validation("cannot apply promotion to an empty cart", nil)
	}

	promo, err := s.GetPromotion(ctx, code)
	if err != nil {
		return err
	}

	if !promo.IsValid(time.Now()) {
		return apperror.Conflict("promotion is not valid", nil)
	}
	if subtotal.LessThan(promo.MinOrderAmount) {
		return apperror.Conflict("order subtotal is below the promotion minimum", nil)
	}

	discount, err := Discount(subtotal, promo)
	if err != nil {
		return err
	}

	query := `
		UPDATE carts
		SET promotion_code = $1, discount_amount = $2, updated_at = $3
		WHERE id = $4
	`
	if _, err := s.db.ExecContext(ctx, query, promo.Code, discount, time.Now(), cart.ID); err != nil {
		return fmt.Errorf("failed to apply promotion to cart: %w", err)
	}

	cart.PromotionCode = &promo.Code
	cart.DiscountAmount = discount

	s.log.WithFields(map[string]interface{}{
		"cart_id": cart.ID,
		"code":    promo.Code,
	}).Info("Promotion applied to cart")

	return nil
}

// RemoveFromCart снимает промокод с корзины.
func (s *PromoService) RemoveFromCart(ctx context.Context, cart *models.Cart) error {
	query := `
		UPDATE carts
		SET promotion_code = NULL, discount_amount = 0, updated_at = $1
		WHERE id = $2
	`
	if _, err := s.db.ExecContext(ctx, query, time.Now(), cart.ID); err != nil {
		return fmt.Errorf("failed to remove promotion from cart: %w", err)
	}

	cart.PromotionCode = nil
	cart.DiscountAmount = decimal.Zero
	return nil
}

// RedeemWithTx списывает одно использование промокода в рамках транзакции
// оформления заказа. Строка блокируется до любых проверок, чтобы
// конкурентные оформления не обошли лимит использования.
func (s *PromoService) RedeemWithTx(ctx context.Context, tx *sql.Tx, code string) (*models.Promotion, error) {
	query := `
		SELECT ` + selectPromotionColumns + `
		FROM promotions
		WHERE code = $1
		FOR UPDATE
	`
	promo, err := scanPromotion(tx.QueryRowContext(ctx, query, strings.ToUpper(strings.TrimSpace(code))).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("promotion not found", err)
		}
		return nil, fmt.Errorf("failed to lock promotion: %w", err)
	}

	if !promo.IsValid(time.Now()) {
		return nil, apperror.Conflict("promotion is no longer valid", nil)
	}

	updateQuery := `
		UPDATE promotions
		SET times_used = times_used + 1
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, updateQuery, promo.ID); err != nil {
		return nil, fmt.Errorf("failed to redeem promotion: %w", err)
	}

	promo.TimesUsed++
	return promo, nil
}
