package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountType описывает тип скидки промокода.
type DiscountType string

const (
	DiscountTypePercent DiscountType = "PERCENT"
	DiscountTypeFixed   DiscountType = "FIXED"
)

// Promotion представляет промокод с правилами применимости и лимитом
// использования. Действительность кода — производный предикат от времени,
// а не хранимый флаг.
type Promotion struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	Code           string          `json:"code" db:"code"`
	DiscountType   DiscountType    `json:"discount_type" db:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value" db:"discount_value"`
	MinOrderAmount decimal.Decimal `json:"min_order_amount" db:"min_order_amount"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	ValidFrom      time.Time       `json:"valid_from" db:"valid_from"`
	ValidTo        time.Time       `json:"valid_to" db:"valid_to"`
	MaxUses        int             `json:"max_uses" db:"max_uses"` // 0 = безлимит
	TimesUsed      int             `json:"times_used" db:"times_used"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// IsValid проверяет применимость промокода на момент now.
func (p *Promotion) IsValid(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if now.Before(p.ValidFrom) || now.After(p.ValidTo) {
		return false
	}
	if p.MaxUses > 0 && p.TimesUsed >= p.MaxUses {
		return false
	}
	return true
}

// CreatePromotionRequest описывает запрос на создание промокода.
type CreatePromotionRequest struct {
	Code           string          `json:"code"`
	DiscountType   DiscountType    `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	MinOrderAmount decimal.Decimal `json:"min_order_amount"`
	IsActive       bool            `json:"is_active"`
	ValidFrom      time.Time       `json:"valid_from"`
	ValidTo        time.Time       `json:"valid_to"`
	MaxUses        int             `json:"max_uses,omitempty"`
}

// UpdatePromotionRequest описывает запрос на обновление промокода.
type UpdatePromotionRequest struct {
	DiscountType   DiscountType    `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	MinOrderAmount decimal.Decimal `json:"min_order_amount"`
	IsActive       bool            `json:"is_active"`
	ValidFrom      time.Time       `json:"valid_from"`
	ValidTo        time.Time       `json:"valid_to"`
	MaxUses        int             `json:"max_uses,omitempty"`
}

// ValidateCouponRequest представляет запрос проверки кода против
// присланного клиентом промежуточного итога.
type ValidateCouponRequest struct {
	Code     string          `json:"coupon_code"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// ValidateCouponResponse представляет результат проверки кода.
type ValidateCouponResponse struct {
	Valid          bool             `json:"valid"`
	DiscountAmount *decimal.Decimal `json:"discount_amount,omitempty"`
	Message        string           `json:"message"`
}
