package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart представляет корзину посетителя. Владелец — либо пользователь,
// либо гостевая сессия; одновременно оба поля заполнены не бывают.
type Cart struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	UserID         *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	SessionKey     *string         `json:"session_key,omitempty" db:"session_key"`
	PromotionCode  *string         `json:"promotion_code,omitempty" db:"promotion_code"`
	DiscountAmount decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// CartItem представляет строку корзины: вариант товара, количество и
// снимок цены на момент добавления.
type CartItem struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	CartID          uuid.UUID       `json:"cart_id" db:"cart_id"`
	VariantID       uuid.UUID       `json:"variant_id" db:"variant_id"`
	Quantity        int             `json:"quantity" db:"quantity"`
	PriceAtAddition decimal.Decimal `json:"price_at_addition" db:"price_at_addition"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`

	// Денормализованные поля для отображения, заполняются join-ом.
	ProductName string `json:"product_name,omitempty" db:"-"`
	VariantSize string `json:"variant_size,omitempty" db:"-"`
}

// Subtotal возвращает стоимость строки корзины.
func (i *CartItem) Subtotal() decimal.Decimal {
	return i.PriceAtAddition.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartSummary представляет корзину с рассчитанными итогами
type CartSummary struct {
	Cart          *Cart           `json:"cart"`
	Items         []*CartItem     `json:"items"`
	TotalQuantity int             `json:"total_quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
}

// AddCartItemRequest представляет запрос на добавление варианта в корзину
type AddCartItemRequest struct {
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
}

// UpdateCartItemRequest представляет запрос на изменение количества.
// Нулевое или отрицательное количество удаляет строку.
type UpdateCartItemRequest struct {
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
}

// ApplyPromotionRequest представляет запрос на применение промокода к корзине
type ApplyPromotionRequest struct {
	Code string `json:"code"`
}
