package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus представляет статус заказа
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// PaymentMethod представляет способ оплаты заказа
type PaymentMethod string

const (
	PaymentMethodBank   PaymentMethod = "BANK"
	PaymentMethodCredit PaymentMethod = "CREDIT"
	PaymentMethodCOD    PaymentMethod = "COD"
)

// Order представляет подтвержденный заказ — неизменяемый снимок корзины
// на момент оформления. После создания меняется только статус.
type Order struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	OrderNumber     string          `json:"order_number" db:"order_number"`
	UserID          *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	Status          OrderStatus     `json:"status" db:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	DiscountAmount  decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	GrandTotal      decimal.Decimal `json:"grand_total" db:"grand_total"`
	PromotionCode   *string         `json:"promotion_code,omitempty" db:"promotion_code"`
	FullName        string          `json:"full_name" db:"full_name"`
	Email           string          `json:"email" db:"email"`
	PhoneNumber     string          `json:"phone_number" db:"phone_number"`
	ShippingAddress string          `json:"shipping_address" db:"shipping_address"`
	PaymentMethod   PaymentMethod   `json:"payment_method" db:"payment_method"`
	PaymentProof    *string         `json:"payment_proof,omitempty" db:"payment_proof"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderItem представляет строку заказа. Название товара, размер и цена
// денормализованы, чтобы исторические заказы не менялись вместе с каталогом.
type OrderItem struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OrderID     uuid.UUID       `json:"order_id" db:"order_id"`
	ProductID   *uuid.UUID      `json:"product_id,omitempty" db:"product_id"`
	ProductName string          `json:"product_name" db:"product_name"`
	VariantSize string          `json:"variant_size" db:"variant_size"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
}

// CheckoutRequest представляет данные формы оформления заказа
type CheckoutRequest struct {
	FullName        string        `json:"full_name"`
	Email           string        `json:"email"`
	PhoneNumber     string        `json:"phone_number"`
	ShippingAddress string        `json:"shipping_address"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	PaymentProof    *string       `json:"payment_proof,omitempty"`
}

// CheckoutResponse представляет результат успешного оформления заказа
type CheckoutResponse struct {
	Order   *Order `json:"order"`
	Warning string `json:"warning,omitempty"`
}

// UpdateOrderStatusRequest представляет запрос на смену статуса заказа
type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status"`
}

// SalesSummary представляет агрегированную сводку продаж за период
type SalesSummary struct {
	From          time.Time           `json:"from"`
	To            time.Time           `json:"to"`
	TotalOrders   int                 `json:"total_orders"`
	TotalRevenue  decimal.Decimal     `json:"total_revenue"`
	TotalDiscount decimal.Decimal     `json:"total_discount"`
	ByStatus      map[OrderStatus]int `json:"by_status"`
}
