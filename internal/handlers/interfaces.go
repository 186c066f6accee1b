package handlers

import (
	"context"
	"time"

	"storefront-system/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ----- Catalog -----

type CatalogService interface {
	ListProducts(ctx context.Context, filter *models.ProductFilter) ([]*models.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	GetVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error)
	CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error)
}

// ----- Cart -----

type CartService interface {
	Resolve(ctx context.Context, visitor models.Visitor) (*models.Cart, error)
	AddItem(ctx context.Context, cart *models.Cart, variant *models.ProductVariant, qty int, priceOverride *decimal.Decimal) error
	UpdateItemQuantity(ctx context.Context, cart *models.Cart, variantID uuid.UUID, qty int) error
	RemoveItem(ctx context.Context, cart *models.Cart, itemID uuid.UUID) error
	Summary(ctx context.Context, cart *models.Cart) (*models.CartSummary, error)
}

// ----- Promo -----

type PromoService interface {
	CreatePromotion(ctx context.Context, req *models.CreatePromotionRequest) (*models.Promotion, error)
	GetPromotion(ctx context.Context, code string) (*models.Promotion, error)
	UpdatePromotion(ctx context.Context, code string, req *models.UpdatePromotionRequest) (*models.Promotion, error)
	DeletePromotion(ctx context.Context, code string) error
	ListPromotions(ctx context.Context, limit, offset int) ([]*models.Promotion, error)
	ValidateCode(ctx context.Context, code string, subtotal decimal.Decimal) (*models.ValidateCouponResponse, error)
	ApplyToCart(ctx context.Context, cart *models.Cart, code string) error
	RemoveFromCart(ctx context.Context, cart *models.Cart) error
}

// ----- Checkout / Orders -----

type CheckoutService interface {
	Checkout(ctx context.Context, visitor models.Visitor, cart *models.Cart, req *models.CheckoutRequest) (*models.CheckoutResponse, error)
}

type OrderService interface {
	GetByOrderNumber(ctx context.Context, orderNumber string, visitor models.Visitor) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Order, error)
	List(ctx context.Context, status *models.OrderStatus, limit, offset int) ([]*models.Order, error)
	UpdateStatus(ctx context.Context, orderNumber string, newStatus models.OrderStatus) (*models.Order, models.OrderStatus, error)
	SalesSummary(ctx context.Context, from, to time.Time) (*models.SalesSummary, error)
}

// ----- Events -----

type EventProducer interface {
	PublishOrderCreated(order *models.Order) error
	PublishOrderStatusChanged(orderID uuid.UUID, orderNumber string, oldStatus, newStatus models.OrderStatus) error
}
