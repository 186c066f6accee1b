package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStatus представляет статус товара в каталоге
type ProductStatus string

const (
	ProductStatusAvailable    ProductStatus = "AVAILABLE"
	ProductStatusOutOfStock   ProductStatus = "OUT_OF_STOCK"
	ProductStatusPreOrder     ProductStatus = "PRE_ORDER"
	ProductStatusDiscontinued ProductStatus = "DISCONTINUED"
)

// Category представляет категорию товаров
type Category struct {
	ID   uuid.UUID `json:"id" db:"id"`
	Name string    `json:"name" db:"name"`
	Slug string    `json:"slug" db:"slug"`
}

// Brand представляет бренд или производителя
type Brand struct {
	ID   uuid.UUID `json:"id" db:"id"`
	Name string    `json:"name" db:"name"`
}

// Product представляет товар в каталоге
type Product struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	Slug        string           `json:"slug" db:"slug"`
	Description string           `json:"description" db:"description"`
	SKU         *string          `json:"sku,omitempty" db:"sku"`
	Status      ProductStatus    `json:"status" db:"status"`
	CategoryID  *uuid.UUID       `json:"category_id,omitempty" db:"category_id"`
	BrandID     *uuid.UUID       `json:"brand_id,omitempty" db:"brand_id"`
	IsFeatured  bool             `json:"is_featured" db:"is_featured"`
	ImageURL    *string          `json:"image_url,omitempty" db:"image_url"`
	Variants    []ProductVariant `json:"variants,omitempty"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

// ProductVariant представляет вариант товара (размер/опция) с собственной
// ценой и остатком. CurrentPrice может отсутствовать только при ошибке
// наполнения каталога — добавление такого варианта в корзину запрещено.
type ProductVariant struct {
	ID            uuid.UUID           `json:"id" db:"id"`
	ProductID     uuid.UUID           `json:"product_id" db:"product_id"`
	Size          string              `json:"size" db:"size"`
	OriginalPrice decimal.Decimal     `json:"original_price" db:"original_price"`
	CurrentPrice  decimal.NullDecimal `json:"current_price" db:"current_price"`
	Stock         int                 `json:"stock" db:"stock"`
	IsDefault     bool                `json:"is_default" db:"is_default"`

	// Денормализованные поля из products, заполняются join-ом.
	ProductName   string        `json:"product_name,omitempty" db:"-"`
	ProductStatus ProductStatus `json:"product_status,omitempty" db:"-"`
}

// ProductFilter описывает фильтры выборки товаров
type ProductFilter struct {
	Statuses     []ProductStatus
	CategorySlug string
	FeaturedOnly bool
	Limit        int
	Offset       int
}

// CreateProductRequest представляет запрос на создание товара с базовым вариантом
type CreateProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	SKU         *string         `json:"sku,omitempty"`
	Status      ProductStatus   `json:"status,omitempty"`
	CategoryID  *uuid.UUID      `json:"category_id,omitempty"`
	BrandID     *uuid.UUID      `json:"brand_id,omitempty"`
	IsFeatured  bool            `json:"is_featured,omitempty"`
	ImageURL    *string         `json:"image_url,omitempty"`
	Size        string          `json:"size"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}
