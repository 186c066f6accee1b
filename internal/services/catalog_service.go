package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
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

func decimalToNull(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// CatalogService управляет товарами, вариантами и остатками.
type CatalogService struct {
	db  *database.DB
	log *logger.Logger
}

// NewCatalogService создает сервис каталога.
func NewCatalogService(db *database.DB, log *logger.Logger) *CatalogService {
	return &CatalogService{
		db:  db,
		log: log,
	}
}

// ListProducts возвращает товары по фильтру, новые первыми, вместе с вариантами.
// Без явного фильтра по статусам видны только AVAILABLE и PRE_ORDER.
func (s *CatalogService) ListProducts(ctx context.Context, filter *models.ProductFilter) ([]*models.Product, error) {
	if filter == nil {
		filter = &models.ProductFilter{}
	}

	statuses := filter.Statuses
	if len(statuses) == 0 {
		statuses = []models.ProductStatus{models.ProductStatusAvailable, models.ProductStatusPreOrder}
	}
	statusArgs := make([]string, len(statuses))
	for i, st := range statuses {
		statusArgs[i] = string(st)
	}

	query := `
		SELECT p.id, p.name, p.slug, p.description, p.sku, p.status, p.category_id, p.brand_id, p.is_featured, p.image_url, p.created_at, p.updated_at
		FROM products p
		WHERE p.status = ANY($1)
	`
	args := []interface{}{pq.Array(statusArgs)}
	argIndex := 2

	if filter.CategorySlug != "" {
		query += fmt.Sprintf(" AND p.category_id = (SELECT id FROM categories WHERE slug = $%d)", argIndex)
		args = append(args, filter.CategorySlug)
		argIndex++
	}

	if filter.FeaturedOnly {
		query += " AND p.is_featured = TRUE"
	}

	query += " ORDER BY p.created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d", argIndex)
	args = append(args, limit)
	argIndex++

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	var ids []uuid.UUID
	for rows.Next() {
		p := &models.Product{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.SKU, &p.Status,
			&p.CategoryID, &p.BrandID, &p.IsFeatured, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	if len(products) == 0 {
		return products, nil
	}

	if err := s.attachVariants(ctx, products, ids); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *CatalogService) attachVariants(ctx context.Context, products []*models.Product, ids []uuid.UUID) error {
	idArgs := make([]string, len(ids))
	for i, id := range ids {
		idArgs[i] = id.String()
	}

	query := `
		SELECT id, product_id, size, original_price, current_price, stock, is_default
		FROM product_variants
		WHERE product_id = ANY($1)
		ORDER BY is_default DESC, size
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(idArgs))
	if err != nil {
		return fmt.Errorf("failed to load product variants: %w", err)
	}
	defer rows.Close()

	byProduct := make(map[uuid.UUID]*models.Product, len(products))
	for _, p := range products {
		byProduct[p.ID] = p
	}

	for rows.Next() {
		var v models.ProductVariant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Size, &v.OriginalPrice, &v.CurrentPrice, &v.Stock, &v.IsDefault); err != nil {
			return fmt.Errorf("failed to scan product variant: %w", err)
		}
		if p, ok := byProduct[v.ProductID]; ok {
			p.Variants = append(p.Variants, v)
		}
	}
	return rows.Err()
}

// GetProductBySlug возвращает товар с вариантами по slug.
func (s *CatalogService) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	query := `
		SELECT id, name, slug, description, sku, status, category_id, brand_id, is_featured, image_url, created_at, updated_at
		FROM products
		WHERE slug = $1
	`

	p := &models.Product{}
	if err := s.db.QueryRowContext(ctx, query, slug).Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &p.SKU, &p.Status,
		&p.CategoryID, &p.BrandID, &p.IsFeatured, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("product not found", err)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if err := s.attachVariants(ctx, []*models.Product{p}, []uuid.UUID{p.ID}); err != nil {
		return nil, err
	}

	return p, nil
}

// GetVariant возвращает вариант товара вместе с именем и статусом товара.
func (s *CatalogService) GetVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error) {
	query := `
		SELECT v.id, v.product_id, v.size, v.original_price, v.current_price, v.stock, v.is_default, p.name, p.status
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1
	`

	v := &models.ProductVariant{}
	if err := s.db.QueryRowContext(ctx, query, variantID).Scan(
		&v.ID, &v.ProductID, &v.Size, &v.OriginalPrice, &v.CurrentPrice, &v.Stock, &v.IsDefault,
		&v.ProductName, &v.ProductStatus,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("product variant not found", err)
		}
		return nil, fmt.Errorf("failed to get product variant: %w", err)
	}

	return v, nil
}

// CreateProduct создает товар с базовым вариантом в одной транзакции.
func (s *CatalogService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperror.Validation("name is required", nil)
	}
	if strings.TrimSpace(req.Size) == "" {
		return nil, apperror.Validation("size is required", nil)
	}
	if req.Price.IsNegative() || req.Price.IsZero() {
		return nil, apperror.Validation("price must be positive", nil)
	}
	if req.Stock < 0 {
		return nil, apperror.Validation("stock must be non-negative", nil)
	}

	status := req.Status
	if status == "" {
		status = models.ProductStatusAvailable
	}
	switch status {
	case models.ProductStatusAvailable, models.ProductStatusOutOfStock, models.ProductStatusPreOrder, models.ProductStatusDiscontinued:
	default:
		return nil, apperror.Validation("invalid status", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	product := &models.Product{
		ID:          uuid.New(),
		Name:        req.Name,
		Slug:        Slugify(req.Name),
		Description: req.Description,
		SKU:         req.SKU,
		Status:      status,
		CategoryID:  req.CategoryID,
		BrandID:     req.BrandID,
		IsFeatured:  req.IsFeatured,
		ImageURL:    req.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	productQuery := `
		INSERT INTO products (id, name, slug, description, sku, status, category_id, brand_id, is_featured, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = tx.ExecContext(ctx, productQuery, product.ID, product.Name, product.Slug, product.Description,
		product.SKU, product.Status, product.CategoryID, product.BrandID, product.IsFeatured, product.ImageURL,
		product.CreatedAt, product.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, apperror.Conflict("product with this slug or sku already exists", err)
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	variant := models.ProductVariant{
		ID:            uuid.New(),
		ProductID:     product.ID,
		Size:          req.Size,
		OriginalPrice: req.Price,
		CurrentPrice:  decimalToNull(req.Price),
		Stock:         req.Stock,
		IsDefault:     true,
	}

	variantQuery := `
		INSERT INTO product_variants (id, product_id, size, original_price, current_price, stock, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.ExecContext(ctx, variantQuery, variant.ID, variant.ProductID, variant.Size,
		variant.OriginalPrice, variant.CurrentPrice, variant.Stock, variant.IsDefault)
	if err != nil {
		return nil, fmt.Errorf("failed to create product variant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	product.Variants = append(product.Variants, variant)

	s.log.WithFields(map[string]interface{}{
		"product_id": product.ID,
		"slug":       product.Slug,
	}).Info("Product created")

	return product, nil
}

// DecrementStockTx уменьшает остаток варианта под блокировкой строки.
// Недостаток остатка — конфликт, транзакция откатывается вызывающим.
func (s *CatalogService) DecrementStockTx(ctx context.Context, tx *sql.Tx, variantID uuid.UUID, qty int) error {
	var stock int
	lockQuery := `
		SELECT stock
		FROM product_variants
		WHERE id = $1
		FOR UPDATE
	`
	if err := tx.QueryRowContext(ctx, lockQuery, variantID).Scan(&stock); err != nil {
		if err == sql.ErrNoRows {
			return apperror.NotFound("product variant not found", err)
		}
		return fmt.Errorf("failed to lock variant stock: %w", err)
	}

	if stock < qty {
		return apperror.Conflict("insufficient stock for variant", nil)
	}

	updateQuery := `
		UPDATE product_variants
		SET stock = stock - $1
		WHERE id = $2
	`
	if _, err := tx.ExecContext(ctx, updateQuery, qty, variantID); err != nil {
		return fmt.Errorf("failed to decrement variant stock: %w", err)
	}

	return nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify приводит название к url-безопасному виду.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
