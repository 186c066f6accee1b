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

// CartService управляет корзинами и их строками. Привязка корзины к
// посетителю разрешается один раз на запрос через Resolve.
type CartService struct {
	db  *database.DB
	log *logger.Logger
}

// NewCartService создает сервис корзин.
func NewCartService(db *database.DB, log *logger.Logger) *CartService {
	return &CartService{
		db:  db,
		log: log,
	}
}

const selectCartColumns = `id, user_id, session_key, promotion_code, discount_amount, created_at, updated_at`

func scanCart(row *sql.Row) (*models.Cart, error) {
	cart := &models.Cart{}
	err := row.Scan(&cart.ID, &cart.UserID, &cart.SessionKey, &cart.PromotionCode,
		&cart.DiscountAmount, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// Resolve возвращает корзину посетителя, создавая ее при отсутствии.
// Для авторизованного пользователя гостевая корзина сессии либо
// переподвешивается на пользователя, либо сливается в его корзину.
// Вся развязка идет в одной транзакции.
func (s *CartService) Resolve(ctx context.Context, visitor models.Visitor) (*models.Cart, error) {
	if !visitor.Authenticated() && visitor.SessionKey == "" {
		return nil, apperror.Validation("session key is required for guest cart", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var cart *models.Cart
	if visitor.Authenticated() {
		cart, err = s.resolveUserCart(ctx, tx, *visitor.UserID, visitor.SessionKey)
	} else {
		cart, err = s.resolveGuestCart(ctx, tx, visitor.SessionKey)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cart resolution: %w", err)
	}

	return cart, nil
}

func (s *CartService) resolveGuestCart(ctx context.Context, tx *sql.Tx, sessionKey string) (*models.Cart, error) {
	query := `SELECT ` + selectCartColumns + ` FROM carts WHERE session_key = $1 AND user_id IS NULL`
	cart, err := scanCart(tx.QueryRowContext(ctx, query, sessionKey))
	if err == nil {
		return cart, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to find guest cart: %w", err)
	}

	return s.createCartTx(ctx, tx, nil, &sessionKey)
}

func (s *CartService) resolveUserCart(ctx context.Context, tx *sql.Tx, userID uuid.UUID, sessionKey string) (*models.Cart, error) {
	userQuery := `SELECT ` + selectCartColumns + ` FROM carts WHERE user_id = $1`
	userCart, err := scanCart(tx.QueryRowContext(ctx, userQuery, userID))
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to find user cart: %w", err)
	}
	hasUserCart := err == nil

	var sessionCart *models.Cart
	if sessionKey != "" {
		sessionQuery := `SELECT ` + selectCartColumns + ` FROM carts WHERE session_key = $1 AND user_id IS NULL`
		sessionCart, err = scanCart(tx.QueryRowContext(ctx, sessionQuery, sessionKey))
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to find session cart: %w", err)
		}
	}

	switch {
	case hasUserCart && sessionCart != nil && userCart.ID != sessionCart.ID:
		if err := s.mergeCartsTx(ctx, tx, userCart, sessionCart); err != nil {
			return nil, err
		}
		return userCart, nil
	case hasUserCart:
		// Пользовательская корзина не должна нести ключ сессии,
		// гасим его, если он остался в строке.
		if userCart.SessionKey != nil {
			clearQuery := `UPDATE carts SET session_key = NULL, updated_at = $1 WHERE id = $2`
			if _, err := tx.ExecContext(ctx, clearQuery, time.Now(), userCart.ID); err != nil {
				return nil, fmt.Errorf("failed to clear stale session key: %w", err)
			}
			userCart.SessionKey = nil
		}
		return userCart, nil
	case sessionCart != nil:
		// Переподвешиваем гостевую корзину на пользователя, ключ сессии
		// при этом гасится.
		adoptQuery := `
			UPDATE carts
			SET user_id = $1, session_key = NULL, updated_at = $2
			WHERE id = $3
		`
		if _, err := tx.ExecContext(ctx, adoptQuery, userID, time.Now(), sessionCart.ID); err != nil {
			return nil, fmt.Errorf("failed to adopt session cart: %w", err)
		}
		sessionCart.UserID = &userID
		sessionCart.SessionKey = nil
		return sessionCart, nil
	default:
		return s.createCartTx(ctx, tx, &userID, nil)
	}
}

func (s *CartService) createCartTx(ctx context.Context, tx *sql.Tx, userID *uuid.UUID, sessionKey *string) (*models.Cart, error) {
	now := time.Now()
	cart := &models.Cart{
		ID:             uuid.New(),
		UserID:         userID,
		SessionKey:     sessionKey,
		DiscountAmount: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	query := `
		INSERT INTO carts (id, user_id, session_key, promotion_code, discount_amount, created_at, updated_at)
		VALUES ($1, $2, $3, NULL, 0, $4, $5)
	`
	if _, err := tx.ExecContext(ctx, query, cart.ID, cart.UserID, cart.SessionKey, cart.CreatedAt, cart.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	return cart, nil
}

// mergeCartsTx переносит строки гостевой корзины в пользовательскую и
// удаляет гостевую. Цена строки берется гостевая, последняя побеждает.
func (s *CartService) mergeCartsTx(ctx context.Context, tx *sql.Tx, userCart, sessionCart *models.Cart) error {
	itemsQuery := `
		SELECT variant_id, quantity, price_at_addition
		FROM cart_items
		WHERE cart_id = $1
	`
	rows, err := tx.QueryContext(ctx, itemsQuery, sessionCart.ID)
	if err != nil {
		return fmt.Errorf("failed to load session cart items: %w", err)
	}
	defer rows.Close()

	type mergeItem struct {
		variantID uuid.UUID
		quantity  int
		price     decimal.Decimal
	}
	var items []mergeItem
	for rows.Next() {
		var it mergeItem
		if err := rows.Scan(&it.variantID, &it.quantity, &it.price); err != nil {
			return fmt.Errorf("failed to scan session cart item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate session cart items: %w", err)
	}

	for _, it := range items {
		if err := upsertCartItemTx(ctx, tx, userCart.ID, it.variantID, it.quantity, it.price); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, sessionCart.ID); err != nil {
		return fmt.Errorf("failed to delete session cart: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"user_cart_id":    userCart.ID,
		"session_cart_id": sessionCart.ID,
		"merged_items":    len(items),
	}).Info("Guest cart merged into user cart")

	return nil
}

func upsertCartItemTx(ctx context.Context, tx *sql.Tx, cartID, variantID uuid.UUID, qty int, price decimal.Decimal) error {
	query := `
		INSERT INTO cart_items (id, cart_id, variant_id, quantity, price_at_addition, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (cart_id, variant_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, price_at_addition = EXCLUDED.price_at_addition, updated_at = EXCLUDED.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, uuid.New(), cartID, variantID, qty, price, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert cart item: %w", err)
	}
	return nil
}

// AddItem добавляет вариант в корзину. Цена строки берется из варианта,
// отсутствие текущей цены — ошибка наполнения каталога, не догадка.
// Существующая строка наращивает количество, цена перезаписывается.
func (s *CartService) AddItem(ctx context.Context, cart *models.Cart, variant *models.ProductVariant, qty int, priceOverride *decimal.Decimal) error {
	if qty <= 0 {
		return apperror.Validation("quantity must be positive", nil)
	}

	var price decimal.Decimal
	switch {
	case priceOverride != nil:
		price = *priceOverride
	case variant.CurrentPrice.Valid:
		price = variant.CurrentPrice.Decimal
	default:
		return apperror.Internal("variant has no current price", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertCartItemTx(ctx, tx, cart.ID, variant.ID, qty, price); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit add item: %w", err)
	}

	return nil
}

// UpdateItemQuantity устанавливает количество строки корзины.
// Нулевое или отрицательное количество удаляет строку.
func (s *CartService) UpdateItemQuantity(ctx context.Context, cart *models.Cart, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		result, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND variant_id = $2`, cart.ID, variantID)
		if err != nil {
			return fmt.Errorf("failed to delete cart item: %w", err)
		}
		return requireRowAffected(result, "cart item not found")
	}

	query := `
		UPDATE cart_items
		SET quantity = $1, updated_at = $2
		WHERE cart_id = $3 AND variant_id = $4
	`
	result, err := s.db.ExecContext(ctx, query, qty, time.Now(), cart.ID, variantID)
	if err != nil {
		return fmt.Errorf("failed to update cart item quantity: %w", err)
	}
	return requireRowAffected(result, "cart item not found")
}

// RemoveItem удаляет строку корзины по ее идентификатору.
// Строка чужой корзины не видна и дает not found.
func (s *CartService) RemoveItem(ctx context.Context, cart *models.Cart, itemID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cart.ID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return requireRowAffected(result, "cart item not found")
}

func requireRowAffected(result sql.Result, notFoundMsg string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound(notFoundMsg, nil)
	}
	return nil
}

// ListItems возвращает строки корзины с названием товара и размером варианта.
func (s *CartService) ListItems(ctx context.Context, cart *models.Cart) ([]*models.CartItem, error) {
	query := `
		SELECT i.id, i.cart_id, i.variant_id, i.quantity, i.price_at_addition, i.created_at, i.updated_at, p.name, v.size
		FROM cart_items i
		JOIN product_variants v ON v.id = i.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE i.cart_id = $1
		ORDER BY i.created_at
	`

	rows, err := s.db.QueryContext(ctx, query, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	var items []*models.CartItem
	for rows.Next() {
		item := &models.CartItem{}
		if err := rows.Scan(&item.ID, &item.CartID, &item.VariantID, &item.Quantity, &item.PriceAtAddition,
			&item.CreatedAt, &item.UpdatedAt, &item.ProductName, &item.VariantSize); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cart items: %w", err)
	}

	return items, nil
}

// TotalQuantity возвращает суммарное количество единиц в корзине.
func (s *CartService) TotalQuantity(ctx context.Context, cart *models.Cart) (int, error) {
	var total int
	query := `SELECT COALESCE(SUM(quantity), 0) FROM cart_items WHERE cart_id = $1`
	if err := s.db.QueryRowContext(ctx, query, cart.ID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to get cart total quantity: %w", err)
	}
	return total, nil
}

// Subtotal возвращает стоимость корзины до скидки.
func (s *CartService) Subtotal(ctx context.Context, cart *models.Cart) (decimal.Decimal, error) {
	var subtotal decimal.Decimal
	query := `SELECT COALESCE(SUM(quantity * price_at_addition), 0) FROM cart_items WHERE cart_id = $1`
	if err := s.db.QueryRowContext(ctx, query, cart.ID).Scan(&subtotal); err != nil {
		return decimal.Zero, fmt.Errorf("failed to get cart subtotal: %w", err)
	}
	return subtotal.Round(2), nil
}

// GrandTotal возвращает стоимость корзины после скидки, не ниже нуля.
func GrandTotal(subtotal, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return total.Round(2)
}

// Summary собирает корзину с итогами за один проход.
func (s *CartService) Summary(ctx context.Context, cart *models.Cart) (*models.CartSummary, error) {
	items, err := s.ListItems(ctx, cart)
	if err != nil {
		return nil, err
	}

	totalQty := 0
	subtotal := decimal.Zero
	for _, item := range items {
		totalQty += item.Quantity
		subtotal = subtotal.Add(item.Subtotal())
	}
	subtotal = subtotal.Round(2)

	return &models.CartSummary{
		Cart:          cart,
		Items:         items,
		TotalQuantity: totalQty,
		Subtotal:      subtotal,
		GrandTotal:    GrandTotal(subtotal, cart.DiscountAmount),
	}, nil
}

// ClearTx удаляет строки корзины и сбрасывает примененный промокод.
// Используется после успешного оформления заказа.
func (s *CartService) ClearTx(ctx context.Context, tx *sql.Tx, cartID uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}

	query := `
		UPDATE carts
		SET promotion_code = NULL, discount_amount = 0, updated_at = $1
		WHERE id = $2
	`
	if _, err := tx.ExecContext(ctx, query, time.Now(), cartID); err != nil {
		return fmt.Errorf("failed to reset cart promotion: %w", err)
	}
	return nil
}
