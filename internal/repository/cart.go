package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/go-checkout-api/internal/model"
)

type CartRepository interface {
	ItemsWithProducts(ctx context.Context, cartID uuid.UUID) ([]model.CartLine, error)
	AddItem(ctx context.Context, item *model.CartItem) error
	ClearCart(ctx context.Context, cartID uuid.UUID) ([]uuid.UUID, error)
}

type pgCartRepo struct{ pool *pgxpool.Pool }

func NewCartRepository(pool *pgxpool.Pool) CartRepository {
	return &pgCartRepo{pool: pool}
}

// ItemsWithProducts loads the cart's items joined with their products so the
// order-creation engine can price each line from current product state.
func (r *pgCartRepo) ItemsWithProducts(ctx context.Context, cartID uuid.UUID) ([]model.CartLine, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity,
		        COALESCE(ci.selected_color, ''), COALESCE(ci.selected_size, ''), COALESCE(ci.delivery_option, ''),
		        p.id, p.name, p.description, p.price, p.sale_price, p.stock, p.sold_items
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.cart_id = $1
		 ORDER BY ci.created_at`,
		cartID,
	)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	defer rows.Close()

	var lines []model.CartLine
	for rows.Next() {
		var l model.CartLine
		if err := rows.Scan(
			&l.Item.ID, &l.Item.CartID, &l.Item.ProductID, &l.Item.Quantity,
			&l.Item.SelectedColor, &l.Item.SelectedSize, &l.Item.DeliveryOption,
			&l.Product.ID, &l.Product.Name, &l.Product.Description,
			&l.Product.Price, &l.Product.SalePrice, &l.Product.Stock, &l.Product.SoldItems,
		); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *pgCartRepo) AddItem(ctx context.Context, item *model.CartItem) error {
	item.ID = uuid.New()
	query := `INSERT INTO cart_items (id, cart_id, product_id, quantity, selected_color, selected_size, delivery_option, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
			  ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = cart_items.quantity + $4, updated_at = NOW()
			  RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		item.ID, item.CartID, item.ProductID, item.Quantity,
		item.SelectedColor, item.SelectedSize, item.DeliveryOption,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}
	return nil
}

// ClearCart deletes all items for the cart and returns the ids of the
// deleted rows for client-side cache reconciliation.
func (r *pgCartRepo) ClearCart(ctx context.Context, cartID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 RETURNING id`, cartID,
	)
	if err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}
	defer rows.Close()

	var deleted []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deleted item: %w", err)
		}
		deleted = append(deleted, id)
	}
	return deleted, rows.Err()
}
