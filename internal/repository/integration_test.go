package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/go-checkout-api/internal/model"
)

func seedUser(t *testing.T, email string) *model.User {
	t.Helper()
	user := &model.User{
		Email: email, Password: "hashed",
		FirstName: "John", LastName: "Doe", Role: "customer",
	}
	require.NoError(t, NewUserRepository(testPool).Create(context.Background(), user))
	return user
}

func seedProduct(t *testing.T, name string, price float64, sale *float64) *model.Product {
	t.Helper()
	product := &model.Product{
		Name: name, Description: "test product",
		Price: decimal.NewFromFloat(price), Stock: 100,
	}
	if sale != nil {
		d := decimal.NewFromFloat(*sale)
		product.SalePrice = &d
	}
	require.NoError(t, NewProductRepository(testPool).Create(context.Background(), product))
	return product
}

func TestOrderRepo_CreateAndGetBySessionID(t *testing.T) {
	cleanupTable(t, "order_items", "orders", "cart_items", "products", "users")

	repo := NewOrderRepository(testPool)
	ctx := context.Background()
	user := seedUser(t, "order@example.com")
	product := seedProduct(t, "Tee", 25, nil)

	order := &model.Order{
		UserID:          user.ID,
		StripeSessionID: "cs_test_abc",
		TotalAmount:     decimal.NewFromFloat(50),
		Status:          model.OrderStatusProcessing,
		ShippingAddress: &model.Address{
			Line1: "1 Main St", City: "Berlin", PostalCode: "10115", Country: "DE",
		},
	}
	require.NoError(t, repo.Create(ctx, order))
	assert.NotEqual(t, uuid.Nil, order.ID)

	require.NoError(t, repo.CreateItems(ctx, order.ID, []model.OrderItem{
		{ProductID: product.ID, Quantity: 2, Price: product.Price, Status: model.OrderItemStatusPending},
	}))

	found, err := repo.GetBySessionID(ctx, "cs_test_abc")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, order.ID, found.ID)
	assert.Equal(t, model.OrderStatusProcessing, found.Status)
	require.NotNil(t, found.ShippingAddress)
	assert.Equal(t, "Berlin", found.ShippingAddress.City)
	require.Len(t, found.Items, 1)
	assert.Equal(t, 2, found.Items[0].Quantity)

	missing, err := repo.GetBySessionID(ctx, "cs_test_unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderRepo_DuplicateSessionID(t *testing.T) {
	cleanupTable(t, "order_items", "orders", "cart_items", "products", "users")

	repo := NewOrderRepository(testPool)
	ctx := context.Background()
	user := seedUser(t, "dup@example.com")

	first := &model.Order{
		UserID: user.ID, StripeSessionID: "cs_test_dup",
		TotalAmount: decimal.NewFromFloat(10), Status: model.OrderStatusProcessing,
	}
	require.NoError(t, repo.Create(ctx, first))

	second := &model.Order{
		UserID: user.ID, StripeSessionID: "cs_test_dup",
		TotalAmount: decimal.NewFromFloat(10), Status: model.OrderStatusProcessing,
	}
	err := repo.Create(ctx, second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateSession)

	orders, err := repo.ListByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCartRepo_ItemsWithProducts(t *testing.T) {
	cleanupTable(t, "order_items", "orders", "cart_items", "products", "users")

	cartRepo := NewCartRepository(testPool)
	ctx := context.Background()

	sale := 80.0
	onSale := seedProduct(t, "Hoodie", 100, &sale)
	regular := seedProduct(t, "Cap", 15, nil)

	cartID := uuid.New()
	require.NoError(t, cartRepo.AddItem(ctx, &model.CartItem{
		CartID: cartID, ProductID: onSale.ID, Quantity: 3, SelectedColor: "black", SelectedSize: "M",
	}))
	require.NoError(t, cartRepo.AddItem(ctx, &model.CartItem{
		CartID: cartID, ProductID: regular.ID, Quantity: 1,
	}))

	lines, err := cartRepo.ItemsWithProducts(ctx, cartID)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, "Hoodie", lines[0].Product.Name)
	require.NotNil(t, lines[0].Product.SalePrice)
	assert.True(t, decimal.NewFromInt(80).Equal(*lines[0].Product.SalePrice))
	assert.Equal(t, "black", lines[0].Item.SelectedColor)

	assert.Equal(t, "Cap", lines[1].Product.Name)
	assert.Nil(t, lines[1].Product.SalePrice)
}

func TestCartRepo_ClearCartReturnsDeletedIDs(t *testing.T) {
	cleanupTable(t, "order_items", "orders", "cart_items", "products", "users")

	cartRepo := NewCartRepository(testPool)
	ctx := context.Background()
	product := seedProduct(t, "Tee", 10, nil)

	cartID := uuid.New()
	item := &model.CartItem{CartID: cartID, ProductID: product.ID, Quantity: 1}
	require.NoError(t, cartRepo.AddItem(ctx, item))

	deleted, err := cartRepo.ClearCart(ctx, cartID)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, item.ID, deleted[0])

	lines, err := cartRepo.ItemsWithProducts(ctx, cartID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	// clearing an already-empty cart is a no-op
	deleted, err = cartRepo.ClearCart(ctx, cartID)
	require.NoError(t, err)
	assert.Empty(t, deleted)
}

func TestProductRepo_IncrementSoldItems(t *testing.T) {
	cleanupTable(t, "order_items", "orders", "cart_items", "products", "users")

	repo := NewProductRepository(testPool)
	ctx := context.Background()
	product := seedProduct(t, "Tee", 10, nil)

	require.NoError(t, repo.IncrementSoldItems(ctx, product.ID, 2))
	require.NoError(t, repo.IncrementSoldItems(ctx, product.ID, 3))

	found, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, found.SoldItems)

	assert.Error(t, repo.IncrementSoldItems(ctx, product.ID, 0))
	assert.Error(t, repo.IncrementSoldItems(ctx, uuid.New(), 1))
}
