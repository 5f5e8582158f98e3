package domain

import (
	"context"
	"database/sql"
	"time"
)

type Product struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	StockQuantity int64     `json:"stock_quantity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name          string `json:"name" validate:"required"`
	StockQuantity int64  `json:"stock_quantity" validate:"gte=0"`
}

type SetStockQuantityRequest struct {
	Quantity int64 `json:"quantity" validate:"gte=0"`
}

type AvailableStock struct {
	ProductID      int64 `json:"product_id"`
	StockQuantity  int64 `json:"stock_quantity"`
	Reserved       int64 `json:"reserved"`
	AvailableStock int64 `json:"available_stock"`
}

type ProductRepository interface {
	Create(ctx context.Context, product *Product) error
	GetByID(ctx context.Context, id int64) (Product, error)
	LockForUpdate(ctx context.Context, id int64, tx *sql.Tx) (Product, error)
	UpdateStockQuantity(ctx context.Context, id, quantity int64, tx *sql.Tx) error

	WithTransaction(ctx context.Context, fn func(context.Context, *sql.Tx) error) error
}

type ProductUsecase interface {
	CreateProduct(ctx context.Context, req ProductCreateRequest) (Product, error)
	SetStockQuantity(ctx context.Context, productID int64, req SetStockQuantityRequest) error
}
