package db

import (
	"context"
	"database/sql"
	"log/slog"

	"stock-reservation-service/app/domain"
)

type productRepository struct {
	conn *sql.DB
}

func NewProductRepository(db *sql.DB) domain.ProductRepository {
	return &productRepository{db}
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `INSERT INTO products (name, stock_quantity) VALUES ($1, $2)
	RETURNING id, created_at, updated_at`

	err := r.conn.QueryRowContext(ctx, query, product.Name, product.StockQuantity).
		Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		slog.ErrorContext(ctx, "[productRepository] Create", "queryRowContext", err)
		return err
	}

	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id int64) (domain.Product, error) {
	query := `SELECT id, name, stock_quantity, created_at, updated_at
	FROM products WHERE id = $1`

	var product domain.Product
	err := r.conn.QueryRowContext(ctx, query, id).Scan(&product.ID, &product.Name,
		&product.StockQuantity, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		slog.ErrorContext(ctx, "[productRepository] GetByID", "queryRowContext", err)
		if err == sql.ErrNoRows {
			return product, domain.ErrNotFound
		}
		return product, err
	}

	return product, nil
}

// LockForUpdate serializes all stock accounting for one product: every
// create/confirm path must acquire this row lock before reading availability.
func (r *productRepository) LockForUpdate(ctx context.Context, id int64, tx *sql.Tx) (domain.Product, error) {
	query := `SELECT id, name, stock_quantity, created_at, updated_at
	FROM products WHERE id = $1 FOR UPDATE`

	var product domain.Product
	err := tx.QueryRowContext(ctx, query, id).Scan(&product.ID, &product.Name,
		&product.StockQuantity, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		slog.ErrorContext(ctx, "[productRepository] LockForUpdate", "queryRowContext", err)
		if err == sql.ErrNoRows {
			return product, domain.ErrNotFound
		}
		return product, err
	}

	return product, nil
}

func (r *productRepository) UpdateStockQuantity(ctx context.Context, id, quantity int64, tx *sql.Tx) error {
	query := `UPDATE products SET stock_quantity = $1, updated_at = NOW() WHERE id = $2`
	_, err := tx.ExecContext(ctx, query, quantity, id)
	if err != nil {
		slog.ErrorContext(ctx, "[productRepository] UpdateStockQuantity", "execContext", err)
		return err
	}

	return nil
}

func (r *productRepository) WithTransaction(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		slog.ErrorContext(ctx, "[productRepository] WithTransaction", "beginTx", err)
		return err
	}

	if err := fn(ctx, tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			slog.ErrorContext(ctx, "[productRepository] WithTransaction", "rollback", rollbackErr)
			return err
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		slog.ErrorContext(ctx, "[productRepository] WithTransaction", "commit", err)
		return err
	}

	return nil
}
