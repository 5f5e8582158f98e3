package usecase

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"stock-reservation-service/app/domain"
)

type productUsecase struct {
	productRepo     domain.ProductRepository
	reservationRepo domain.ReservationRepository
	publisher       domain.BrokerPublisher
}

func NewProductUsecase(productRepo domain.ProductRepository, reservationRepo domain.ReservationRepository, publisher domain.BrokerPublisher) domain.ProductUsecase {
	return &productUsecase{productRepo, reservationRepo, publisher}
}

func (u *productUsecase) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	product := domain.Product{
		Name:          req.Name,
		StockQuantity: req.StockQuantity,
	}
	if err := u.productRepo.Create(ctx, &product); err != nil {
		slog.ErrorContext(ctx, "[productUsecase] CreateProduct", "createProduct", err)
		return domain.Product{}, err
	}

	if err := u.publisher.PublishStockAvailable(ctx, domain.StockMessage{
		ProductID: product.ID,
		Available: product.StockQuantity,
	}); err != nil {
		slog.WarnContext(ctx, "[productUsecase] CreateProduct", "publishStockAvailable", err)
	}

	slog.InfoContext(ctx, "[productUsecase] CreateProduct", "productID", product.ID)
	return product, nil
}

// SetStockQuantity adjusts physical stock, holding the same product lock as
// the reservation engine. The new quantity may not drop below what active
// reservations already hold.
func (u *productUsecase) SetStockQuantity(ctx context.Context, productID int64, req domain.SetStockQuantityRequest) error {
	if req.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", domain.ErrValidation)
	}

	var availableAfter int64
	if err := u.productRepo.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := u.productRepo.LockForUpdate(ctx, productID, tx); err != nil {
			slog.ErrorContext(ctx, "[productUsecase] SetStockQuantity", "lockProduct", err)
			return err
		}

		reserved, err := u.reservationRepo.SumActiveByProductID(ctx, productID, tx)
		if err != nil {
			slog.ErrorContext(ctx, "[productUsecase] SetStockQuantity", "sumActive", err)
			return err
		}

		if req.Quantity < reserved {
			return fmt.Errorf("%w: quantity %d below reserved %d", domain.ErrInvalidRequest, req.Quantity, reserved)
		}

		if err := u.productRepo.UpdateStockQuantity(ctx, productID, req.Quantity, tx); err != nil {
			slog.ErrorContext(ctx, "[productUsecase] SetStockQuantity", "updateStockQuantity", err)
			return err
		}

		availableAfter = req.Quantity - reserved
		return nil
	}); err != nil {
		return err
	}

	if err := u.publisher.PublishStockAvailable(ctx, domain.StockMessage{
		ProductID: productID,
		Available: availableAfter,
	}); err != nil {
		slog.WarnContext(ctx, "[productUsecase] SetStockQuantity", "publishStockAvailable", err)
	}

	slog.InfoContext(ctx, "[productUsecase] SetStockQuantity", "productID", productID, "quantity", req.Quantity)
	return nil
}
