package usecase

import (
	"context"
	"log/slog"

	"stock-reservation-service/app/domain"
)

type availabilityUsecase struct {
	productRepo     domain.ProductRepository
	reservationRepo domain.ReservationRepository
}

func NewAvailabilityUsecase(productRepo domain.ProductRepository, reservationRepo domain.ReservationRepository) domain.AvailabilityUsecase {
	return &availabilityUsecase{productRepo, reservationRepo}
}

// GetAvailableStock reports physical stock minus active holds, clamped at
// zero. The clamp is for reporting only; the row lock taken at reservation
// creation is what actually prevents overselling.
func (u *availabilityUsecase) GetAvailableStock(ctx context.Context, productID int64) (domain.AvailableStock, error) {
	product, err := u.productRepo.GetByID(ctx, productID)
	if err != nil {
		slog.ErrorContext(ctx, "[availabilityUsecase] GetAvailableStock", "getProduct", err)
		return domain.AvailableStock{}, err
	}

	reserved, err := u.reservationRepo.SumActiveByProductID(ctx, productID, nil)
	if err != nil {
		slog.ErrorContext(ctx, "[availabilityUsecase] GetAvailableStock", "sumActive", err)
		return domain.AvailableStock{}, err
	}

	available := product.StockQuantity - reserved
	if available < 0 {
		available = 0
	}

	return domain.AvailableStock{
		ProductID:      productID,
		StockQuantity:  product.StockQuantity,
		Reserved:       reserved,
		AvailableStock: available,
	}, nil
}

func (u *availabilityUsecase) GetReservedQuantity(ctx context.Context, productID int64) (int64, error) {
	if _, err := u.productRepo.GetByID(ctx, productID); err != nil {
		slog.ErrorContext(ctx, "[availabilityUsecase] GetReservedQuantity", "getProduct", err)
		return 0, err
	}

	reserved, err := u.reservationRepo.SumActiveByProductID(ctx, productID, nil)
	if err != nil {
		slog.ErrorContext(ctx, "[availabilityUsecase] GetReservedQuantity", "sumActive", err)
		return 0, err
	}

	return reserved, nil
}

func (u *availabilityUsecase) HasAvailableStock(ctx context.Context, productID, quantity int64) (bool, error) {
	available, err := u.GetAvailableStock(ctx, productID)
	if err != nil {
		return false, err
	}
	return available.AvailableStock >= quantity, nil
}

func (u *availabilityUsecase) GetProductReservations(ctx context.Context, productID int64) ([]domain.StockReservation, error) {
	if _, err := u.productRepo.GetByID(ctx, productID); err != nil {
		slog.ErrorContext(ctx, "[availabilityUsecase] GetProductReservations", "getProduct", err)
		return nil, err
	}

	reservations, err := u.reservationRepo.GetByProductID(ctx, productID)
	if err != nil {
		slog.ErrorContext(ctx, "[availabilityUsecase] GetProductReservations", "getByProductID", err)
		return nil, err
	}

	return reservations, nil
}

func (u *availabilityUsecase) GetReservationStats(ctx context.Context) (domain.ReservationStats, error) {
	stats, err := u.reservationRepo.CountByStatus(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "[availabilityUsecase] GetReservationStats", "countByStatus", err)
		return domain.ReservationStats{}, err
	}

	return stats, nil
}
