package usecase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stock-reservation-service/app/domain"
	"stock-reservation-service/config"
	"stock-reservation-service/pkg/clock"
)

type reservationUsecase struct {
	productRepo     domain.ProductRepository
	reservationRepo domain.ReservationRepository
	publisher       domain.BrokerPublisher
	clock           clock.Clock
	cfg             *config.Config
}

func NewReservationUsecase(
	productRepo domain.ProductRepository,
	reservationRepo domain.ReservationRepository,
	publisher domain.BrokerPublisher,
	clk clock.Clock,
	cfg *config.Config) domain.ReservationUsecase {
	return &reservationUsecase{productRepo, reservationRepo, publisher, clk, cfg}
}

func (u *reservationUsecase) CreateReservation(ctx context.Context, req domain.ReservationCreateRequest) (domain.StockReservation, error) {
	if req.Quantity <= 0 {
		return domain.StockReservation{}, fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}
	if req.OrderID == nil && req.UserID == nil && req.SessionID == nil {
		return domain.StockReservation{}, fmt.Errorf("%w: at least one of order_id, user_id, session_id is required", domain.ErrValidation)
	}

	ttl := u.cfg.Reservation.TTLMinutes
	if req.ExpirationMinutes > 0 {
		ttl = req.ExpirationMinutes
	}
	now := u.clock.Now()

	var (
		reservation    domain.StockReservation
		availableAfter int64
	)
	if err := u.productRepo.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		// Lock the product row for update; all stock accounting for this
		// product serializes on it.
		product, err := u.productRepo.LockForUpdate(ctx, req.ProductID, tx)
		if err != nil {
			slog.ErrorContext(ctx, "[reservationUsecase] CreateReservation", "lockProduct", err)
			return err
		}

		reserved, err := u.reservationRepo.SumActiveByProductID(ctx, product.ID, tx)
		if err != nil {
			slog.ErrorContext(ctx, "[reservationUsecase] CreateReservation", "sumActive", err)
			return err
		}

		available := product.StockQuantity - reserved
		if available < 0 {
			available = 0
		}
		if available < req.Quantity {
			return &domain.InsufficientStockError{
				ProductID: product.ID,
				Requested: req.Quantity,
				Available: available,
			}
		}

		reservation = domain.StockReservation{
			ProductID: product.ID,
			Quantity:  req.Quantity,
			Status:    domain.ReservationStatusActive,
			OrderID:   req.OrderID,
			UserID:    req.UserID,
			SessionID: req.SessionID,
			ExpiresAt: now.Add(time.Duration(ttl) * time.Minute),
			Metadata:  req.Metadata,
		}
		if err := u.reservationRepo.Create(ctx, &reservation, tx); err != nil {
			slog.ErrorContext(ctx, "[reservationUsecase] CreateReservation", "createReservation", err)
			return err
		}

		availableAfter = available - req.Quantity
		return nil
	}); err != nil {
		return domain.StockReservation{}, err
	}

	u.publishStockAvailable(ctx, reservation.ProductID, availableAfter)
	u.publishReservationEvent(ctx, reservation)

	slog.InfoContext(ctx, "[reservationUsecase] CreateReservation",
		"reservationID", reservation.ID, "productID", reservation.ProductID, "quantity", reservation.Quantity)
	return reservation, nil
}

func (u *reservationUsecase) ConfirmReservation(ctx context.Context, id int64) (domain.StockReservation, error) {
	return u.transitionReservation(ctx, id, domain.ReservationStatusConfirmed)
}

func (u *reservationUsecase) CancelReservation(ctx context.Context, id int64) (domain.StockReservation, error) {
	return u.transitionReservation(ctx, id, domain.ReservationStatusCancelled)
}

// transitionReservation moves an active reservation into a terminal state.
// Confirmation additionally decrements the product's physical stock; both
// writes share one transaction so they commit together or not at all.
func (u *reservationUsecase) transitionReservation(ctx context.Context, id int64, target domain.ReservationStatus) (domain.StockReservation, error) {
	current, err := u.reservationRepo.GetByID(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "[reservationUsecase] transitionReservation", "getReservation", err)
		return domain.StockReservation{}, err
	}

	var (
		reservation    domain.StockReservation
		availableAfter int64
	)
	if err := u.productRepo.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		// Product lock first, reservation lock second. Same order everywhere
		// to avoid deadlocks.
		product, err := u.productRepo.LockForUpdate(ctx, current.ProductID, tx)
		if err != nil {
			slog.ErrorContext(ctx, "[reservationUsecase] transitionReservation", "lockProduct", err)
			return err
		}

		reservation, err = u.reservationRepo.GetByIDForUpdate(ctx, id, tx)
		if err != nil {
			slog.ErrorContext(ctx, "[reservationUsecase] transitionReservation", "lockReservation", err)
			return err
		}

		if reservation.Status != domain.ReservationStatusActive {
			return fmt.Errorf("%w: reservation %d is %s", domain.ErrInvalidState, id, reservation.Status)
		}

		if target == domain.ReservationStatusConfirmed {
			if err := u.productRepo.UpdateStockQuantity(ctx, product.ID, product.StockQuantity-reservation.Quantity, tx); err != nil {
				slog.ErrorContext(ctx, "[reservationUsecase] transitionReservation", "updateStockQuantity", err)
				return err
			}
			product.StockQuantity -= reservation.Quantity
		}

		if err := u.reservationRepo.UpdateStatus(ctx, id, target, tx); err != nil {
			slog.ErrorContext(ctx, "[reservationUsecase] transitionReservation", "updateStatus", err)
			return err
		}
		reservation.Status = target

		reserved, err := u.reservationRepo.SumActiveByProductID(ctx, product.ID, tx)
		if err != nil {
			slog.ErrorContext(ctx, "[reservationUsecase] transitionReservation", "sumActive", err)
			return err
		}
		availableAfter = product.StockQuantity - reserved
		if availableAfter < 0 {
			availableAfter = 0
		}
		return nil
	}); err != nil {
		return domain.StockReservation{}, err
	}

	u.publishStockAvailable(ctx, reservation.ProductID, availableAfter)
	u.publishReservationEvent(ctx, reservation)

	slog.InfoContext(ctx, "[reservationUsecase] transitionReservation",
		"reservationID", id, "status", target)
	return reservation, nil
}

func (u *reservationUsecase) ExtendExpiration(ctx context.Context, id int64, req domain.ExtendExpirationRequest) (domain.StockReservation, error) {
	if req.Minutes <= 0 {
		return domain.StockReservation{}, fmt.Errorf("%w: minutes must be positive", domain.ErrValidation)
	}

	// Absolute, not additive: the new deadline is now + minutes.
	expiresAt := u.clock.Now().Add(time.Duration(req.Minutes) * time.Minute)

	var reservation domain.StockReservation
	if err := u.productRepo.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		reservation, err = u.reservationRepo.GetByIDForUpdate(ctx, id, tx)
		if err != nil {
			slog.ErrorContext(ctx, "[reservationUsecase] ExtendExpiration", "lockReservation", err)
			return err
		}

		if reservation.Status != domain.ReservationStatusActive {
			return fmt.Errorf("%w: reservation %d is %s", domain.ErrInvalidState, id, reservation.Status)
		}

		if err := u.reservationRepo.UpdateExpiresAt(ctx, id, expiresAt, tx); err != nil {
			slog.ErrorContext(ctx, "[reservationUsecase] ExtendExpiration", "updateExpiresAt", err)
			return err
		}
		reservation.ExpiresAt = expiresAt
		return nil
	}); err != nil {
		return domain.StockReservation{}, err
	}

	slog.InfoContext(ctx, "[reservationUsecase] ExtendExpiration",
		"reservationID", id, "expiresAt", expiresAt)
	return reservation, nil
}

func (u *reservationUsecase) ReserveStockForOrder(ctx context.Context, orderID int64, req domain.OrderReservationRequest) (domain.OrderReservationResult, error) {
	if len(req.Items) == 0 {
		return domain.OrderReservationResult{}, fmt.Errorf("%w: order has no line items", domain.ErrValidation)
	}

	result := domain.OrderReservationResult{OrderID: orderID}
	for _, item := range req.Items {
		reservation, err := u.CreateReservation(ctx, domain.ReservationCreateRequest{
			ProductID:         item.ProductID,
			Quantity:          item.Quantity,
			OrderID:           &orderID,
			UserID:            req.UserID,
			SessionID:         req.SessionID,
			ExpirationMinutes: req.ExpirationMinutes,
			Metadata:          item.Metadata,
		})
		if err != nil {
			failure := domain.OrderItemFailure{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Reason:    err.Error(),
			}
			var insufficient *domain.InsufficientStockError
			if errors.As(err, &insufficient) {
				failure.Available = insufficient.Available
			}
			result.Failures = append(result.Failures, failure)
			continue
		}
		result.Reservations = append(result.Reservations, reservation)
	}

	// All-or-nothing at the order level: a single failed line item rolls
	// back every hold created in this invocation.
	if len(result.Failures) > 0 {
		for _, reservation := range result.Reservations {
			if _, err := u.CancelReservation(ctx, reservation.ID); err != nil {
				slog.ErrorContext(ctx, "[reservationUsecase] ReserveStockForOrder",
					"rollbackCancel", err, "reservationID", reservation.ID)
			}
		}
		result.Reservations = nil
		return result, fmt.Errorf("%w: %d of %d order items could not be reserved",
			domain.ErrInsufficientStock, len(result.Failures), len(req.Items))
	}

	slog.InfoContext(ctx, "[reservationUsecase] ReserveStockForOrder",
		"orderID", orderID, "reservations", len(result.Reservations))
	return result, nil
}

func (u *reservationUsecase) ConfirmOrderReservations(ctx context.Context, orderID int64) ([]domain.ReservationOutcome, error) {
	return u.transitionOrderReservations(ctx, orderID, domain.ReservationStatusConfirmed)
}

func (u *reservationUsecase) CancelOrderReservations(ctx context.Context, orderID int64) ([]domain.ReservationOutcome, error) {
	return u.transitionOrderReservations(ctx, orderID, domain.ReservationStatusCancelled)
}

func (u *reservationUsecase) transitionOrderReservations(ctx context.Context, orderID int64, target domain.ReservationStatus) ([]domain.ReservationOutcome, error) {
	reservations, err := u.reservationRepo.GetActiveByOrderID(ctx, orderID)
	if err != nil {
		slog.ErrorContext(ctx, "[reservationUsecase] transitionOrderReservations", "getActiveByOrderID", err)
		return nil, err
	}
	if len(reservations) == 0 {
		return nil, fmt.Errorf("%w: no active reservations for order %d", domain.ErrNotFound, orderID)
	}

	// One reservation failing must not abort the rest of the batch.
	outcomes := make([]domain.ReservationOutcome, 0, len(reservations))
	for _, reservation := range reservations {
		outcome := domain.ReservationOutcome{ReservationID: reservation.ID, Success: true}
		if _, err := u.transitionReservation(ctx, reservation.ID, target); err != nil {
			slog.ErrorContext(ctx, "[reservationUsecase] transitionOrderReservations",
				"transition", err, "reservationID", reservation.ID)
			outcome.Success = false
			outcome.Error = err.Error()
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

func (u *reservationUsecase) publishStockAvailable(ctx context.Context, productID, available int64) {
	if err := u.publisher.PublishStockAvailable(ctx, domain.StockMessage{
		ProductID: productID,
		Available: available,
	}); err != nil {
		slog.WarnContext(ctx, "[reservationUsecase] publishStockAvailable", "publish", err)
	}
}

func (u *reservationUsecase) publishReservationEvent(ctx context.Context, reservation domain.StockReservation) {
	if err := u.publisher.PublishReservationEvent(ctx, domain.ReservationMessage{
		ReservationID: reservation.ID,
		ProductID:     reservation.ProductID,
		Quantity:      reservation.Quantity,
		OrderID:       reservation.OrderID,
		Status:        reservation.Status,
	}); err != nil {
		slog.WarnContext(ctx, "[reservationUsecase] publishReservationEvent", "publish", err)
	}
}
