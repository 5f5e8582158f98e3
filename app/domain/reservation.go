package domain

import (
	"context"
	"database/sql"
	"time"
)

type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusExpired   ReservationStatus = "expired"
)

// IsTerminal reports whether no further status transition is allowed.
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationStatusConfirmed || s == ReservationStatusCancelled || s == ReservationStatusExpired
}

// StockReservation is a time-bounded hold on a quantity of one product.
// Quantity never changes after creation; only ExpiresAt may be moved, and
// only while the reservation is still active.
type StockReservation struct {
	ID        int64             `json:"id"`
	ProductID int64             `json:"product_id"`
	Quantity  int64             `json:"quantity"`
	Status    ReservationStatus `json:"status"` // "active", "confirmed", "cancelled", "expired"
	OrderID   *int64            `json:"order_id,omitempty"`
	UserID    *int64            `json:"user_id,omitempty"`
	SessionID *string           `json:"session_id,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type ReservationCreateRequest struct {
	ProductID         int64          `json:"product_id" validate:"required"`
	Quantity          int64          `json:"quantity" validate:"required,gt=0"`
	OrderID           *int64         `json:"order_id"`
	UserID            *int64         `json:"user_id"`
	SessionID         *string        `json:"session_id"`
	ExpirationMinutes int64          `json:"expiration_minutes" validate:"omitempty,gt=0"`
	Metadata          map[string]any `json:"metadata"`
}

type ExtendExpirationRequest struct {
	Minutes int64 `json:"minutes" validate:"required,gt=0"`
}

type OrderLineItem struct {
	ProductID int64          `json:"product_id" validate:"required"`
	Quantity  int64          `json:"quantity" validate:"required,gt=0"`
	Metadata  map[string]any `json:"metadata"`
}

type OrderReservationRequest struct {
	Items             []OrderLineItem `json:"items" validate:"required,min=1,dive"`
	UserID            *int64          `json:"user_id"`
	SessionID         *string         `json:"session_id"`
	ExpirationMinutes int64           `json:"expiration_minutes" validate:"omitempty,gt=0"`
}

// OrderItemFailure describes one line item that could not be reserved.
type OrderItemFailure struct {
	ProductID int64  `json:"product_id"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
	Reason    string `json:"reason"`
}

// OrderReservationResult is all-or-nothing: Failures is non-empty only when
// Reservations is empty (any created holds were rolled back).
type OrderReservationResult struct {
	OrderID      int64              `json:"order_id"`
	Reservations []StockReservation `json:"reservations,omitempty"`
	Failures     []OrderItemFailure `json:"failures,omitempty"`
}

// ReservationOutcome is the per-reservation result of a batch confirm/cancel.
type ReservationOutcome struct {
	ReservationID int64  `json:"reservation_id"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}

type ReservationStats struct {
	Active    int64 `json:"active"`
	Confirmed int64 `json:"confirmed"`
	Cancelled int64 `json:"cancelled"`
	Expired   int64 `json:"expired"`
}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *StockReservation, tx *sql.Tx) error
	GetByID(ctx context.Context, id int64) (StockReservation, error)
	GetByIDForUpdate(ctx context.Context, id int64, tx *sql.Tx) (StockReservation, error)
	GetByProductID(ctx context.Context, productID int64) ([]StockReservation, error)
	GetActiveByOrderID(ctx context.Context, orderID int64) ([]StockReservation, error)
	SumActiveByProductID(ctx context.Context, productID int64, tx *sql.Tx) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status ReservationStatus, tx *sql.Tx) error
	UpdateExpiresAt(ctx context.Context, id int64, expiresAt time.Time, tx *sql.Tx) error
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
	CountByStatus(ctx context.Context) (ReservationStats, error)
}

type ReservationUsecase interface {
	CreateReservation(ctx context.Context, req ReservationCreateRequest) (StockReservation, error)
	ConfirmReservation(ctx context.Context, id int64) (StockReservation, error)
	CancelReservation(ctx context.Context, id int64) (StockReservation, error)
	ExtendExpiration(ctx context.Context, id int64, req ExtendExpirationRequest) (StockReservation, error)
	ReserveStockForOrder(ctx context.Context, orderID int64, req OrderReservationRequest) (OrderReservationResult, error)
	ConfirmOrderReservations(ctx context.Context, orderID int64) ([]ReservationOutcome, error)
	CancelOrderReservations(ctx context.Context, orderID int64) ([]ReservationOutcome, error)
	CleanExpiredReservations(ctx context.Context) (int64, error)
}

type AvailabilityUsecase interface {
	GetAvailableStock(ctx context.Context, productID int64) (AvailableStock, error)
	GetReservedQuantity(ctx context.Context, productID int64) (int64, error)
	HasAvailableStock(ctx context.Context, productID, quantity int64) (bool, error)
	GetProductReservations(ctx context.Context, productID int64) ([]StockReservation, error)
	GetReservationStats(ctx context.Context) (ReservationStats, error)
}
