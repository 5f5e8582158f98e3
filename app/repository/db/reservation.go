package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"stock-reservation-service/app/domain"
)

type reservationRepository struct {
	conn *sql.DB
}

func NewReservationRepository(db *sql.DB) domain.ReservationRepository {
	return &reservationRepository{db}
}

const reservationColumns = `id, product_id, quantity, status, order_id, user_id, session_id, expires_at, metadata, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (domain.StockReservation, error) {
	var (
		r        domain.StockReservation
		metadata []byte
	)
	err := row.Scan(&r.ID, &r.ProductID, &r.Quantity, &r.Status, &r.OrderID,
		&r.UserID, &r.SessionID, &r.ExpiresAt, &metadata, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
			return r, err
		}
	}
	return r, nil
}

func (r *reservationRepository) Create(ctx context.Context, reservation *domain.StockReservation, tx *sql.Tx) error {
	metadata := reservation.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] Create", "marshalMetadata", err)
		return err
	}

	query := `INSERT INTO stock_reservations (product_id, quantity, status, order_id, user_id, session_id, expires_at, metadata)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id, created_at, updated_at`

	err = tx.QueryRowContext(ctx, query,
		reservation.ProductID,
		reservation.Quantity,
		reservation.Status,
		reservation.OrderID,
		reservation.UserID,
		reservation.SessionID,
		reservation.ExpiresAt,
		metadataJSON,
	).Scan(&reservation.ID, &reservation.CreatedAt, &reservation.UpdatedAt)
	if err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] Create", "queryRowContext", err)
		return err
	}

	return nil
}

func (r *reservationRepository) GetByID(ctx context.Context, id int64) (domain.StockReservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM stock_reservations WHERE id = $1`

	reservation, err := scanReservation(r.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] GetByID", "queryRowContext", err)
		if err == sql.ErrNoRows {
			return reservation, domain.ErrNotFound
		}
		return reservation, err
	}

	return reservation, nil
}

func (r *reservationRepository) GetByIDForUpdate(ctx context.Context, id int64, tx *sql.Tx) (domain.StockReservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM stock_reservations WHERE id = $1 FOR UPDATE`

	reservation, err := scanReservation(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] GetByIDForUpdate", "queryRowContext", err)
		if err == sql.ErrNoRows {
			return reservation, domain.ErrNotFound
		}
		return reservation, err
	}

	return reservation, nil
}

func (r *reservationRepository) GetByProductID(ctx context.Context, productID int64) ([]domain.StockReservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM stock_reservations
	WHERE product_id = $1 ORDER BY created_at DESC`

	rows, err := r.conn.QueryContext(ctx, query, productID)
	if err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] GetByProductID", "queryContext", err)
		return nil, err
	}
	defer rows.Close()

	var reservations []domain.StockReservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			slog.ErrorContext(ctx, "[reservationRepository] GetByProductID", "scan", err)
			return nil, err
		}
		reservations = append(reservations, reservation)
	}

	if err := rows.Err(); err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] GetByProductID", "rowError", err)
		return nil, err
	}

	return reservations, nil
}

func (r *reservationRepository) GetActiveByOrderID(ctx context.Context, orderID int64) ([]domain.StockReservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM stock_reservations
	WHERE order_id = $1 AND status = 'active' ORDER BY id`

	rows, err := r.conn.QueryContext(ctx, query, orderID)
	if err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] GetActiveByOrderID", "queryContext", err)
		return nil, err
	}
	defer rows.Close()

	var reservations []domain.StockReservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			slog.ErrorContext(ctx, "[reservationRepository] GetActiveByOrderID", "scan", err)
			return nil, err
		}
		reservations = append(reservations, reservation)
	}

	if err := rows.Err(); err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] GetActiveByOrderID", "rowError", err)
		return nil, err
	}

	return reservations, nil
}

// SumActiveByProductID reads through tx when one is given so availability
// computed under the product row lock sees every committed reservation.
func (r *reservationRepository) SumActiveByProductID(ctx context.Context, productID int64, tx *sql.Tx) (int64, error) {
	query := `SELECT COALESCE(SUM(quantity), 0) FROM stock_reservations
	WHERE product_id = $1 AND status = 'active'`

	var row rowScanner
	if tx != nil {
		row = tx.QueryRowContext(ctx, query, productID)
	} else {
		row = r.conn.QueryRowContext(ctx, query, productID)
	}

	var total int64
	if err := row.Scan(&total); err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] SumActiveByProductID", "queryRowContext", err)
		return 0, err
	}

	return total, nil
}

func (r *reservationRepository) UpdateStatus(ctx context.Context, id int64, status domain.ReservationStatus, tx *sql.Tx) error {
	query := `UPDATE stock_reservations SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := tx.ExecContext(ctx, query, status, id)
	if err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] UpdateStatus", "execContext", err)
		return err
	}
	return nil
}

func (r *reservationRepository) UpdateExpiresAt(ctx context.Context, id int64, expiresAt time.Time, tx *sql.Tx) error {
	query := `UPDATE stock_reservations SET expires_at = $1, updated_at = NOW() WHERE id = $2`
	_, err := tx.ExecContext(ctx, query, expiresAt, id)
	if err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] UpdateExpiresAt", "execContext", err)
		return err
	}
	return nil
}

// ExpireDue transitions in one conditional statement so a reservation
// confirmed or cancelled concurrently is never double-transitioned.
func (r *reservationRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE stock_reservations SET status = 'expired', updated_at = NOW()
	WHERE status = 'active' AND expires_at <= $1`

	res, err := r.conn.ExecContext(ctx, query, now)
	if err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] ExpireDue", "execContext", err)
		return 0, err
	}

	expired, err := res.RowsAffected()
	if err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] ExpireDue", "rowsAffected", err)
		return 0, err
	}

	return expired, nil
}

func (r *reservationRepository) CountByStatus(ctx context.Context) (domain.ReservationStats, error) {
	query := `SELECT status, COUNT(*) FROM stock_reservations GROUP BY status`

	var stats domain.ReservationStats
	rows, err := r.conn.QueryContext(ctx, query)
	if err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] CountByStatus", "queryContext", err)
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status domain.ReservationStatus
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			slog.ErrorContext(ctx, "[reservationRepository] CountByStatus", "scan", err)
			return stats, err
		}
		switch status {
		case domain.ReservationStatusActive:
			stats.Active = count
		case domain.ReservationStatusConfirmed:
			stats.Confirmed = count
		case domain.ReservationStatusCancelled:
			stats.Cancelled = count
		case domain.ReservationStatusExpired:
			stats.Expired = count
		}
	}

	if err := rows.Err(); err != nil {
		slog.ErrorContext(ctx, "[reservationRepository] CountByStatus", "rowError", err)
		return stats, err
	}

	return stats, nil
}
