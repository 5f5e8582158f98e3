package usecase

import (
	"context"
	"log/slog"
)

// CleanExpiredReservations expires every active reservation past its
// deadline. Expiration only stops a hold from counting against
// availability; physical stock is never touched. Invoked by an external
// scheduler, the service does not self-schedule.
func (u *reservationUsecase) CleanExpiredReservations(ctx context.Context) (int64, error) {
	expired, err := u.reservationRepo.ExpireDue(ctx, u.clock.Now())
	if err != nil {
		slog.ErrorContext(ctx, "[reservationUsecase] CleanExpiredReservations", "expireDue", err)
		return 0, err
	}

	if expired > 0 {
		slog.InfoContext(ctx, "[reservationUsecase] CleanExpiredReservations", "expired", expired)
	}
	return expired, nil
}
