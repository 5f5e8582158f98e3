package usecase

import (
	"context"
	"database/sql"
	"time"

	"stock-reservation-service/app/domain"
)

// In-memory store shared by the fake repositories so usecase tests can
// exercise the engine without Postgres.
type fakeStore struct {
	products      map[int64]domain.Product
	reservations  map[int64]domain.StockReservation
	nextProductID int64
	nextID        int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:     make(map[int64]domain.Product),
		reservations: make(map[int64]domain.StockReservation),
	}
}

func (s *fakeStore) addProduct(id int64, stock int64) {
	s.products[id] = domain.Product{ID: id, Name: "product", StockQuantity: stock}
	if id > s.nextProductID {
		s.nextProductID = id
	}
}

type fakeProductRepo struct {
	s *fakeStore
}

func (r *fakeProductRepo) Create(_ context.Context, product *domain.Product) error {
	r.s.nextProductID++
	product.ID = r.s.nextProductID
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt
	r.s.products[product.ID] = *product
	return nil
}

func (r *fakeProductRepo) GetByID(_ context.Context, id int64) (domain.Product, error) {
	product, ok := r.s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return product, nil
}

func (r *fakeProductRepo) LockForUpdate(ctx context.Context, id int64, _ *sql.Tx) (domain.Product, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeProductRepo) UpdateStockQuantity(_ context.Context, id, quantity int64, _ *sql.Tx) error {
	product, ok := r.s.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	product.StockQuantity = quantity
	r.s.products[id] = product
	return nil
}

func (r *fakeProductRepo) WithTransaction(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	return fn(ctx, nil)
}

type fakeReservationRepo struct {
	s *fakeStore
}

func (r *fakeReservationRepo) Create(_ context.Context, reservation *domain.StockReservation, _ *sql.Tx) error {
	r.s.nextID++
	reservation.ID = r.s.nextID
	reservation.CreatedAt = time.Now()
	reservation.UpdatedAt = reservation.CreatedAt
	r.s.reservations[reservation.ID] = *reservation
	return nil
}

func (r *fakeReservationRepo) GetByID(_ context.Context, id int64) (domain.StockReservation, error) {
	reservation, ok := r.s.reservations[id]
	if !ok {
		return domain.StockReservation{}, domain.ErrNotFound
	}
	return reservation, nil
}

func (r *fakeReservationRepo) GetByIDForUpdate(ctx context.Context, id int64, _ *sql.Tx) (domain.StockReservation, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeReservationRepo) GetByProductID(_ context.Context, productID int64) ([]domain.StockReservation, error) {
	var out []domain.StockReservation
	for _, reservation := range r.s.reservations {
		if reservation.ProductID == productID {
			out = append(out, reservation)
		}
	}
	return out, nil
}

func (r *fakeReservationRepo) GetActiveByOrderID(_ context.Context, orderID int64) ([]domain.StockReservation, error) {
	var out []domain.StockReservation
	for _, reservation := range r.s.reservations {
		if reservation.OrderID != nil && *reservation.OrderID == orderID && reservation.Status == domain.ReservationStatusActive {
			out = append(out, reservation)
		}
	}
	return out, nil
}

func (r *fakeReservationRepo) SumActiveByProductID(_ context.Context, productID int64, _ *sql.Tx) (int64, error) {
	var total int64
	for _, reservation := range r.s.reservations {
		if reservation.ProductID == productID && reservation.Status == domain.ReservationStatusActive {
			total += reservation.Quantity
		}
	}
	return total, nil
}

func (r *fakeReservationRepo) UpdateStatus(_ context.Context, id int64, status domain.ReservationStatus, _ *sql.Tx) error {
	reservation, ok := r.s.reservations[id]
	if !ok {
		return domain.ErrNotFound
	}
	reservation.Status = status
	r.s.reservations[id] = reservation
	return nil
}

func (r *fakeReservationRepo) UpdateExpiresAt(_ context.Context, id int64, expiresAt time.Time, _ *sql.Tx) error {
	reservation, ok := r.s.reservations[id]
	if !ok {
		return domain.ErrNotFound
	}
	reservation.ExpiresAt = expiresAt
	r.s.reservations[id] = reservation
	return nil
}

func (r *fakeReservationRepo) ExpireDue(_ context.Context, now time.Time) (int64, error) {
	var expired int64
	for id, reservation := range r.s.reservations {
		if reservation.Status == domain.ReservationStatusActive && !reservation.ExpiresAt.After(now) {
			reservation.Status = domain.ReservationStatusExpired
			r.s.reservations[id] = reservation
			expired++
		}
	}
	return expired, nil
}

func (r *fakeReservationRepo) CountByStatus(_ context.Context) (domain.ReservationStats, error) {
	var stats domain.ReservationStats
	for _, reservation := range r.s.reservations {
		switch reservation.Status {
		case domain.ReservationStatusActive:
			stats.Active++
		case domain.ReservationStatusConfirmed:
			stats.Confirmed++
		case domain.ReservationStatusCancelled:
			stats.Cancelled++
		case domain.ReservationStatusExpired:
			stats.Expired++
		}
	}
	return stats, nil
}

type fakePublisher struct {
	stockMessages       []domain.StockMessage
	reservationMessages []domain.ReservationMessage
}

func (p *fakePublisher) PublishStockAvailable(_ context.Context, data domain.StockMessage) error {
	p.stockMessages = append(p.stockMessages, data)
	return nil
}

func (p *fakePublisher) PublishReservationEvent(_ context.Context, data domain.ReservationMessage) error {
	p.reservationMessages = append(p.reservationMessages, data)
	return nil
}
