package usecase

import (
	"context"
	"testing"
	"time"

	"stock-reservation-service/app/domain"
	"stock-reservation-service/config"
	"stock-reservation-service/pkg/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(store *fakeStore) (domain.ReservationUsecase, *fakePublisher) {
	publisher := &fakePublisher{}
	cfg := &config.Config{Reservation: config.ReservationConfig{TTLMinutes: 30}}
	engine := NewReservationUsecase(
		&fakeProductRepo{store},
		&fakeReservationRepo{store},
		publisher,
		clock.NewFixed(testNow),
		cfg,
	)
	return engine, publisher
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(v string) *string { return &v }

func TestCreateReservation(t *testing.T) {
	t.Run("creates active reservation with default ttl", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct(1, 10)
		engine, publisher := newTestEngine(store)

		reservation, err := engine.CreateReservation(context.Background(), domain.ReservationCreateRequest{
			ProductID: 1,
			Quantity:  3,
			SessionID: strPtr("sess-1"),
			Metadata:  map[string]any{"cart_item_id": float64(42)},
		})
		require.NoError(t, err)

		assert.Equal(t, domain.ReservationStatusActive, reservation.Status)
		assert.Equal(t, testNow.Add(30*time.Minute), reservation.ExpiresAt)
		assert.Equal(t, int64(3), reservation.Quantity)
		assert.Equal(t, map[string]any{"cart_item_id": float64(42)}, reservation.Metadata)

		// Creation only writes the ledger, never product stock.
		product := store.products[1]
		assert.Equal(t, int64(10), product.StockQuantity)

		require.Len(t, publisher.stockMessages, 1)
		assert.Equal(t, int64(7), publisher.stockMessages[0].Available)
	})

	t.Run("honors caller expiration minutes", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct(1, 10)
		engine, _ := newTestEngine(store)

		reservation, err := engine.CreateReservation(context.Background(), domain.ReservationCreateRequest{
			ProductID:         1,
			Quantity:          1,
			UserID:            int64Ptr(7),
			ExpirationMinutes: 5,
		})
		require.NoError(t, err)
		assert.Equal(t, testNow.Add(5*time.Minute), reservation.ExpiresAt)
	})

	t.Run("rejects insufficient stock and reports available", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct(1, 5)
		engine, _ := newTestEngine(store)

		_, err := engine.CreateReservation(context.Background(), domain.ReservationCreateRequest{
			ProductID: 1, Quantity: 3, SessionID: strPtr("a"),
		})
		require.NoError(t, err)

		_, err = engine.CreateReservation(context.Background(), domain.ReservationCreateRequest{
			ProductID: 1, Quantity: 3, SessionID: strPtr("b"),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)

		var insufficient *domain.InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, int64(2), insufficient.Available)
		assert.Equal(t, int64(3), insufficient.Requested)

		// No partial reservation was created.
		assert.Len(t, store.reservations, 1)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct(1, 5)
		engine, _ := newTestEngine(store)

		_, err := engine.CreateReservation(context.Background(), domain.ReservationCreateRequest{
			ProductID: 1, Quantity: 0, SessionID: strPtr("a"),
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("rejects missing holder identifiers", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct(1, 5)
		engine, _ := newTestEngine(store)

		_, err := engine.CreateReservation(context.Background(), domain.ReservationCreateRequest{
			ProductID: 1, Quantity: 1,
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("unknown product", func(t *testing.T) {
		store := newFakeStore()
		engine, _ := newTestEngine(store)

		_, err := engine.CreateReservation(context.Background(), domain.ReservationCreateRequest{
			ProductID: 99, Quantity: 1, SessionID: strPtr("a"),
		})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestConfirmReservation(t *testing.T) {
	t.Run("decrements stock exactly once", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct(1, 5)
		engine, _ := newTestEngine(store)

		reservation, err := engine.CreateReservation(context.Background(), domain.ReservationCreateRequest{
			ProductID: 1, Quantity: 3, SessionID: strPtr("a"),
		})
		require.NoError(t, err)

		confirmed, err := engine.ConfirmReservation(context.Background(), reservation.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ReservationStatusConfirmed, confirmed.Status)
		assert.Equal(t, int64(2), store.products[1].StockQuantity)

		// Second confirm must fail, never a silent second decrement.
		_, err = engine.ConfirmReservation(context.Background(), reservation.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.Equal(t, int64(2), store.products[1].StockQuantity)
	})

	t.Run("confirm ignores expiry until swept", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct(1, 5)
		engine, _ := newTestEngine(store)

		reservation, err := engine.CreateReservation(context.Background(), domain.ReservationCreateRequest{
			ProductID: 1, Quantity: 2, SessionID: strPtr("a"), ExpirationMinutes: 1,
		})
		require.NoError(t, err)

		// Past its deadline but still active: confirm wins over the sweep.
		store.reservations[reservation.ID] = func() domain.StockReservation {
			r := store.reservations[reservation.ID]
			r.ExpiresAt = testNow.Add(-time.Hour)
			return r
		}()

		_, err = engine.ConfirmReservation(context.Background(), reservation.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), store.products[1].StockQuantity)
	})

	t.Run("not found", func(t *testing.T) {
		store := newFakeStore()
		engine, _ := newTestEngine(store)

		_, err := engine.ConfirmReservation(context.Background(), 42)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestCancelReservation(t *testing.T) {
	t.Run("cancel releases hold without touching stock", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct(1, 5)
		engine, _ := newTestEngine(store)

		reservation, err := engine.CreateReservation(context.Background(), domain.ReservationCreateRequest{
			ProductID: 1, Quantity: 3, SessionID: strPtr("a"),
		})
		require.NoError(t, err)

		cancelled, err := engine.CancelReservation(context.Background(), reservation.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ReservationStatusCancelled, cancelled.Status)
		assert.Equal(t, int64(5), store.products[1].StockQuantity)

		// Freed quantity is reservable again.
		_, err = engine.CreateReservation(context.Background(), domain.ReservationCreateRequest{
			ProductID: 1, Quantity: 5, SessionID: strPtr("b"),
		})
		assert.NoError(t, err)
	})

	t.Run("terminal states are sticky", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct(1, 5)
		engine, _ := newTestEngine(store)

		reservation, err := engine.CreateReservation(context.Background(), domain.ReservationCreateRequest{
			ProductID: 1, Quantity: 3, SessionID: strPtr("a"),
		})
		require.NoError(t, err)

		_, err = engine.ConfirmReservation(context.Background(), reservation.ID)
		require.NoError(t, err)

		_, err = engine.CancelReservation(context.Background(), reservation.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.Equal(t, domain.ReservationStatusConfirmed, store.reservations[reservation.ID].Status)
		assert.Equal(t, int64(2), store.products[1].StockQuantity)
	})
}

// The documented end-to-end sequence: stock 5, reserve 3, second reserve of 3
// fails with available 2, confirm drops stock to 2 while available stays 2.
func TestReservationLifecycleScenario(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, 5)
	engine, _ := newTestEngine(store)
	availability := NewAvailabilityUsecase(&fakeProductRepo{store}, &fakeReservationRepo{store})
	ctx := context.Background()

	first, err := engine.CreateReservation(ctx, domain.ReservationCreateRequest{
		ProductID: 1, Quantity: 3, SessionID: strPtr("a"),
	})
	require.NoError(t, err)

	available, err := availability.GetAvailableStock(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), available.AvailableStock)

	_, err = engine.CreateReservation(ctx, domain.ReservationCreateRequest{
		ProductID: 1, Quantity: 3, SessionID: strPtr("b"),
	})
	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(2), insufficient.Available)

	_, err = engine.ConfirmReservation(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), store.products[1].StockQuantity)

	available, err = availability.GetAvailableStock(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), available.AvailableStock)

	_, err = engine.CancelReservation(ctx, first.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestExtendExpiration(t *testing.T) {
	t.Run("sets absolute deadline", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct(1, 5)
		engine, _ := newTestEngine(store)

		reservation, err := engine.CreateReservation(context.Background(), domain.ReservationCreateRequest{
			ProductID: 1, Quantity: 1, SessionID: strPtr("a"), ExpirationMinutes: 30,
		})
		require.NoError(t, err)

		extended, err := engine.ExtendExpiration(context.Background(), reservation.ID, domain.ExtendExpirationRequest{Minutes: 10})
		require.NoError(t, err)
		// now+10, not old deadline +10.
		assert.Equal(t, testNow.Add(10*time.Minute), extended.ExpiresAt)
	})

	t.Run("rejects non-active reservation", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct(1, 5)
		engine, _ := newTestEngine(store)

		reservation, err := engine.CreateReservation(context.Background(), domain.ReservationCreateRequest{
			ProductID: 1, Quantity: 1, SessionID: strPtr("a"),
		})
		require.NoError(t, err)
		_, err = engine.CancelReservation(context.Background(), reservation.ID)
		require.NoError(t, err)

		_, err = engine.ExtendExpiration(context.Background(), reservation.ID, domain.ExtendExpirationRequest{Minutes: 10})
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

func TestReserveStockForOrder(t *testing.T) {
	t.Run("reserves every line item", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct(1, 5)
		store.addProduct(2, 8)
		engine, _ := newTestEngine(store)

		result, err := engine.ReserveStockForOrder(context.Background(), 100, domain.OrderReservationRequest{
			Items: []domain.OrderLineItem{
				{ProductID: 1, Quantity: 2},
				{ProductID: 2, Quantity: 4},
			},
			UserID: int64Ptr(7),
		})
		require.NoError(t, err)
		require.Len(t, result.Reservations, 2)
		assert.Empty(t, result.Failures)
		for _, reservation := range result.Reservations {
			require.NotNil(t, reservation.OrderID)
			assert.Equal(t, int64(100), *reservation.OrderID)
		}
	})

	t.Run("rolls back created holds when one item fails", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct(1, 5)
		store.addProduct(2, 1)
		engine, _ := newTestEngine(store)

		result, err := engine.ReserveStockForOrder(context.Background(), 100, domain.OrderReservationRequest{
			Items: []domain.OrderLineItem{
				{ProductID: 1, Quantity: 2},
				{ProductID: 2, Quantity: 4},
			},
			UserID: int64Ptr(7),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)

		assert.Empty(t, result.Reservations)
		require.Len(t, result.Failures, 1)
		assert.Equal(t, int64(2), result.Failures[0].ProductID)
		assert.Equal(t, int64(1), result.Failures[0].Available)

		// Final state has zero active reservations for this order.
		active, repoErr := (&fakeReservationRepo{store}).GetActiveByOrderID(context.Background(), 100)
		require.NoError(t, repoErr)
		assert.Empty(t, active)
	})
}

func TestOrderBatchTransitions(t *testing.T) {
	setup := func(t *testing.T) (domain.ReservationUsecase, *fakeStore) {
		store := newFakeStore()
		store.addProduct(1, 5)
		store.addProduct(2, 8)
		engine, _ := newTestEngine(store)

		_, err := engine.ReserveStockForOrder(context.Background(), 100, domain.OrderReservationRequest{
			Items: []domain.OrderLineItem{
				{ProductID: 1, Quantity: 2},
				{ProductID: 2, Quantity: 4},
			},
			UserID: int64Ptr(7),
		})
		require.NoError(t, err)
		return engine, store
	}

	t.Run("confirm decrements stock per item", func(t *testing.T) {
		engine, store := setup(t)

		outcomes, err := engine.ConfirmOrderReservations(context.Background(), 100)
		require.NoError(t, err)
		require.Len(t, outcomes, 2)
		for _, outcome := range outcomes {
			assert.True(t, outcome.Success, "reservation %d", outcome.ReservationID)
		}
		assert.Equal(t, int64(3), store.products[1].StockQuantity)
		assert.Equal(t, int64(4), store.products[2].StockQuantity)
	})

	t.Run("cancel releases stock untouched", func(t *testing.T) {
		engine, store := setup(t)

		outcomes, err := engine.CancelOrderReservations(context.Background(), 100)
		require.NoError(t, err)
		require.Len(t, outcomes, 2)
		assert.Equal(t, int64(5), store.products[1].StockQuantity)
		assert.Equal(t, int64(8), store.products[2].StockQuantity)
	})

	t.Run("no active reservations for order", func(t *testing.T) {
		store := newFakeStore()
		engine, _ := newTestEngine(store)

		_, err := engine.ConfirmOrderReservations(context.Background(), 999)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

// Interleaved create/confirm/cancel against one product never confirms more
// than the starting stock.
func TestNoOverselling(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, 10)
	engine, _ := newTestEngine(store)
	ctx := context.Background()

	var confirmedTotal int64
	for i := 0; i < 20; i++ {
		reservation, err := engine.CreateReservation(ctx, domain.ReservationCreateRequest{
			ProductID: 1, Quantity: 2, SessionID: strPtr("s"),
		})
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrInsufficientStock)
			continue
		}
		switch i % 3 {
		case 0:
			_, err = engine.ConfirmReservation(ctx, reservation.ID)
			require.NoError(t, err)
			confirmedTotal += reservation.Quantity
		case 1:
			_, err = engine.CancelReservation(ctx, reservation.ID)
			require.NoError(t, err)
		}
	}

	assert.LessOrEqual(t, confirmedTotal, int64(10))
	assert.GreaterOrEqual(t, store.products[1].StockQuantity, int64(0))

	var activeTotal int64
	for _, reservation := range store.reservations {
		if reservation.Status == domain.ReservationStatusActive {
			activeTotal += reservation.Quantity
		}
	}
	assert.LessOrEqual(t, activeTotal, store.products[1].StockQuantity)
}
