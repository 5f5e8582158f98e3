package broker

import (
	"context"
	"encoding/json"
	"log/slog"

	"stock-reservation-service/app/domain"

	"github.com/nats-io/nats.go/jetstream"
)

type reservationBroker struct {
	js jetstream.JetStream
}

func NewReservationBrokerPublisher(stream jetstream.JetStream) domain.BrokerPublisher {
	return &reservationBroker{
		js: stream,
	}
}

func (b *reservationBroker) PublishStockAvailable(ctx context.Context, data domain.StockMessage) error {
	msg, err := json.Marshal(data)
	if err != nil {
		slog.ErrorContext(ctx, "[reservationBroker] PublishStockAvailable", "json.Marshal", err)
		return err
	}

	if _, err = b.js.Publish(ctx, "stock.available", msg); err != nil {
		slog.ErrorContext(ctx, "[reservationBroker] PublishStockAvailable", "Publish", err)
		return err
	}

	return nil
}

func (b *reservationBroker) PublishReservationEvent(ctx context.Context, data domain.ReservationMessage) error {
	msg, err := json.Marshal(data)
	if err != nil {
		slog.ErrorContext(ctx, "[reservationBroker] PublishReservationEvent", "json.Marshal", err)
		return err
	}

	if _, err = b.js.Publish(ctx, "stock.reservation."+string(data.Status), msg); err != nil {
		slog.ErrorContext(ctx, "[reservationBroker] PublishReservationEvent", "Publish", err)
		return err
	}

	return nil
}
