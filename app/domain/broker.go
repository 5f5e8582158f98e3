package domain

import "context"

type StockMessage struct {
	ProductID int64 `json:"product_id"`
	Available int64 `json:"available"`
}

type ReservationMessage struct {
	ReservationID int64             `json:"reservation_id"`
	ProductID     int64             `json:"product_id"`
	Quantity      int64             `json:"quantity"`
	OrderID       *int64            `json:"order_id,omitempty"`
	Status        ReservationStatus `json:"status"`
}

type BrokerPublisher interface {
	PublishStockAvailable(ctx context.Context, data StockMessage) error
	PublishReservationEvent(ctx context.Context, data ReservationMessage) error
}
