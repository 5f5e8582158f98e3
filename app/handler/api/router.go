package handler

import (
	"stock-reservation-service/app/middleware"
	"stock-reservation-service/config"

	"github.com/gofiber/fiber/v2"
)

func SetupRouter(app *fiber.App, reservationHandler *ReservationHandler, availabilityHandler *AvailabilityHandler, productHandler *ProductHandler, cfg *config.Config) {

	// Read surface for admin dashboards and checkout pre-validation.
	api := app.Group("/stock-service").Use(middleware.Auth(cfg.Jwt.SecretKey))

	api.Get("/products/:product_id/availability", availabilityHandler.GetAvailability)
	api.Get("/products/:product_id/reservations", availabilityHandler.GetProductReservations)
	api.Get("/reservations/stats", availabilityHandler.GetStats)

	// Service-to-service surface: checkout workflow, scheduler, ops tooling.
	internal := app.Group("/internal/stock-service").Use(middleware.AuthInternal(cfg))

	internal.Post("/products", productHandler.Create)
	internal.Put("/products/:product_id/stock", productHandler.SetStock)

	internal.Post("/reservations", reservationHandler.Create)
	internal.Post("/reservations/:id/confirm", reservationHandler.Confirm)
	internal.Post("/reservations/:id/cancel", reservationHandler.Cancel)
	internal.Post("/reservations/:id/extend", reservationHandler.Extend)
	internal.Post("/reservations/sweep", reservationHandler.Sweep)

	internal.Post("/orders/:order_id/reservations", reservationHandler.ReserveForOrder)
	internal.Post("/orders/:order_id/reservations/confirm", reservationHandler.ConfirmOrder)
	internal.Post("/orders/:order_id/reservations/cancel", reservationHandler.CancelOrder)
}
