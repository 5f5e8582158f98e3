package handler

import (
	"log/slog"

	"stock-reservation-service/app/domain"
	"stock-reservation-service/app/handler/api/response"

	"github.com/gofiber/fiber/v2"
)

type AvailabilityHandler struct {
	usecase domain.AvailabilityUsecase
}

func NewAvailabilityHandler(usecase domain.AvailabilityUsecase) *AvailabilityHandler {
	return &AvailabilityHandler{
		usecase: usecase,
	}
}

func (h *AvailabilityHandler) GetAvailability(c *fiber.Ctx) error {
	productID, err := paramID(c, "product_id")
	if err != nil {
		slog.ErrorContext(c.Context(), "[availabilityHandler] GetAvailability", "paramID", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	available, err := h.usecase.GetAvailableStock(c.Context(), productID)
	if err != nil {
		slog.ErrorContext(c.Context(), "[availabilityHandler] GetAvailability", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(available))
}

func (h *AvailabilityHandler) GetProductReservations(c *fiber.Ctx) error {
	productID, err := paramID(c, "product_id")
	if err != nil {
		slog.ErrorContext(c.Context(), "[availabilityHandler] GetProductReservations", "paramID", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	reservations, err := h.usecase.GetProductReservations(c.Context(), productID)
	if err != nil {
		slog.ErrorContext(c.Context(), "[availabilityHandler] GetProductReservations", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(reservations))
}

func (h *AvailabilityHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.usecase.GetReservationStats(c.Context())
	if err != nil {
		slog.ErrorContext(c.Context(), "[availabilityHandler] GetStats", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(stats))
}
