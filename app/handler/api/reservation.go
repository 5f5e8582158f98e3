package handler

import (
	"log/slog"
	"strconv"

	"stock-reservation-service/app/domain"
	"stock-reservation-service/app/handler/api/response"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type ReservationHandler struct {
	usecase   domain.ReservationUsecase
	validator *validator.Validate
}

func NewReservationHandler(usecase domain.ReservationUsecase, validator *validator.Validate) *ReservationHandler {
	return &ReservationHandler{
		usecase:   usecase,
		validator: validator,
	}
}

func (h *ReservationHandler) Create(c *fiber.Ctx) error {
	var req domain.ReservationCreateRequest
	if err := c.BodyParser(&req); err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] Create", "bodyParser", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	if err := h.validator.Struct(req); err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] Create", "validator", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrValidation))
	}

	reservation, err := h.usecase.CreateReservation(c.Context(), req)
	if err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] Create", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusCreated).JSON(response.Success(reservation))
}

func (h *ReservationHandler) Confirm(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] Confirm", "paramID", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	reservation, err := h.usecase.ConfirmReservation(c.Context(), id)
	if err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] Confirm", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(reservation))
}

func (h *ReservationHandler) Cancel(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] Cancel", "paramID", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	reservation, err := h.usecase.CancelReservation(c.Context(), id)
	if err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] Cancel", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(reservation))
}

func (h *ReservationHandler) Extend(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] Extend", "paramID", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	var req domain.ExtendExpirationRequest
	if err := c.BodyParser(&req); err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] Extend", "bodyParser", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	if err := h.validator.Struct(req); err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] Extend", "validator", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrValidation))
	}

	reservation, err := h.usecase.ExtendExpiration(c.Context(), id, req)
	if err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] Extend", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(reservation))
}

func (h *ReservationHandler) ReserveForOrder(c *fiber.Ctx) error {
	orderID, err := paramID(c, "order_id")
	if err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] ReserveForOrder", "paramID", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	var req domain.OrderReservationRequest
	if err := c.BodyParser(&req); err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] ReserveForOrder", "bodyParser", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	if err := h.validator.Struct(req); err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] ReserveForOrder", "validator", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrValidation))
	}

	result, err := h.usecase.ReserveStockForOrder(c.Context(), orderID, req)
	if err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] ReserveForOrder", "usecase", err)
		// Per-item failures ride along with the error so the caller can
		// offer reduced quantities.
		status, _ := response.FromError(err)
		return c.Status(status).JSON(&response.Response{Success: false, Data: result, Error: err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(response.Success(result))
}

func (h *ReservationHandler) ConfirmOrder(c *fiber.Ctx) error {
	orderID, err := paramID(c, "order_id")
	if err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] ConfirmOrder", "paramID", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	outcomes, err := h.usecase.ConfirmOrderReservations(c.Context(), orderID)
	if err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] ConfirmOrder", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(outcomes))
}

func (h *ReservationHandler) CancelOrder(c *fiber.Ctx) error {
	orderID, err := paramID(c, "order_id")
	if err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] CancelOrder", "paramID", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	outcomes, err := h.usecase.CancelOrderReservations(c.Context(), orderID)
	if err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] CancelOrder", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(outcomes))
}

func (h *ReservationHandler) Sweep(c *fiber.Ctx) error {
	expired, err := h.usecase.CleanExpiredReservations(c.Context())
	if err != nil {
		slog.ErrorContext(c.Context(), "[reservationHandler] Sweep", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(fiber.Map{"expired_count": expired}))
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	idStr := c.Params(name)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrBadRequest
	}
	return id, nil
}
