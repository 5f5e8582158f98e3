package handler

import (
	"log/slog"

	"stock-reservation-service/app/domain"
	"stock-reservation-service/app/handler/api/response"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type ProductHandler struct {
	usecase   domain.ProductUsecase
	validator *validator.Validate
}

func NewProductHandler(usecase domain.ProductUsecase, validator *validator.Validate) *ProductHandler {
	return &ProductHandler{
		usecase:   usecase,
		validator: validator,
	}
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var req domain.ProductCreateRequest
	if err := c.BodyParser(&req); err != nil {
		slog.ErrorContext(c.Context(), "[productHandler] Create", "bodyParser", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	if err := h.validator.Struct(req); err != nil {
		slog.ErrorContext(c.Context(), "[productHandler] Create", "validator", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrValidation))
	}

	product, err := h.usecase.CreateProduct(c.Context(), req)
	if err != nil {
		slog.ErrorContext(c.Context(), "[productHandler] Create", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusCreated).JSON(response.Success(product))
}

func (h *ProductHandler) SetStock(c *fiber.Ctx) error {
	productID, err := paramID(c, "product_id")
	if err != nil {
		slog.ErrorContext(c.Context(), "[productHandler] SetStock", "paramID", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	var req domain.SetStockQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		slog.ErrorContext(c.Context(), "[productHandler] SetStock", "bodyParser", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	if err := h.validator.Struct(req); err != nil {
		slog.ErrorContext(c.Context(), "[productHandler] SetStock", "validator", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrValidation))
	}

	if err := h.usecase.SetStockQuantity(c.Context(), productID, req); err != nil {
		slog.ErrorContext(c.Context(), "[productHandler] SetStock", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(nil))
}
