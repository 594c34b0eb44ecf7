package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"nfse-pipeline/internal/domain"
	"nfse-pipeline/internal/middleware"
	"nfse-pipeline/internal/service"
	"nfse-pipeline/pkg/logger"
)

type SaleHandler struct {
	sales  service.SaleService
	logger *logger.Logger
}

func NewSaleHandler(sales service.SaleService, log *logger.Logger) *SaleHandler {
	return &SaleHandler{
		sales:  sales,
		logger: log,
	}
}

type createSaleRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

func (h *SaleHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(ctx)

	var req createSaleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	sale, err := h.sales.CreateSale(ctx, userID, req.Amount, req.Description)
	if errors.Is(err, domain.ErrInvalidAmount) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}
	if err != nil {
		h.logger.Error(ctx, "Failed to create sale",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to create sale",
		})
	}

	return c.JSON(http.StatusAccepted, sale)
}

func (h *SaleHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(ctx)

	sales, err := h.sales.ListSales(ctx, userID)
	if err != nil {
		h.logger.Error(ctx, "Failed to list sales",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to list sales",
		})
	}

	return c.JSON(http.StatusOK, sales)
}

func (h *SaleHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(ctx)

	sale, err := h.sales.GetSale(ctx, c.Param("id"), userID)
	if errors.Is(err, domain.ErrSaleNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "sale not found",
		})
	}
	if err != nil {
		h.logger.Error(ctx, "Failed to get sale",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to get sale",
		})
	}

	return c.JSON(http.StatusOK, sale)
}
