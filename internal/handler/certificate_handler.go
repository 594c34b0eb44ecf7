package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"nfse-pipeline/internal/middleware"
	"nfse-pipeline/internal/service"
	"nfse-pipeline/pkg/logger"
)

type CertificateHandler struct {
	certificates service.CertificateService
	logger       *logger.Logger
}

func NewCertificateHandler(certificates service.CertificateService, log *logger.Logger) *CertificateHandler {
	return &CertificateHandler{
		certificates: certificates,
		logger:       log,
	}
}

func (h *CertificateHandler) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(ctx)

	file, err := c.FormFile("certificate")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "certificate file required",
		})
	}

	password := c.FormValue("password")
	if password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "certificate password required",
		})
	}

	src, err := file.Open()
	if err != nil {
		h.logger.Error(ctx, "Failed to open uploaded file",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to read certificate file",
		})
	}
	defer src.Close()

	cert, err := h.certificates.Upload(ctx, userID, file.Filename, src, password)
	if err != nil {
		h.logger.Error(ctx, "Certificate upload failed",
			"error", err,
		)
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "certificate upload failed",
		})
	}

	return c.JSON(http.StatusCreated, cert)
}

func (h *CertificateHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(ctx)

	certs, err := h.certificates.List(ctx, userID)
	if err != nil {
		h.logger.Error(ctx, "Failed to list certificates",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to list certificates",
		})
	}

	return c.JSON(http.StatusOK, certs)
}
