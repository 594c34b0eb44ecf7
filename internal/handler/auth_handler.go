package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"nfse-pipeline/internal/domain"
	"nfse-pipeline/internal/service"
	"nfse-pipeline/pkg/logger"
)

type AuthHandler struct {
	auth   service.AuthService
	logger *logger.Logger
}

func NewAuthHandler(auth service.AuthService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: log,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()

	var req loginRequest
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "email and password are required",
		})
	}

	token, userID, err := h.auth.Login(ctx, req.Email, req.Password)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "invalid credentials",
		})
	}
	if err != nil {
		h.logger.Error(ctx, "Login failed",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "login failed",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"token":  token,
		"userId": userID,
	})
}
