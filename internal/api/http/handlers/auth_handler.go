package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/access-gate-service/internal/api/dto"
	"github.com/spec-kit/access-gate-service/internal/service"
	apperrors "github.com/spec-kit/access-gate-service/pkg/util"
)

// AuthHandler exposes operator authentication.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// OperatorLogin handles POST /auth/operator/login.
func (h *AuthHandler) OperatorLogin(c *fiber.Ctx) error {
	var req dto.OperatorLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	token, exp, err := h.auth.LoginOperator(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	return c.JSON(fiber.Map{
		"data": dto.AuthResponse{Token: token, ExpiresAt: exp},
	})
}
