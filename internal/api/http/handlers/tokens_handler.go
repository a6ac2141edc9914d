package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/access-gate-service/internal/api/dto"
	"github.com/spec-kit/access-gate-service/internal/auth"
	"github.com/spec-kit/access-gate-service/internal/domain"
	"github.com/spec-kit/access-gate-service/internal/service"
	apperrors "github.com/spec-kit/access-gate-service/pkg/util"
)

// TokensHandler exposes token issuance, validation and redemption.
type TokensHandler struct {
	tokens *service.TokenService
}

// NewTokensHandler constructs handler.
func NewTokensHandler(tokens *service.TokenService) *TokensHandler {
	return &TokensHandler{tokens: tokens}
}

// Issue handles POST /tokens.
func (h *TokensHandler) Issue(c *fiber.Ctx) error {
	var req dto.IssueTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	var validFor time.Duration
	if req.ValidFor != "" {
		parsed, err := time.ParseDuration(req.ValidFor)
		if err != nil || parsed <= 0 {
			return apperrors.NewValidationError("valid_for must be a positive duration", nil)
		}
		validFor = parsed
	}

	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("operator required")
	}

	token, err := h.tokens.Issue(c.UserContext(), principal.OperatorID, validFor, req.PlanCode)
	if err != nil {
		return mapServiceError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data": toTokenResponse(token),
	})
}

// Validate handles GET /tokens/:value.
func (h *TokensHandler) Validate(c *fiber.Ctx) error {
	token, state, err := h.tokens.Validate(c.UserContext(), c.Params("value"))
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(fiber.Map{
		"data": dto.TokenValidationResponse{
			State: string(state),
			Token: toTokenResponse(token),
		},
	})
}

// Redeem handles POST /tokens/:value/redeem.
func (h *TokensHandler) Redeem(c *fiber.Ctx) error {
	var req dto.RedeemTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.SubjectID == "" {
		return apperrors.NewValidationError("subject_id required", nil)
	}

	membership, err := h.tokens.Redeem(c.UserContext(), c.Params("value"), req.SubjectID)
	if err != nil {
		return mapServiceError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data": dto.MembershipResponse{
			SubjectID:   membership.SubjectID,
			Status:      string(membership.Status),
			Active:      true,
			ActivatedAt: membership.ActivatedAt,
			ExpiresAt:   membership.ExpiresAt,
		},
	})
}

func toTokenResponse(token *domain.Token) *dto.TokenResponse {
	return &dto.TokenResponse{
		Value:      token.Value,
		IssuedBy:   token.IssuedBy,
		PlanCode:   token.PlanCode,
		IssuedAt:   token.IssuedAt,
		ExpiresAt:  token.ExpiresAt,
		Redeemed:   token.Redeemed,
		RedeemedBy: token.RedeemedBy,
		RedeemedAt: token.RedeemedAt,
	}
}
