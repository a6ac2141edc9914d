package handlers

import (
	"errors"
	"net/http"

	"github.com/spec-kit/access-gate-service/internal/domain"
	"github.com/spec-kit/access-gate-service/internal/gateway"
	apperrors "github.com/spec-kit/access-gate-service/pkg/util"
)

// mapServiceError converts domain sentinels into caller-facing typed
// outcomes. Anything unrecognized falls through as an internal error.
func mapServiceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrTokenNotFound):
		return apperrors.NewNotFound("token", nil)
	case errors.Is(err, domain.ErrTokenAlreadyRedeemed):
		return apperrors.NewStateConflict("TOKEN_ALREADY_REDEEMED", "token already redeemed")
	case errors.Is(err, domain.ErrTokenExpired):
		return apperrors.NewStateConflict("TOKEN_EXPIRED", "token expired")
	case errors.Is(err, domain.ErrPlanUnknown):
		return apperrors.NewValidationError("unknown plan code", nil)
	case errors.Is(err, domain.ErrNoPendingRequest):
		return apperrors.NewNotFound("pending admission request", nil)
	case errors.Is(err, domain.ErrTokenCollision):
		return apperrors.NewIntegrityError(err)
	}

	var gwErr *gateway.GatewayError
	if errors.As(err, &gwErr) {
		return apperrors.NewDomainError("GATEWAY_ERROR", "channel gateway operation failed",
			http.StatusBadGateway, map[string]any{"code": gwErr.Code})
	}
	return apperrors.MapError(err)
}
