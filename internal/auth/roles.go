package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/access-gate-service/pkg/util"
)

// Role enumerates caller roles on the management API.
type Role string

const (
	// RoleOperator may issue tokens and read reports.
	RoleOperator Role = "OPERATOR"
)

// RequireOperator ensures an authenticated operator principal.
func RequireOperator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Role != RoleOperator {
			return apperrors.NewForbidden("operator role required")
		}
		return c.Next()
	}
}
