package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/access-gate-service/internal/api/dto"
	"github.com/spec-kit/access-gate-service/internal/service"
	apperrors "github.com/spec-kit/access-gate-service/pkg/util"
)

// MembershipsHandler exposes the membership read view.
type MembershipsHandler struct {
	memberships *service.MembershipService
}

// NewMembershipsHandler constructs handler.
func NewMembershipsHandler(memberships *service.MembershipService) *MembershipsHandler {
	return &MembershipsHandler{memberships: memberships}
}

// Get handles GET /memberships/:subjectID.
func (h *MembershipsHandler) Get(c *fiber.Ctx) error {
	subjectID := c.Params("subjectID")
	active, membership, err := h.memberships.IsActive(c.UserContext(), subjectID)
	if err != nil {
		return mapServiceError(err)
	}
	if membership == nil {
		return apperrors.NewNotFound("membership", map[string]any{"subject_id": subjectID})
	}

	return c.JSON(fiber.Map{
		"data": dto.MembershipResponse{
			SubjectID:   membership.SubjectID,
			Status:      string(membership.Status),
			Active:      active,
			ActivatedAt: membership.ActivatedAt,
			ExpiresAt:   membership.ExpiresAt,
		},
	})
}
