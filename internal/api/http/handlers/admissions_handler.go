package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/access-gate-service/internal/api/dto"
	"github.com/spec-kit/access-gate-service/internal/service"
	apperrors "github.com/spec-kit/access-gate-service/pkg/util"
)

// AdmissionsHandler exposes the delayed free-access queue.
type AdmissionsHandler struct {
	admissions *service.AdmissionService
}

// NewAdmissionsHandler constructs handler.
func NewAdmissionsHandler(admissions *service.AdmissionService) *AdmissionsHandler {
	return &AdmissionsHandler{admissions: admissions}
}

// Enqueue handles POST /admissions. Re-triggering with an existing
// pending request returns the original entry with 200 instead of 201.
func (h *AdmissionsHandler) Enqueue(c *fiber.Ctx) error {
	var req dto.EnqueueAdmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.SubjectID == "" {
		return apperrors.NewValidationError("subject_id required", nil)
	}

	entry, created, err := h.admissions.Enqueue(c.UserContext(), req.SubjectID)
	if err != nil {
		return mapServiceError(err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"data": dto.AdmissionResponse{
			SubjectID:   entry.SubjectID,
			RequestedAt: entry.RequestedAt,
			Processed:   entry.Processed,
			ProcessedAt: entry.ProcessedAt,
			Created:     created,
		},
	})
}

// Wait handles GET /admissions/:subjectID/wait.
func (h *AdmissionsHandler) Wait(c *fiber.Ctx) error {
	subjectID := c.Params("subjectID")
	remaining, err := h.admissions.WaitRemaining(c.UserContext(), subjectID)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(fiber.Map{
		"data": dto.WaitRemainingResponse{
			SubjectID:        subjectID,
			RemainingSeconds: remaining.Seconds(),
		},
	})
}
