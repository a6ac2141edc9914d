package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/access-gate-service/internal/clock"
	"github.com/spec-kit/access-gate-service/internal/config"
	"github.com/spec-kit/access-gate-service/internal/domain"
	"github.com/spec-kit/access-gate-service/internal/events"
	"github.com/spec-kit/access-gate-service/internal/gateway"
	"github.com/spec-kit/access-gate-service/internal/repository"
	apperrors "github.com/spec-kit/access-gate-service/pkg/util"
)

// AdmissionService runs the delayed first-come admission queue for the
// free tier.
type AdmissionService struct {
	admissions     repository.AdmissionRepository
	gate           gateway.ChannelGateway
	gatewayTimeout time.Duration
	dispatcher     events.Dispatcher
	provider       config.GateProvider
	clock          clock.Clock
	logger         *zap.Logger
}

// AdmissionDependencies encapsulates requirements for the queue.
type AdmissionDependencies struct {
	AdmissionRepo  repository.AdmissionRepository
	Gateway        gateway.ChannelGateway
	GatewayTimeout time.Duration
	Dispatcher     events.Dispatcher
	Provider       config.GateProvider
	Clock          clock.Clock
	Logger         *zap.Logger
}

// NewAdmissionService builds the service.
func NewAdmissionService(deps AdmissionDependencies) *AdmissionService {
	return &AdmissionService{
		admissions:     deps.AdmissionRepo,
		gate:           deps.Gateway,
		gatewayTimeout: deps.GatewayTimeout,
		dispatcher:     deps.Dispatcher,
		provider:       deps.Provider,
		clock:          deps.Clock,
		logger:         deps.Logger,
	}
}

// Enqueue records a pending admission request, or returns the existing
// pending one unchanged. The second return reports whether a new row was
// created.
func (s *AdmissionService) Enqueue(ctx context.Context, subjectID string) (*domain.AdmissionRequest, bool, error) {
	if subjectID == "" {
		return nil, false, apperrors.NewValidationError("subject_id required", nil)
	}

	// Insert-if-absent, then read back on conflict. The pending row can be
	// processed between the two steps, so take another insert attempt
	// before giving up.
	for attempt := 0; attempt < 3; attempt++ {
		req, err := s.admissions.InsertPending(ctx, subjectID, s.clock.Now())
		if err == nil {
			s.logger.Info("admission request enqueued", zap.String("subject_id", subjectID))
			return req, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, false, err
		}

		existing, err := s.admissions.GetPending(ctx, subjectID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, false, err
		}
	}
	return nil, false, errors.New("admission enqueue contention; retry")
}

// WaitRemaining reports how much of the admission delay is left for the
// subject's pending request.
func (s *AdmissionService) WaitRemaining(ctx context.Context, subjectID string) (time.Duration, error) {
	req, err := s.admissions.GetPending(ctx, subjectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNoPendingRequest
		}
		return 0, err
	}

	delay := s.provider.Gate().AdmissionDelay
	remaining := delay - s.clock.Now().Sub(req.RequestedAt)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// SweepReady admits every pending request past the configured delay, in
// FIFO order. Admission is retried until it succeeds: a failed request
// stays pending and keeps its queue position.
func (s *AdmissionService) SweepReady(ctx context.Context) (*domain.SweepReport, error) {
	now := s.clock.Now()
	cutoff := now.Add(-s.provider.Gate().AdmissionDelay)

	ready, err := s.admissions.ListReadyBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	report := &domain.SweepReport{Job: "queue_ready", Scanned: len(ready)}
	for _, req := range ready {
		gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
		handle, admitErr := s.gate.Admit(gctx, req.SubjectID)
		cancel()
		if admitErr != nil {
			report.Failed++
			report.FailedSubjects = append(report.FailedSubjects, req.SubjectID)
			s.logger.Warn("admit failed; request stays pending",
				zap.String("subject_id", req.SubjectID), zap.Error(admitErr))
			continue
		}

		if err := s.admissions.MarkProcessed(ctx, req.ID, now); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// another sweep instance processed it first
				continue
			}
			report.Failed++
			report.FailedSubjects = append(report.FailedSubjects, req.SubjectID)
			s.logger.Error("failed to mark request processed",
				zap.String("request_id", req.ID), zap.Error(err))
			continue
		}

		report.Succeeded++
		var inviteRef *string
		if handle != nil && handle.InviteRef != "" {
			inviteRef = &handle.InviteRef
		}
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventAdmissionProcessed,
			SubjectID: req.SubjectID,
			Timestamp: now,
			Payload:   events.AdmissionProcessedPayload{RequestID: req.ID, InviteRef: inviteRef},
		})
	}

	if report.Scanned > 0 {
		s.logger.Info("queue ready sweep",
			zap.Int("scanned", report.Scanned),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", report.Failed))
	}
	return report, nil
}

// CleanupOld deletes processed requests older than the retention window.
// Storage hygiene only; never touches pending rows.
func (s *AdmissionService) CleanupOld(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().Add(-s.provider.Gate().RetentionWindow)
	removed, err := s.admissions.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("removed processed admission requests", zap.Int64("count", removed))
	}
	return removed, nil
}
