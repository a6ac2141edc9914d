package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/access-gate-service/internal/clock"
	"github.com/spec-kit/access-gate-service/internal/domain"
	"github.com/spec-kit/access-gate-service/internal/events"
	"github.com/spec-kit/access-gate-service/internal/gateway"
	"github.com/spec-kit/access-gate-service/internal/repository"
)

// MembershipService tracks active premium memberships and drives their
// expiry transitions.
type MembershipService struct {
	memberships    repository.MembershipRepository
	gate           gateway.ChannelGateway
	gatewayTimeout time.Duration
	dispatcher     events.Dispatcher
	clock          clock.Clock
	logger         *zap.Logger
}

// MembershipDependencies encapsulates requirements for the ledger.
type MembershipDependencies struct {
	MembershipRepo repository.MembershipRepository
	Gateway        gateway.ChannelGateway
	GatewayTimeout time.Duration
	Dispatcher     events.Dispatcher
	Clock          clock.Clock
	Logger         *zap.Logger
}

// NewMembershipService builds the service.
func NewMembershipService(deps MembershipDependencies) *MembershipService {
	return &MembershipService{
		memberships:    deps.MembershipRepo,
		gate:           deps.Gateway,
		gatewayTimeout: deps.GatewayTimeout,
		dispatcher:     deps.Dispatcher,
		clock:          deps.Clock,
		logger:         deps.Logger,
	}
}

// IsActive reports the implicit membership view: a record past its
// deadline reads inactive even before the sweep transitions it.
func (s *MembershipService) IsActive(ctx context.Context, subjectID string) (bool, *domain.Membership, error) {
	membership, err := s.memberships.GetActiveBySubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil, nil
		}
		return false, nil, err
	}
	return membership.ActiveAt(s.clock.Now()), membership, nil
}

// SweepExpired transitions every overdue active membership to EXPIRED,
// revoking channel access per subject. A temporary gateway failure
// leaves the record active for the next sweep; a terminal one does not,
// so a successful revoke is never attempted twice. One subject's failure
// never aborts the batch.
func (s *MembershipService) SweepExpired(ctx context.Context) (*domain.SweepReport, error) {
	now := s.clock.Now()
	candidates, err := s.memberships.ListExpiredActive(ctx, now)
	if err != nil {
		return nil, err
	}

	report := &domain.SweepReport{Job: "membership_expiry", Scanned: len(candidates)}
	for _, m := range candidates {
		gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
		revokeErr := s.gate.Revoke(gctx, m.SubjectID)
		cancel()

		if revokeErr != nil {
			if gateway.IsTemporary(revokeErr) {
				report.Failed++
				report.FailedSubjects = append(report.FailedSubjects, m.SubjectID)
				s.logger.Warn("revoke failed; membership stays active for retry",
					zap.String("subject_id", m.SubjectID), zap.Error(revokeErr))
				continue
			}
			s.logger.Warn("revoke failed terminally; expiring membership anyway",
				zap.String("subject_id", m.SubjectID), zap.Error(revokeErr))
		}

		if err := s.memberships.MarkExpired(ctx, m.ID, now); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// another sweep instance transitioned it first
				continue
			}
			report.Failed++
			report.FailedSubjects = append(report.FailedSubjects, m.SubjectID)
			s.logger.Error("failed to mark membership expired",
				zap.String("membership_id", m.ID), zap.Error(err))
			continue
		}

		report.Succeeded++
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventMembershipExpired,
			SubjectID: m.SubjectID,
			Timestamp: now,
			Payload:   events.MembershipExpiredPayload{MembershipID: m.ID, ExpiredAt: now},
		})
	}

	if report.Scanned > 0 {
		s.logger.Info("membership expiry sweep",
			zap.Int("scanned", report.Scanned),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", report.Failed))
	}
	return report, nil
}
