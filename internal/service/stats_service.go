package service

import (
	"context"

	"github.com/spec-kit/access-gate-service/internal/domain"
	"github.com/spec-kit/access-gate-service/internal/repository"
)

// StatsService exposes read-only summary counts for reporting collaborators.
type StatsService struct {
	tokens      repository.TokenRepository
	memberships repository.MembershipRepository
	admissions  repository.AdmissionRepository
}

// NewStatsService builds the service.
func NewStatsService(tokens repository.TokenRepository, memberships repository.MembershipRepository, admissions repository.AdmissionRepository) *StatsService {
	return &StatsService{tokens: tokens, memberships: memberships, admissions: admissions}
}

// Summary aggregates counts across the three entity types.
func (s *StatsService) Summary(ctx context.Context) (*domain.Summary, error) {
	issued, redeemed, err := s.tokens.Counts(ctx)
	if err != nil {
		return nil, err
	}
	active, expired, err := s.memberships.Counts(ctx)
	if err != nil {
		return nil, err
	}
	pending, processed, err := s.admissions.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.Summary{
		ActiveMemberships:  active,
		ExpiredMemberships: expired,
		PendingRequests:    pending,
		ProcessedRequests:  processed,
		IssuedTokens:       issued,
		RedeemedTokens:     redeemed,
	}, nil
}
