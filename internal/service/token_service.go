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

// TxBeginner starts a transaction spanning token redemption and
// membership activation. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TokenService issues, validates and redeems single-use invite tokens.
type TokenService struct {
	pool           TxBeginner
	tokens         repository.TokenRepository
	memberships    repository.MembershipRepository
	gate           gateway.ChannelGateway
	gatewayTimeout time.Duration
	dispatcher     events.Dispatcher
	provider       config.GateProvider
	clock          clock.Clock
	logger         *zap.Logger
}

// TokenDependencies encapsulates requirements for the token service.
type TokenDependencies struct {
	Pool           TxBeginner
	TokenRepo      repository.TokenRepository
	MembershipRepo repository.MembershipRepository
	Gateway        gateway.ChannelGateway
	GatewayTimeout time.Duration
	Dispatcher     events.Dispatcher
	Provider       config.GateProvider
	Clock          clock.Clock
	Logger         *zap.Logger
}

// NewTokenService builds the service.
func NewTokenService(deps TokenDependencies) *TokenService {
	return &TokenService{
		pool:           deps.Pool,
		tokens:         deps.TokenRepo,
		memberships:    deps.MembershipRepo,
		gate:           deps.Gateway,
		gatewayTimeout: deps.GatewayTimeout,
		dispatcher:     deps.Dispatcher,
		provider:       deps.Provider,
		clock:          deps.Clock,
		logger:         deps.Logger,
	}
}

// Issue creates a new single-use token. When planCode is given its plan
// duration wins; otherwise validFor applies, falling back to the
// configured default.
func (s *TokenService) Issue(ctx context.Context, issuerID string, validFor time.Duration, planCode *string) (*domain.Token, error) {
	if issuerID == "" {
		return nil, apperrors.NewValidationError("issuer required", nil)
	}
	if validFor < 0 {
		return nil, apperrors.NewValidationError("duration must not be negative", nil)
	}

	gate := s.provider.Gate()
	if planCode != nil {
		dur, ok := gate.Plans[*planCode]
		if !ok {
			return nil, domain.ErrPlanUnknown
		}
		validFor = dur
	} else if validFor == 0 {
		validFor = gate.DefaultTokenValidFor
	}

	now := s.clock.Now()
	token := &domain.Token{
		Value:     uuid.NewString(),
		IssuedBy:  issuerID,
		PlanCode:  planCode,
		ValidFor:  validFor,
		IssuedAt:  now,
		ExpiresAt: now.Add(validFor),
	}

	if err := s.tokens.Create(ctx, token); err != nil {
		if errors.Is(err, domain.ErrTokenCollision) {
			s.logger.Error("token value collision; randomness source suspect",
				zap.String("issuer", issuerID))
		}
		return nil, err
	}

	s.logger.Info("token issued",
		zap.String("token_id", token.ID),
		zap.String("issuer", issuerID),
		zap.Duration("valid_for", validFor))
	return token, nil
}

// Validate classifies a token without mutating it.
func (s *TokenService) Validate(ctx context.Context, value string) (*domain.Token, domain.TokenState, error) {
	token, err := s.tokens.GetByValue(ctx, value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", domain.ErrTokenNotFound
		}
		return nil, "", err
	}
	return token, token.StateAt(s.clock.Now()), nil
}

// Redeem consumes the token and activates (or extends) the subject's
// membership in a single transaction: under concurrent redemptions of
// the same value exactly one caller succeeds, and a failed channel grant
// rolls the redemption back.
func (s *TokenService) Redeem(ctx context.Context, value, subjectID string) (*domain.Membership, error) {
	if subjectID == "" {
		return nil, apperrors.NewValidationError("subject_id required", nil)
	}

	now := s.clock.Now()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	token, err := s.tokens.WithTx(tx).Redeem(ctx, value, subjectID, now)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyRedeemFailure(ctx, tx, value, now)
		}
		return nil, err
	}

	membership, err := s.memberships.WithTx(tx).UpsertActive(ctx, subjectID, &token.ID, token.ValidFor, now)
	if err != nil {
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	err = s.gate.Grant(gctx, subjectID)
	cancel()
	if err != nil {
		s.logger.Warn("channel grant failed; rolling back redemption",
			zap.String("subject_id", subjectID), zap.Error(err))
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("token redeemed",
		zap.String("token_id", token.ID),
		zap.String("subject_id", subjectID),
		zap.Time("membership_expires_at", membership.ExpiresAt))

	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventMembershipActivated,
		SubjectID: subjectID,
		Timestamp: now,
		Payload: events.MembershipActivatedPayload{
			MembershipID:  membership.ID,
			SourceTokenID: membership.SourceTokenID,
			ExpiresAt:     membership.ExpiresAt,
		},
	})
	return membership, nil
}

// classifyRedeemFailure distinguishes why the conditional update matched
// no row. Runs on the redemption transaction so it sees a consistent view.
func (s *TokenService) classifyRedeemFailure(ctx context.Context, tx pgx.Tx, value string, now time.Time) error {
	token, err := s.tokens.WithTx(tx).GetByValue(ctx, value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTokenNotFound
		}
		return err
	}
	switch token.StateAt(now) {
	case domain.TokenStateRedeemed:
		return domain.ErrTokenAlreadyRedeemed
	case domain.TokenStateExpired:
		return domain.ErrTokenExpired
	default:
		// the row was valid moments ago; treat as a transient conflict
		return domain.ErrTokenAlreadyRedeemed
	}
}

// ArchiveExpired flags unused tokens that expired before the cutoff.
// Called by the retention job; archived rows stay queryable for audit.
func (s *TokenService) ArchiveExpired(ctx context.Context, before time.Time) (int64, error) {
	archived, err := s.tokens.ArchiveExpiredUnused(ctx, before)
	if err != nil {
		return 0, err
	}
	if archived > 0 {
		s.logger.Info("archived expired tokens", zap.Int64("count", archived))
	}
	return archived, nil
}
