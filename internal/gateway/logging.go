package gateway

import (
	"context"

	"go.uber.org/zap"
)

// LoggingGateway records intended side effects without an external
// channel. Used when GATEWAY_BASE_URL is not configured.
type LoggingGateway struct {
	logger *zap.Logger
}

// NewLoggingGateway builds the stub gateway.
func NewLoggingGateway(logger *zap.Logger) *LoggingGateway {
	return &LoggingGateway{logger: logger}
}

func (g *LoggingGateway) Grant(_ context.Context, subjectID string) error {
	g.logger.Info("gateway grant (stub)", zap.String("subject_id", subjectID))
	return nil
}

func (g *LoggingGateway) Revoke(_ context.Context, subjectID string) error {
	g.logger.Info("gateway revoke (stub)", zap.String("subject_id", subjectID))
	return nil
}

func (g *LoggingGateway) Admit(_ context.Context, subjectID string) (*InviteHandle, error) {
	g.logger.Info("gateway admit (stub)", zap.String("subject_id", subjectID))
	return &InviteHandle{SubjectID: subjectID}, nil
}
