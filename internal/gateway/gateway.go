package gateway

import (
	"context"
	"errors"
	"fmt"
)

// ChannelGateway performs the grant/revoke/admit side effects on the
// protected external channel. All three operations are idempotent from
// the engine's perspective: revoking an already-revoked subject succeeds.
type ChannelGateway interface {
	Grant(ctx context.Context, subjectID string) error
	Revoke(ctx context.Context, subjectID string) error
	Admit(ctx context.Context, subjectID string) (*InviteHandle, error)
}

// InviteHandle references the admission artifact created on the channel.
type InviteHandle struct {
	SubjectID string
	InviteRef string
}

// GatewayError wraps a failed gateway call. Temporary failures are
// retried on the next sweep; terminal ones are not.
type GatewayError struct {
	Op        string
	SubjectID string
	Code      string
	Temporary bool
	Err       error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s for %s: %s: %v", e.Op, e.SubjectID, e.Code, e.Err)
	}
	return fmt.Sprintf("gateway %s for %s: %s", e.Op, e.SubjectID, e.Code)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsTemporary reports whether err is a gateway failure worth retrying.
// Non-gateway errors are treated as temporary so sweeps retry them.
func IsTemporary(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Temporary
	}
	return true
}
