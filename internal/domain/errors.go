package domain

import "errors"

// Expected state-conflict outcomes, surfaced to callers as typed results
// rather than generic failures.
var (
	ErrTokenNotFound        = errors.New("token not found")
	ErrTokenAlreadyRedeemed = errors.New("token already redeemed")
	ErrTokenExpired         = errors.New("token expired")
	ErrNoPendingRequest     = errors.New("no pending admission request")
	ErrPlanUnknown          = errors.New("unknown plan code")
)

// ErrTokenCollision indicates a generated token value collided with an
// existing one. This is an integrity failure of the randomness source,
// never retried silently.
var ErrTokenCollision = errors.New("token value collision")
