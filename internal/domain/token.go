package domain

import "time"

// TokenState classifies a token for read-only validation.
type TokenState string

const (
	TokenStateValid    TokenState = "VALID"
	TokenStateRedeemed TokenState = "REDEEMED"
	TokenStateExpired  TokenState = "EXPIRED"
)

// Token is a single-use, time-limited credential granting one membership activation.
type Token struct {
	ID         string
	Value      string
	IssuedBy   string
	PlanCode   *string
	ValidFor   time.Duration
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Redeemed   bool
	RedeemedBy *string
	RedeemedAt *time.Time
	Archived   bool
	CreatedAt  time.Time
}

// StateAt classifies the token without mutating it.
func (t Token) StateAt(now time.Time) TokenState {
	if t.Redeemed {
		return TokenStateRedeemed
	}
	if !now.Before(t.ExpiresAt) {
		return TokenStateExpired
	}
	return TokenStateValid
}
