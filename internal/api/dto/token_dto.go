package dto

import "time"

// IssueTokenRequest payload for issuing an invite token. ValidFor is a
// Go duration string ("72h"); PlanCode, when set, wins over ValidFor.
type IssueTokenRequest struct {
	PlanCode *string `json:"plan_code,omitempty"`
	ValidFor string  `json:"valid_for,omitempty"`
}

// RedeemTokenRequest payload for redeeming a token.
type RedeemTokenRequest struct {
	SubjectID string `json:"subject_id"`
}

// TokenResponse is the public view of a token.
type TokenResponse struct {
	Value      string     `json:"value"`
	IssuedBy   string     `json:"issued_by"`
	PlanCode   *string    `json:"plan_code,omitempty"`
	IssuedAt   time.Time  `json:"issued_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Redeemed   bool       `json:"redeemed"`
	RedeemedBy *string    `json:"redeemed_by,omitempty"`
	RedeemedAt *time.Time `json:"redeemed_at,omitempty"`
}

// TokenValidationResponse reports a read-only token classification.
type TokenValidationResponse struct {
	State string         `json:"state"`
	Token *TokenResponse `json:"token"`
}

// MembershipResponse is the public view of a membership.
type MembershipResponse struct {
	SubjectID   string    `json:"subject_id"`
	Status      string    `json:"status"`
	Active      bool      `json:"active"`
	ActivatedAt time.Time `json:"activated_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}
