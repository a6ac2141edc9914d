package domain

import "time"

// MembershipStatus enumerates membership lifecycle states.
type MembershipStatus string

const (
	MembershipStatusActive  MembershipStatus = "ACTIVE"
	MembershipStatusExpired MembershipStatus = "EXPIRED"
)

// Membership is a time-bounded grant of premium access for a subject.
// At most one ACTIVE row exists per subject, enforced by a partial
// unique index in the store.
type Membership struct {
	ID            string
	SubjectID     string
	SourceTokenID *string
	Status        MembershipStatus
	ActivatedAt   time.Time
	ExpiresAt     time.Time
	RevokedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ActiveAt reports the implicit view of the membership: a row past its
// deadline reads as inactive even before the expiry sweep corrects it.
func (m Membership) ActiveAt(now time.Time) bool {
	return m.Status == MembershipStatusActive && now.Before(m.ExpiresAt)
}
