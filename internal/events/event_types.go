package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventMembershipActivated EventType = "membership_activated"
	EventMembershipExpired   EventType = "membership_expired"
	EventAdmissionProcessed  EventType = "admission_processed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// MembershipActivatedPayload payload.
type MembershipActivatedPayload struct {
	MembershipID  string    `json:"membership_id"`
	SourceTokenID *string   `json:"source_token_id,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// MembershipExpiredPayload payload.
type MembershipExpiredPayload struct {
	MembershipID string    `json:"membership_id"`
	ExpiredAt    time.Time `json:"expired_at"`
}

// AdmissionProcessedPayload payload.
type AdmissionProcessedPayload struct {
	RequestID string  `json:"request_id"`
	InviteRef *string `json:"invite_ref,omitempty"`
}
