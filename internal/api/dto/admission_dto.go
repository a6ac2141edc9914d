package dto

import "time"

// EnqueueAdmissionRequest payload for joining the free-access queue.
type EnqueueAdmissionRequest struct {
	SubjectID string `json:"subject_id"`
}

// AdmissionResponse is the public view of a queue entry.
type AdmissionResponse struct {
	SubjectID   string     `json:"subject_id"`
	RequestedAt time.Time  `json:"requested_at"`
	Processed   bool       `json:"processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Created     bool       `json:"created"`
}

// WaitRemainingResponse reports the remaining admission delay.
type WaitRemainingResponse struct {
	SubjectID        string  `json:"subject_id"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}
