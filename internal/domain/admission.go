package domain

import "time"

// AdmissionRequest is a subject's pending entry in the delayed free-access queue.
// At most one unprocessed row exists per subject.
type AdmissionRequest struct {
	ID          string
	SubjectID   string
	RequestedAt time.Time
	Processed   bool
	ProcessedAt *time.Time
}

// ReadyAt reports whether the configured admission delay has elapsed.
func (r AdmissionRequest) ReadyAt(now time.Time, delay time.Duration) bool {
	return !r.Processed && !now.Before(r.RequestedAt.Add(delay))
}
