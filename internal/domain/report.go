package domain

// SweepReport summarizes one batch pass over records eligible for a
// state transition. A failed subject stays eligible and is retried on
// the next sweep.
type SweepReport struct {
	Job            string
	Scanned        int
	Succeeded      int
	Failed         int
	FailedSubjects []string
}

// Summary aggregates read-only counts for reporting collaborators.
type Summary struct {
	ActiveMemberships  int64 `json:"active_memberships"`
	ExpiredMemberships int64 `json:"expired_memberships"`
	PendingRequests    int64 `json:"pending_requests"`
	ProcessedRequests  int64 `json:"processed_requests"`
	IssuedTokens       int64 `json:"issued_tokens"`
	RedeemedTokens     int64 `json:"redeemed_tokens"`
}
