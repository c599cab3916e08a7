package types

// Mode selects how a computation session discovers time: batch iterates a
// precomputed grid over a fixed dataset, live waits for wall-clock deadlines
// against an open-ended feed.
type Mode string

const (
	ModeBatch Mode = "batch"
	ModeLive  Mode = "live"
)

// SessionState is the lifecycle state of a computation session.
type SessionState string

const (
	SessionStateCreated   SessionState = "CREATED"
	SessionStateRunning   SessionState = "RUNNING"
	SessionStateCompleted SessionState = "COMPLETED"
	SessionStateCancelled SessionState = "CANCELLED"
	SessionStateFailed    SessionState = "FAILED"
)

// Terminal reports whether no further state transitions are possible.
func (s SessionState) Terminal() bool {
	switch s {
	case SessionStateCompleted, SessionStateCancelled, SessionStateFailed:
		return true
	default:
		return false
	}
}

// TimeRange bounds a batch session. Start and End are seconds since epoch,
// End inclusive.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}
