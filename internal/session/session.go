package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-indicator/internal/config"
	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

// Session is one computation run: a variant evaluated for a symbol over a
// time range (batch) or an open-ended feed (live). The variant is copied at
// creation; config edits never affect a running session.
type Session struct {
	ID      string
	Symbol  string
	Variant config.Variant
	Mode    types.Mode
	Range   optional.Option[types.TimeRange]

	mu      sync.RWMutex
	state   types.SessionState
	err     error
	written int64
}

// NewSession creates a session in the CREATED state with a fresh id.
func NewSession(symbol string, variant config.Variant, mode types.Mode, r optional.Option[types.TimeRange]) *Session {
	return &Session{
		ID:      uuid.New().String(),
		Symbol:  symbol,
		Variant: variant,
		Mode:    mode,
		Range:   r,
		state:   types.SessionStateCreated,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() types.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// Err returns the error that terminated the session, if any.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.err
}

// PointsWritten returns the number of points emitted so far.
func (s *Session) PointsWritten() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.written
}

func (s *Session) addWritten(n int64) {
	s.mu.Lock()
	s.written += n
	s.mu.Unlock()
}

// transition moves the session to a new state. Transitions out of a terminal
// state are rejected.
func (s *Session) transition(to types.SessionState, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return errors.Newf(errors.ErrCodeSessionTerminal,
			"session %s is already %s", s.ID, s.state)
	}

	s.state = to
	if cause != nil {
		s.err = cause
	}

	return nil
}

// Key returns the output series key of the session.
func (s *Session) Key() types.SeriesKey {
	return types.SeriesKey{
		SessionID: s.ID,
		Symbol:    s.Symbol,
		Category:  s.Variant.Category,
		VariantID: s.Variant.ID,
	}
}

// Status is an immutable snapshot of a session, safe to serialize.
type Status struct {
	ID            string             `json:"id"`
	Symbol        string             `json:"symbol"`
	VariantID     string             `json:"variant_id"`
	Category      types.Category     `json:"category"`
	Mode          types.Mode         `json:"mode"`
	State         types.SessionState `json:"state"`
	Error         string             `json:"error,omitempty"`
	PointsWritten int64              `json:"points_written"`
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		ID:            s.ID,
		Symbol:        s.Symbol,
		VariantID:     s.Variant.ID,
		Category:      s.Variant.Category,
		Mode:          s.Mode,
		State:         s.state,
		PointsWritten: s.written,
	}
	if s.err != nil {
		st.Error = s.err.Error()
	}

	return st
}
