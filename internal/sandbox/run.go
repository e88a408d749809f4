package sandbox

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// RunState is the lifecycle position of a sandbox run.
type RunState int

const (
	StateCreated RunState = iota
	StateGenerating
	StateTesting
	StatePassed
	StateFailed
)

func (s RunState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateGenerating:
		return "generating"
	case StateTesting:
		return "testing"
	case StatePassed:
		return "passed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("RunState(%d)", int(s))
}

// IsTerminal reports whether no further transition is allowed.
func (s RunState) IsTerminal() bool {
	return s == StatePassed || s == StateFailed
}

// ErrInvalidTransition is returned by Advance for backward, repeated or
// post-terminal moves.
var ErrInvalidTransition = errors.New("invalid run state transition")

// Transition is one recorded state change.
type Transition struct {
	From RunState
	To   RunState
	At   time.Time
}

// Run is one sandbox run. Its state only changes through Advance.
type Run struct {
	ID      string
	Dir     string
	Created time.Time

	mu      sync.Mutex
	state   RunState
	history []Transition
}

func newRun(id, dir string) *Run {
	return &Run{ID: id, Dir: dir, Created: time.Now(), state: StateCreated}
}

// State returns the current state.
func (r *Run) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// History returns a copy of the recorded transitions.
func (r *Run) History() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transition(nil), r.history...)
}

// Advance moves the run forward along created → generating → testing →
// passed|failed. Steps may not be skipped except that any non-terminal
// state may fail.
func (r *Run) Advance(next RunState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.state
	ok := false
	switch {
	case cur.IsTerminal():
	case next == StateFailed:
		ok = true
	case next == StatePassed:
		ok = cur == StateTesting
	default:
		ok = next == cur+1
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s (run %s)", ErrInvalidTransition, cur, next, r.ID)
	}

	r.state = next
	r.history = append(r.history, Transition{From: cur, To: next, At: time.Now()})
	return nil
}
