package services

import (
	"sync"
	"time"

	apperrors "github.com/zatekoja/clinicdesk/pkg/errors"
)

// ActionPhase is the lifecycle of the last action taken on one appointment
type ActionPhase string

const (
	ActionIdle    ActionPhase = "idle"
	ActionPending ActionPhase = "pending"
	ActionFailed  ActionPhase = "error"
)

// ActionState is what a list row or modal shows next to its action buttons
type ActionState struct {
	Phase     ActionPhase `json:"phase"`
	Action    string      `json:"action,omitempty"`
	Message   string      `json:"message,omitempty"`
	UpdatedAt time.Time   `json:"updatedAt,omitempty"`
}

// ActionTracker keeps the per-appointment action state shared by every view
// served from this process. Failures stay visible for errorTTL.
type ActionTracker struct {
	mu       sync.RWMutex
	states   map[string]ActionState
	errorTTL time.Duration
	now      func() time.Time
}

// NewActionTracker creates a tracker
func NewActionTracker(errorTTL time.Duration) *ActionTracker {
	if errorTTL <= 0 {
		errorTTL = 2 * time.Minute
	}
	return &ActionTracker{
		states:   make(map[string]ActionState),
		errorTTL: errorTTL,
		now:      time.Now,
	}
}

// Begin marks an action on id as in flight
func (t *ActionTracker) Begin(id, action string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[id] = ActionState{Phase: ActionPending, Action: action, UpdatedAt: t.now()}
}

// Finish records the outcome of an action. Success returns the row to idle.
func (t *ActionTracker) Finish(id, action string, err error) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.states, id)
		return
	}
	msg := err.Error()
	if appErr, ok := apperrors.As(err); ok {
		msg = appErr.Message
	}
	t.states[id] = ActionState{Phase: ActionFailed, Action: action, Message: msg, UpdatedAt: t.now()}
}

// State returns the current state of id
func (t *ActionTracker) State(id string) ActionState {
	if t == nil {
		return ActionState{Phase: ActionIdle}
	}
	t.mu.RLock()
	state, ok := t.states[id]
	t.mu.RUnlock()
	if !ok {
		return ActionState{Phase: ActionIdle}
	}
	if state.Phase == ActionFailed && t.now().Sub(state.UpdatedAt) > t.errorTTL {
		t.mu.Lock()
		if current, still := t.states[id]; still && current == state {
			delete(t.states, id)
		}
		t.mu.Unlock()
		return ActionState{Phase: ActionIdle}
	}
	return state
}
