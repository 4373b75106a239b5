package query

import (
	"context"
	"errors"
	"sync"
)

// ErrMutationPending is returned when a mutation is triggered while it is still running.
var ErrMutationPending = errors.New("mutation already in progress")

// MutationStatus is the explicit lifecycle of a mutation.
type MutationStatus string

const (
	MutationIdle      MutationStatus = "idle"
	MutationPending   MutationStatus = "pending"
	MutationSucceeded MutationStatus = "succeeded"
	MutationFailed    MutationStatus = "failed"
)

// MutationState is the serialisable view of a mutation.
type MutationState struct {
	Status MutationStatus `json:"status"`
	Error  string         `json:"error,omitempty"`
}

// Pending reports whether the mutation is running.
func (s MutationState) Pending() bool {
	return s.Status == MutationPending
}

// Failed reports whether the last run failed.
func (s MutationState) Failed() bool {
	return s.Status == MutationFailed
}

// Mutation runs a write operation and records its outcome. Results are never cached.
type Mutation[In, Out any] struct {
	fn func(context.Context, In) (Out, error)

	mu     sync.Mutex
	status MutationStatus
	result Out
	err    error
}

// NewMutation wraps fn.
func NewMutation[In, Out any](fn func(context.Context, In) (Out, error)) *Mutation[In, Out] {
	return &Mutation[In, Out]{fn: fn, status: MutationIdle}
}

// Run executes the mutation unless a previous run is still pending.
func (m *Mutation[In, Out]) Run(ctx context.Context, in In) (Out, error) {
	var zero Out
	m.mu.Lock()
	if m.status == MutationPending {
		m.mu.Unlock()
		return zero, ErrMutationPending
	}
	m.status = MutationPending
	m.result = zero
	m.err = nil
	m.mu.Unlock()

	out, err := m.fn(ctx, in)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.status = MutationFailed
		m.err = err
		return zero, err
	}
	m.status = MutationSucceeded
	m.result = out
	return out, nil
}

// State returns the current status and error message.
func (m *Mutation[In, Out]) State() MutationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := MutationState{Status: m.status}
	if m.err != nil {
		state.Error = m.err.Error()
	}
	return state
}

// Result returns the value of the last successful run.
func (m *Mutation[In, Out]) Result() (Out, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result, m.status == MutationSucceeded
}

// Err returns the error of the last failed run.
func (m *Mutation[In, Out]) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Reset returns the mutation to idle. A pending run is left alone.
func (m *Mutation[In, Out]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == MutationPending {
		return
	}
	var zero Out
	m.status = MutationIdle
	m.result = zero
	m.err = nil
}

// Restore seeds the mutation from a persisted state. Pending and succeeded
// states carry no result across requests and restore as idle.
func (m *Mutation[In, Out]) Restore(state MutationState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero Out
	m.result = zero
	m.err = nil
	m.status = MutationIdle
	if state.Status == MutationFailed {
		m.status = MutationFailed
		m.err = errors.New(state.Error)
	}
}
