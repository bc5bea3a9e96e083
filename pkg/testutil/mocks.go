// Package testutil holds shared fakes for unitlens tests.
package testutil

import (
	"context"
	"sync"

	"unitlens/pkg/executor/runner"
)

// MockRunner is a shared fake runner.Runner. It records every invocation and
// replays configured responses keyed by Invocation.String().
type MockRunner struct {
	mu          sync.Mutex
	Invocations []runner.Invocation
	Responses   map[string]string
	Errors      map[string]error
	// Default is returned for invocations with no configured response.
	Default string
}

// NewMockRunner creates a MockRunner with initialized maps.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		Responses: make(map[string]string),
		Errors:    make(map[string]error),
	}
}

// Run records inv and returns the configured output or error.
func (m *MockRunner) Run(_ context.Context, inv runner.Invocation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Invocations = append(m.Invocations, inv)
	key := inv.String()
	if err, ok := m.Errors[key]; ok {
		var out string
		if cmdErr, ok := err.(*runner.CommandError); ok {
			out = cmdErr.Output
		}
		return out, err
	}
	if out, ok := m.Responses[key]; ok {
		return out, nil
	}
	return m.Default, nil
}

// SetResponse configures the output for an invocation.
func (m *MockRunner) SetResponse(inv runner.Invocation, output string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[inv.String()] = output
}

// SetError configures the error for an invocation.
func (m *MockRunner) SetError(inv runner.Invocation, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[inv.String()] = err
}

// Last returns the most recent invocation, or the zero value.
func (m *MockRunner) Last() runner.Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Invocations) == 0 {
		return runner.Invocation{}
	}
	return m.Invocations[len(m.Invocations)-1]
}

// Count returns how many invocations were recorded.
func (m *MockRunner) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Invocations)
}
