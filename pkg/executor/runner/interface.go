package runner

import (
	"context"
	"slices"
	"strconv"
	"strings"
)

// Invocation describes a single program run. It is built fresh per request
// and must not be mutated once handed to a Runner.
type Invocation struct {
	Program string
	Args    []string
	Dir     string   // working directory, empty means inherit
	Env     []string // extra KEY=VALUE pairs appended to the parent environment
}

// String renders the invocation for logs only. It is never parsed by a shell.
func (inv Invocation) String() string {
	parts := make([]string, 0, len(inv.Args)+1)
	parts = append(parts, inv.Program)
	for _, a := range inv.Args {
		if a == "" || strings.ContainsAny(a, " \t\n\"'\\$`;|&<>()") {
			a = strconv.Quote(a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// clone returns a copy that shares no slices with the caller.
func (inv Invocation) clone() Invocation {
	inv.Args = slices.Clone(inv.Args)
	inv.Env = slices.Clone(inv.Env)
	return inv
}

// Runner executes an invocation and returns its combined stdout/stderr.
type Runner interface {
	// Run blocks until the child exits. A nil error means the child exited
	// with status zero. Failures are *IOError or *CommandError.
	Run(ctx context.Context, inv Invocation) (string, error)
}
