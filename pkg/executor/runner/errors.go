package runner

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrInvalidUTF8 is wrapped by an IOError when captured output cannot be
	// decoded as text.
	ErrInvalidUTF8 = errors.New("output is not valid UTF-8")
	// ErrEmptyProgram is wrapped by an IOError when an invocation names no program.
	ErrEmptyProgram = errors.New("empty program")
)

// IO operations reported in IOError.Op.
const (
	OpSpawn   = "spawn"
	OpWait    = "wait"
	OpDecode  = "decode"
	OpTimeout  = "timeout"
	OpCanceled = "canceled"
)

// Kind classifies a runner failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindIO means the command could not be run or its output not captured.
	KindIO
	// KindCommand means the command ran and reported failure.
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindCommand:
		return "command"
	default:
		return "unknown"
	}
}

// IOError is a local failure to spawn, wait on, or decode a child process.
// The wrapped error is for server-side logs, not for clients.
type IOError struct {
	Op      string
	Program string
	Err     error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Program, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// CommandError reports a child that exited non-zero or was killed by a
// signal. Output holds everything the child printed.
type CommandError struct {
	Program  string
	Args     []string
	ExitCode int    // -1 when the child was signaled
	Signal   string // empty unless the child was signaled
	Output   string
}

func (e *CommandError) Error() string {
	if e.Signal != "" {
		return fmt.Sprintf("%s terminated by signal %s", e.Program, e.Signal)
	}
	return fmt.Sprintf("%s exited with status %d", e.Program, e.ExitCode)
}

// Status is the exit code, or the signal name for signaled children.
func (e *CommandError) Status() string {
	if e.Signal != "" {
		return e.Signal
	}
	return strconv.Itoa(e.ExitCode)
}

// IsCanceled reports whether err is an IOError caused by the caller
// abandoning the request rather than by a deadline.
func IsCanceled(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr) && ioErr.Op == OpCanceled
}

// KindOf reports which kind of failure err carries.
func KindOf(err error) Kind {
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return KindIO
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return KindCommand
	}
	return KindUnknown
}
