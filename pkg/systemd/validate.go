package systemd

import "strings"

// Limits bounds caller-supplied values before they reach a command line.
type Limits struct {
	MaxUnitLength  int
	MaxSinceLength int
}

// DefaultLimits returns the limits used by the HTTP and MCP front ends.
func DefaultLimits() Limits {
	return Limits{
		MaxUnitLength:  256,
		MaxSinceLength: 128,
	}
}

// ValidateUnit checks a unit name. Values travel as single argv elements,
// so shell metacharacters are fine; a leading '-' is not, since the tool
// would parse it as an option.
func (l Limits) ValidateUnit(unit string) error {
	switch {
	case unit == "":
		return &ValidationError{Field: "unit", Message: "unit is required"}
	case len(unit) > l.MaxUnitLength:
		return &ValidationError{Field: "unit", Message: "unit exceeds maximum length"}
	case strings.ContainsRune(unit, 0):
		return &ValidationError{Field: "unit", Message: "unit contains a NUL byte"}
	case strings.HasPrefix(unit, "-"):
		return &ValidationError{Field: "unit", Message: "unit must not start with '-'"}
	}
	return nil
}

// ValidateSince checks a since expression. Empty means no lower bound.
func (l Limits) ValidateSince(since string) error {
	switch {
	case len(since) > l.MaxSinceLength:
		return &ValidationError{Field: "since", Message: "since exceeds maximum length"}
	case strings.ContainsRune(since, 0):
		return &ValidationError{Field: "since", Message: "since contains a NUL byte"}
	}
	return nil
}

// ValidationError represents a rejected input value.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
