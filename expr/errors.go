package expr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingInput is matched by *MissingInputError.
	ErrMissingInput = errors.New("expr: missing input")

	// ErrTypeMismatch is matched by *TypeMismatchError.
	ErrTypeMismatch = errors.New("expr: type mismatch")

	// ErrUnsupportedParam is matched by *UnsupportedParamError.
	ErrUnsupportedParam = errors.New("expr: unsupported parameter value")

	// ErrTranslation is matched by *TranslationError.
	ErrTranslation = errors.New("expr: snippet translation failed")
)

// MissingInputError reports a required input with no connection, or a
// connection to a node that does not exist.
type MissingInputError struct {
	NodeID string
	Port   string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("expr: node %q: missing input %q", e.NodeID, e.Port)
}

// Is reports ErrMissingInput equivalence.
func (e *MissingInputError) Is(target error) bool { return target == ErrMissingInput }

// TypeMismatchError reports an input of the wrong type.
type TypeMismatchError struct {
	NodeID   string
	Port     string
	Expected string
	Got      ValueType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("expr: node %q: input %q: expected %s, got %s", e.NodeID, e.Port, e.Expected, e.Got)
}

// Is reports ErrTypeMismatch equivalence.
func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// UnsupportedParamError reports a parameter value the compiler cannot
// express.
type UnsupportedParamError struct {
	NodeID string
	Param  string
	Value  any
}

func (e *UnsupportedParamError) Error() string {
	return fmt.Sprintf("expr: node %q: unsupported %s %v", e.NodeID, e.Param, e.Value)
}

// Is reports ErrUnsupportedParam equivalence.
func (e *UnsupportedParamError) Is(target error) bool { return target == ErrUnsupportedParam }

// StageError is the failure of one shader stage attempt.
type StageError struct {
	Stage string
	Err   error
}

// TranslationError reports a snippet that failed on every stage. Source is
// the generated module of the first attempt.
type TranslationError struct {
	NodeID string
	Source string
	Stages []StageError
}

func (e *TranslationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "expr: node %q: snippet translation failed", e.NodeID)
	for _, s := range e.Stages {
		fmt.Fprintf(&b, "; %s: %v", s.Stage, s.Err)
	}
	return b.String()
}

// Is reports ErrTranslation equivalence.
func (e *TranslationError) Is(target error) bool { return target == ErrTranslation }

// Unwrap returns the per-stage errors.
func (e *TranslationError) Unwrap() []error {
	out := make([]error, len(e.Stages))
	for i, s := range e.Stages {
		out[i] = s.Err
	}
	return out
}
