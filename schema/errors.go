package schema

import (
	"errors"
	"fmt"
)

// ErrSchemaValidation is matched by every *ValidationError.
var ErrSchemaValidation = errors.New("schema: validation failed")

// ErrTypeMismatch is matched by validation errors of kind KindTypeMismatch.
var ErrTypeMismatch = errors.New("schema: port type mismatch")

// Kind classifies a validation failure.
type Kind int

// Validation failure kinds.
const (
	KindUnknownType Kind = iota
	KindUnknownParam
	KindMissingParam
	KindParamType
	KindParamRange
	KindParamLength
	KindUnknownPort
	KindTypeMismatch
)

var kindNames = [...]string{
	KindUnknownType:  "unknown node type",
	KindUnknownParam: "unknown parameter",
	KindMissingParam: "missing parameter",
	KindParamType:    "wrong parameter type",
	KindParamRange:   "parameter out of range",
	KindParamLength:  "wrong length",
	KindUnknownPort:  "unknown port",
	KindTypeMismatch: "type mismatch",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ValidationError identifies the offending node or connection, the field,
// and the expected constraint.
type ValidationError struct {
	Kind         Kind
	NodeID       string
	ConnectionID string
	Field        string
	Expected     string
	Got          string

	// From and To name both endpoints of a mismatched connection.
	From string
	To   string
}

func (e *ValidationError) Error() string {
	msg := "schema: " + e.Kind.String()
	switch {
	case e.Kind == KindTypeMismatch:
		msg += fmt.Sprintf(": connection %q from %s (%s) to %s (%s)", e.ConnectionID, e.From, e.Got, e.To, e.Expected)
		return msg
	case e.ConnectionID != "":
		msg += fmt.Sprintf(": connection %q", e.ConnectionID)
	case e.NodeID != "":
		msg += fmt.Sprintf(": node %q", e.NodeID)
	}
	if e.Field != "" {
		msg += " field " + e.Field
	}
	if e.Expected != "" {
		msg += ": expected " + e.Expected
	}
	if e.Got != "" {
		msg += ", got " + e.Got
	}
	return msg
}

// Is reports ErrSchemaValidation equivalence, and ErrTypeMismatch for
// mismatched connections.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrSchemaValidation:
		return true
	case ErrTypeMismatch:
		return e.Kind == KindTypeMismatch
	}
	return false
}
