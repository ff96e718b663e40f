package schedule

import (
	"errors"
	"fmt"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// Constraint names the rule a validation failure broke.
type Constraint string

const (
	ConstraintInterval     Constraint = "interval"
	ConstraintTarget       Constraint = "target"
	ConstraintOverlap      Constraint = "overlap"
	ConstraintParticipants Constraint = "participants"
	ConstraintHost         Constraint = "host"
	ConstraintState        Constraint = "state"
	ConstraintAssignment   Constraint = "assignment"
	ConstraintField        Constraint = "field"
)

// Conflicting record classes reported with ConstraintOverlap.
const (
	ClassBooking  = "booking"
	ClassDowntime = "downtime"
)

// ValidationError is returned before any write when an operation would break
// a ledger or registry rule.
type ValidationError struct {
	Constraint Constraint
	// Class and RecordID identify the conflicting record, when there is one.
	Class    string
	RecordID int64
	Detail   string
}

func (e *ValidationError) Error() string {
	if e.Class != "" {
		return fmt.Sprintf("%s: %s (conflicts with %s %d)", e.Constraint, e.Detail, e.Class, e.RecordID)
	}
	return fmt.Sprintf("%s: %s", e.Constraint, e.Detail)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError without a conflicting record.
func Invalid(c Constraint, format string, args ...any) *ValidationError {
	return &ValidationError{Constraint: c, Detail: fmt.Sprintf(format, args...)}
}

// Conflict builds an overlap ValidationError against an existing record.
func Conflict(class string, id int64, detail string) *ValidationError {
	return &ValidationError{Constraint: ConstraintOverlap, Class: class, RecordID: id, Detail: detail}
}
