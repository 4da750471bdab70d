package migrate

import (
	"errors"
	"fmt"
)

// ErrDuplicateKey classifies a store error as a uniqueness violation on the
// record being written. Target store implementations wrap their
// driver-specific error with this sentinel; the engine treats it as an
// expected, recoverable conflict and skips the record.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrIntegrity classifies any other integrity-constraint violation, such as
// a foreign key referencing a subscriber missing from the target. Expected
// and recoverable at record granularity.
var ErrIntegrity = errors.New("integrity constraint violation")

// ConflictError reports that existing currency metadata does not match what
// the caller supplied. The resolver refuses to silently overwrite currency
// metadata; an operator must resolve the conflict out of band.
type ConflictError struct {
	Code  string
	Field string
	Have  string
	Want  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("currency %s: stored %s %q conflicts with supplied %q",
		e.Code, e.Field, e.Have, e.Want)
}

// InvariantError reports that the store no longer satisfies the engine's
// assumptions (duplicate rows behind a unique key, a failed read-back).
// It is never handled locally: the run aborts so an operator can intervene
// before more damage accumulates.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "store invariant violated: " + e.Msg
}
