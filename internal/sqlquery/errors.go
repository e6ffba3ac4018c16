// File path: internal/sqlquery/errors.go
package sqlquery

import (
	"errors"
	"fmt"
)

// ErrSelectionEmpty signals that a manual selection step dropped every
// candidate; the flow re-prompts the same stage instead of advancing.
var ErrSelectionEmpty = errors.New("selection empty")

// Rejection reason codes. These are the only strings reported to users for a
// rejected plan; rejected query text and out-of-catalog identifiers stay out
// of responses and logs.
const (
	ReasonNoColumns        = "no_columns"
	ReasonUnknownTable     = "unknown_table"
	ReasonUnknownColumn    = "unknown_column"
	ReasonUnjoinableTables = "unjoinable_tables"
	ReasonUnsafePredicate  = "unsafe_predicate"
	ReasonForbiddenVerb    = "forbidden_verb"
)

// Rejected is returned by the guard when a plan violates the allow-list. The
// guard never repairs a dangerous plan; the only additive fix it applies is
// the default row limit.
type Rejected struct {
	Reason string
}

func (r *Rejected) Error() string {
	return "query rejected: " + r.Reason
}

// AsRejected unwraps a guard rejection from an error chain.
func AsRejected(err error) (*Rejected, bool) {
	var rejected *Rejected
	if errors.As(err, &rejected) {
		return rejected, true
	}
	return nil, false
}

// ExecutionError wraps a failure from the data store. Timeout distinguishes
// deadline expiry from transport or engine errors.
type ExecutionError struct {
	Err     error
	Timeout bool
}

func (e *ExecutionError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("query execution timed out: %v", e.Err)
	}
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
