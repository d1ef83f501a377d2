// Package errors defines the error kinds shared across the consensus, driver
// and MVCC layers.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Use errors.Is against these to classify a returned
// error; the concrete error returned by the package always wraps one of them.
var (
	// Internal marks an invariant violation or other irrecoverable condition.
	// It is fatal to the task that observes it.
	Internal = errors.New("internal error")
	// Abort marks a pending operation cancelled by a leader change, role
	// transition, or an explicit Abort instruction.
	Abort = errors.New("aborted")
	// ReadOnly marks a mutation attempted in a non-mutable MVCC txn mode.
	ReadOnly = errors.New("transaction is read-only")
	// Serialization marks a detected write-write conflict in MVCC.
	Serialization = errors.New("serialization conflict")
	// Value marks a lookup that referenced a non-existent versioned object.
	Value = errors.New("value not found")
)

// Internalf builds an Internal error with a formatted message.
func Internalf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{Internal}, args...)...)
}

// Valuef builds a Value error with a formatted message.
func Valuef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{Value}, args...)...)
}

// Is reports whether err wraps the given sentinel kind.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}
