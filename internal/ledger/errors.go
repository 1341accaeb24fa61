package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrDataAccess matches every DataAccessError.
	ErrDataAccess = errors.New("ledger: data access failed")
	// ErrFeatureNotProvisioned reports that an optional source does not exist in this deployment.
	ErrFeatureNotProvisioned = errors.New("ledger: feature not provisioned")
	// ErrPrivilegedUnavailable reports that the privileged bulk accessor cannot be used.
	ErrPrivilegedUnavailable = errors.New("ledger: privileged accessor unavailable")
	// ErrInvalidInput reports a request the engine refuses to query for.
	ErrInvalidInput = errors.New("ledger: invalid input")
	// ErrCustomerNotFound reports a customer missing from the contact registry.
	ErrCustomerNotFound = errors.New("ledger: customer not found")
	// ErrInvariantViolation matches every InvariantViolation.
	ErrInvariantViolation = errors.New("ledger: invariant violation")
)

// DataAccessError wraps a failure of a source adapter.
type DataAccessError struct {
	Source string
	Err    error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("ledger: source %s: %v", e.Source, e.Err)
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrDataAccess) match.
func (e *DataAccessError) Is(target error) bool {
	return target == ErrDataAccess
}

// InvariantViolation reports an internal consistency check that failed.
type InvariantViolation struct {
	Check  string
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("ledger: invariant %s violated: %s", e.Check, e.Detail)
}

// Is lets errors.Is(err, ErrInvariantViolation) match.
func (e *InvariantViolation) Is(target error) bool {
	return target == ErrInvariantViolation
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
