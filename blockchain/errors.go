package blockchain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies ledger failures.
type ErrorKind string

const (
	// StructuralError: height or hash linkage mismatch, bad merkle root.
	StructuralError ErrorKind = "STRUCTURAL_ERROR"
	// SignatureError: missing or invalid transaction or validator signature.
	SignatureError ErrorKind = "SIGNATURE_ERROR"
	// ConsensusPolicyError: missing or invalid proof, unauthorized signer.
	ConsensusPolicyError ErrorKind = "CONSENSUS_POLICY_ERROR"
	// StorageError: I/O failure, corrupt or undeserializable record.
	StorageError ErrorKind = "STORAGE_ERROR"
	// CapacityError: peer or pool limits exceeded.
	CapacityError ErrorKind = "CAPACITY_ERROR"
)

// LedgerError is the typed error returned by every ledger operation.
type LedgerError struct {
	Kind    ErrorKind
	Message string
	err     error
}

// Error implements the error interface
func (e *LedgerError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause
func (e *LedgerError) Unwrap() error {
	return e.err
}

// Is matches another *LedgerError of the same kind, so errors.Is(err,
// &LedgerError{Kind: StorageError}) works through wrapping.
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Wrap attaches a cause and returns the receiver
func (e *LedgerError) Wrap(err error) *LedgerError {
	e.err = err
	return e
}

// NewError creates a new ledger error
func NewError(kind ErrorKind, message string) *LedgerError {
	return &LedgerError{Kind: kind, Message: message}
}

// NewErrorf creates a new ledger error with a formatted message
func NewErrorf(kind ErrorKind, format string, args ...interface{}) *LedgerError {
	return &LedgerError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first LedgerError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries a LedgerError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
