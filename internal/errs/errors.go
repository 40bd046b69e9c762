// Package errs provides the unified error type used across frameload.
//
// Every subsystem (database drivers, schema introspection, planning, the
// loader, the filestore) either returns *errs.Error directly or a typed
// error that reports its kind through an ErrKind method. Callers use the
// Is* predicates to branch on the failure without importing the package
// that produced it.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindTimeout, "query timed out", pgErr)
//
//	// In a caller, check the error kind:
//	if errs.IsCyclicDependency(err) {
//	    return fmt.Errorf("schema needs deferred constraints: %w", err)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no rows, no object, no bucket
	ErrKindConnectionFailed         // cannot reach the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL or storage operation error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied / auth failure
	ErrKindConstraintViolation      // unique / foreign key / not null rejected by the database

	ErrKindIntrospection       // schema discovery failed; no partial model is used
	ErrKindSchemaInconsistency // metadata references a table or column that cannot be resolved
	ErrKindCyclicDependency    // foreign keys form a cycle across distinct tables
	ErrKindDuplicateTempID     // a temporary identifier was registered twice
	ErrKindUnresolvedReference // a temporary identifier never resolved to a real key
	ErrKindInsertFailed        // the database rejected a row
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindConstraintViolation:
		return "constraint_violation"
	case ErrKindIntrospection:
		return "introspection"
	case ErrKindSchemaInconsistency:
		return "schema_inconsistency"
	case ErrKindCyclicDependency:
		return "cyclic_dependency"
	case ErrKindDuplicateTempID:
		return "duplicate_temp_id"
	case ErrKindUnresolvedReference:
		return "unresolved_reference"
	case ErrKindInsertFailed:
		return "insert_failed"
	default:
		return "unknown"
	}
}

// Kinded is implemented by typed errors that carry structured detail
// (table names, identifiers) but still belong to one ErrKind.
type Kinded interface {
	error
	ErrKind() ErrKind
}

// Error is the general-purpose error returned by frameload subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrKind implements Kinded.
func (e *Error) ErrKind() ErrKind {
	return e.Kind
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a formatted message.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsConstraintViolation reports whether the database rejected a write
// because of a declared constraint.
func IsConstraintViolation(err error) bool {
	return KindOf(err) == ErrKindConstraintViolation
}

// IsIntrospection reports whether reading the constraint catalog failed.
func IsIntrospection(err error) bool {
	return KindOf(err) == ErrKindIntrospection
}

// IsSchemaInconsistency reports whether the catalog named a table or column
// that could not be found.
func IsSchemaInconsistency(err error) bool {
	return KindOf(err) == ErrKindSchemaInconsistency
}

// IsCyclicDependency reports whether the tables to load form a foreign key cycle.
func IsCyclicDependency(err error) bool {
	return KindOf(err) == ErrKindCyclicDependency
}

// IsDuplicateTempID reports whether a temporary id was carried by two rows
// of one table.
func IsDuplicateTempID(err error) bool {
	return KindOf(err) == ErrKindDuplicateTempID
}

// IsUnresolvedReference reports whether a temporary id could not be mapped
// to a real key.
func IsUnresolvedReference(err error) bool {
	return KindOf(err) == ErrKindUnresolvedReference
}

// IsInsertFailed reports whether the database rejected a fixture row.
func IsInsertFailed(err error) bool {
	return KindOf(err) == ErrKindInsertFailed
}

// KindOf extracts the outermost ErrKind found in the chain.
func KindOf(err error) ErrKind {
	var k Kinded
	if errors.As(err, &k) {
		return k.ErrKind()
	}
	return ErrKindUnknown
}
