package resolve

import (
	"fmt"

	"github.com/koustreak/frameload/internal/errs"
)

// DuplicateTempIDError reports a temporary identifier used as the key of
// two rows of the same table.
type DuplicateTempIDError struct {
	Table string
	ID    TempID
}

func (e *DuplicateTempIDError) Error() string {
	return fmt.Sprintf("temporary id %q registered twice for table %s", e.ID, e.Table)
}

// ErrKind implements errs.Kinded.
func (e *DuplicateTempIDError) ErrKind() errs.ErrKind {
	return errs.ErrKindDuplicateTempID
}

// UnresolvedReferenceError reports a temporary identifier that could not
// be turned into a real value.
type UnresolvedReferenceError struct {
	Table    string // table of the row holding the reference
	Column   string
	RefTable string // empty when Column is not a foreign key
	ID       TempID
	Reason   string
}

func (e *UnresolvedReferenceError) Error() string {
	target := e.RefTable
	if target == "" {
		target = "?"
	}
	return fmt.Sprintf("unresolved temporary id %q in %s.%s (references %s): %s",
		e.ID, e.Table, e.Column, target, e.Reason)
}

// ErrKind implements errs.Kinded.
func (e *UnresolvedReferenceError) ErrKind() errs.ErrKind {
	return errs.ErrKindUnresolvedReference
}
