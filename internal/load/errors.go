package load

import (
	"fmt"

	"github.com/koustreak/frameload/internal/errs"
	"github.com/koustreak/frameload/internal/resolve"
)

// InsertError reports a row the database rejected. The load stops at the
// first such row.
type InsertError struct {
	Table string
	Row   int            // index of the row within its table's frames
	ID    resolve.TempID // the row's own temporary id, if it had one
	Op    string         // "insert" or "update"
	Cause error
}

func (e *InsertError) Error() string {
	id := ""
	if e.ID != "" {
		id = fmt.Sprintf(" (temporary id %q)", e.ID)
	}
	return fmt.Sprintf("%s %s row %d%s: %v", e.Op, e.Table, e.Row, id, e.Cause)
}

func (e *InsertError) Unwrap() error { return e.Cause }

// ErrKind implements errs.Kinded.
func (e *InsertError) ErrKind() errs.ErrKind {
	return errs.ErrKindInsertFailed
}
