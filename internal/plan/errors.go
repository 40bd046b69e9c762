package plan

import (
	"fmt"
	"strings"

	"github.com/koustreak/frameload/internal/errs"
)

// CyclicDependencyError reports foreign keys that form a cycle across
// distinct tables. No load order exists for Tables.
type CyclicDependencyError struct {
	// Tables could not be ordered, in input order.
	Tables []string
	// Cycle is one dependency cycle among Tables, first table repeated last.
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	msg := fmt.Sprintf("cyclic foreign key dependency among tables [%s]", strings.Join(e.Tables, ", "))
	if len(e.Cycle) > 0 {
		msg += ": " + strings.Join(e.Cycle, " -> ")
	}
	return msg
}

// ErrKind implements errs.Kinded.
func (e *CyclicDependencyError) ErrKind() errs.ErrKind {
	return errs.ErrKindCyclicDependency
}
