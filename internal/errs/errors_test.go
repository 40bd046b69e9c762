package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type tableErr struct{ table string }

func (e *tableErr) Error() string    { return "bad table " + e.table }
func (e *tableErr) ErrKind() ErrKind { return ErrKindUnresolvedReference }

func TestError_Format(t *testing.T) {
	cause := errors.New("dial tcp: refused")

	assert.Equal(t, "[connection_failed] ping failed: dial tcp: refused",
		Wrap(ErrKindConnectionFailed, "ping failed", cause).Error())
	assert.Equal(t, "[invalid_input] empty table name",
		New(ErrKindInvalidInput, "empty table name").Error())
	assert.Equal(t, "[cyclic_dependency] 2 tables",
		Newf(ErrKindCyclicDependency, "%d tables", 2).Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ErrKindQueryFailed, "query failed", cause)

	assert.ErrorIs(t, err, cause)
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
	}{
		{"not found", New(ErrKindNotFound, "x"), IsNotFound},
		{"timeout", New(ErrKindTimeout, "x"), IsTimeout},
		{"connection", New(ErrKindConnectionFailed, "x"), IsConnectionFailed},
		{"query", New(ErrKindQueryFailed, "x"), IsQueryFailed},
		{"invalid input", New(ErrKindInvalidInput, "x"), IsInvalidInput},
		{"permission", New(ErrKindPermissionDenied, "x"), IsPermissionDenied},
		{"constraint", New(ErrKindConstraintViolation, "x"), IsConstraintViolation},
		{"introspection", New(ErrKindIntrospection, "x"), IsIntrospection},
		{"inconsistency", New(ErrKindSchemaInconsistency, "x"), IsSchemaInconsistency},
		{"cycle", New(ErrKindCyclicDependency, "x"), IsCyclicDependency},
		{"duplicate", New(ErrKindDuplicateTempID, "x"), IsDuplicateTempID},
		{"insert", New(ErrKindInsertFailed, "x"), IsInsertFailed},
		{"typed error", &tableErr{table: "region"}, IsUnresolvedReference},
		{"wrapped typed error", fmt.Errorf("loading: %w", &tableErr{table: "region"}), IsUnresolvedReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.pred(tt.err))
		})
	}
}

func TestKindOf_Plain(t *testing.T) {
	assert.Equal(t, ErrKindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, ErrKindUnknown, KindOf(nil))
	assert.False(t, IsNotFound(errors.New("plain")))
}
