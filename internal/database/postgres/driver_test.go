package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/frameload/internal/database"
	"github.com/koustreak/frameload/internal/errs"
	"github.com/stretchr/testify/assert"
)

var (
	_ database.DB = (*Driver)(nil)
	_ database.Tx = (*pgxTx)(nil)
)

func TestClassifySQLState(t *testing.T) {
	tests := []struct {
		code string
		want errs.ErrKind
	}{
		{"08006", errs.ErrKindConnectionFailed},
		{"57P01", errs.ErrKindConnectionFailed},
		{"23505", errs.ErrKindConstraintViolation},
		{"23503", errs.ErrKindConstraintViolation},
		{"28P01", errs.ErrKindPermissionDenied},
		{"42501", errs.ErrKindPermissionDenied},
		{"57014", errs.ErrKindTimeout},
		{"22P02", errs.ErrKindInvalidInput},
		{"42P01", errs.ErrKindQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, classifySQLState(tt.code))
		})
	}
}

func TestMapError(t *testing.T) {
	assert.Nil(t, mapError(nil, "x"))

	assert.True(t, errs.IsTimeout(mapError(context.DeadlineExceeded, "q")))
	assert.True(t, errs.IsNotFound(mapError(fmt.Errorf("wrapped: %w", pgx.ErrNoRows), "q")))
	assert.True(t, errs.IsConnectionFailed(mapError(errors.New("tls handshake"), "q")))

	pgErr := &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
	err := mapError(pgErr, "exec failed")
	assert.True(t, errs.IsConstraintViolation(err))
	assert.Contains(t, err.Error(), "duplicate key value")
	assert.ErrorIs(t, err, pgErr)
}
