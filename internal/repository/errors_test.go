package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, KindConstraint},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, KindConstraint},
		{"not null violation", &pgconn.PgError{Code: "23502"}, KindConstraint},
		{"connection exception", &pgconn.PgError{Code: "08006"}, KindConnectivity},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, KindConnectivity},
		{"cannot connect now", &pgconn.PgError{Code: "57P03"}, KindConnectivity},
		{"too many connections", &pgconn.PgError{Code: "53300"}, KindConnectivity},
		{"syntax error", &pgconn.PgError{Code: "42601"}, KindQuery},
		{"undefined column", &pgconn.PgError{Code: "42703"}, KindQuery},
		{"wrapped pg error", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505"}), KindConstraint},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, KindConstraint},
		{"gorm foreign key", gorm.ErrForeignKeyViolated, KindConstraint},
		{"bad conn", driver.ErrBadConn, KindConnectivity},
		{"conn done", sql.ErrConnDone, KindConnectivity},
		{"unexpected eof", io.ErrUnexpectedEOF, KindConnectivity},
		{"deadline", context.DeadlineExceeded, KindConnectivity},
		{"net error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, KindConnectivity},
		{"plain error", errors.New("boom"), KindQuery},
		{"canceled", context.Canceled, KindQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

func TestWrapError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_users_username", Message: "duplicate key value"}
	err := wrapError("create", "User", fmt.Errorf("insert: %w", pgErr))

	var dbErr *DatabaseError
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, "create", dbErr.Op)
	assert.Equal(t, "User", dbErr.Entity)
	assert.Equal(t, KindConstraint, dbErr.Kind)
	assert.Equal(t, "23505", dbErr.Code)
	assert.Equal(t, "idx_users_username", dbErr.Constraint)

	assert.ErrorIs(t, err, ErrDatabase)
	assert.ErrorIs(t, err, ErrConstraintViolation)
	assert.NotErrorIs(t, err, ErrConnectivity)
	assert.NotErrorIs(t, err, ErrSchema)

	var unwrapped *pgconn.PgError
	assert.ErrorAs(t, err, &unwrapped, "the driver error stays reachable")
	assert.Contains(t, err.Error(), "User create: constraint (idx_users_username)")
}

func TestWrapError_PassThrough(t *testing.T) {
	assert.NoError(t, wrapError("get_by_id", "User", nil))

	se := &SchemaError{Entity: "User", Field: "x", Reason: "unknown field"}
	assert.Same(t, se, wrapError("update", "User", se))

	inner := wrapError("delete", "Room", driver.ErrBadConn)
	outer := wrapError("update", "Room", inner)
	assert.Same(t, inner, outer)
	assert.ErrorIs(t, outer, ErrConnectivity)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "schema", outcome(&SchemaError{Entity: "User", Reason: "unknown field"}))
	assert.Equal(t, "constraint", outcome(wrapError("create", "User", gorm.ErrDuplicatedKey)))
	assert.Equal(t, "connectivity", outcome(wrapError("create", "User", io.ErrUnexpectedEOF)))
	assert.Equal(t, "query", outcome(wrapError("create", "User", errors.New("x"))))
	assert.Equal(t, "error", outcome(errors.New("unclassified")))
}
