package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/Gopher0727/AltMur/internal/schema"
)

var (
	// ErrSchema matches schema errors: unknown fields, read-only fields and
	// entities without a primary key.
	ErrSchema = schema.ErrSchema
	// ErrDatabase matches every *DatabaseError.
	ErrDatabase = errors.New("database error")
	// ErrConstraintViolation matches uniqueness, foreign-key, not-null and
	// check violations.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrConnectivity matches failures to reach or stay connected to the
	// database.
	ErrConnectivity = errors.New("database connectivity failure")
)

type SchemaError = schema.SchemaError

// ErrorKind classifies a DatabaseError.
type ErrorKind int

const (
	KindQuery ErrorKind = iota
	KindConstraint
	KindConnectivity
)

func (k ErrorKind) String() string {
	switch k {
	case KindConstraint:
		return "constraint"
	case KindConnectivity:
		return "connectivity"
	default:
		return "query"
	}
}

// DatabaseError is a failed database call, classified by Kind.
type DatabaseError struct {
	Op         string
	Entity     string
	Kind       ErrorKind
	Code       string // SQLSTATE, when the server sent one
	Constraint string
	Err        error
}

func (e *DatabaseError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Entity, e.Op, e.Kind)
	if e.Constraint != "" {
		msg += " (" + e.Constraint + ")"
	}
	return msg + ": " + e.Err.Error()
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

func (e *DatabaseError) Is(target error) bool {
	switch target {
	case ErrDatabase:
		return true
	case ErrConstraintViolation:
		return e.Kind == KindConstraint
	case ErrConnectivity:
		return e.Kind == KindConnectivity
	}
	return false
}

// wrapError classifies err as a *DatabaseError. Schema errors and errors
// that are already classified pass through unchanged.
func wrapError(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	var dbErr *DatabaseError
	if errors.Is(err, ErrSchema) || errors.As(err, &dbErr) {
		return err
	}

	e := &DatabaseError{Op: op, Entity: entity, Kind: classify(err), Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		e.Code = pgErr.Code
		e.Constraint = pgErr.ConstraintName
	}
	return e
}

func classify(err error) ErrorKind {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyCode(pgErr.Code)
	}

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gorm.ErrForeignKeyViolated):
		return KindConstraint
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, context.DeadlineExceeded),
		pgconn.Timeout(err):
		return KindConnectivity
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return KindConnectivity
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindConnectivity
	}
	return KindQuery
}

// classifyCode maps a SQLSTATE to a kind: class 23 is integrity constraint
// violation, class 08 connection exception. 57P01-57P03 are server
// shutdown/unavailable, 53300 is too_many_connections.
func classifyCode(code string) ErrorKind {
	switch {
	case strings.HasPrefix(code, "23"):
		return KindConstraint
	case strings.HasPrefix(code, "08"),
		code == "57P01", code == "57P02", code == "57P03",
		code == "53300":
		return KindConnectivity
	}
	return KindQuery
}

// outcome labels an operation result for metrics.
func outcome(err error) string {
	var dbErr *DatabaseError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSchema):
		return "schema"
	case errors.As(err, &dbErr):
		return dbErr.Kind.String()
	}
	return "error"
}
