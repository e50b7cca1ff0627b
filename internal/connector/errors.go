package connector

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorClass separates errors raised by the server for a bad statement from
// errors of the transport itself
type ErrorClass int

const (
	// ClassConnectivity covers lost connections, refused connections, server
	// shutdown and anything not reported by the server as a statement error
	ClassConnectivity ErrorClass = iota
	// ClassStatement covers syntax and semantic errors of a statement
	ClassStatement
)

func (c ErrorClass) String() string {
	switch c {
	case ClassStatement:
		return "statement"
	default:
		return "connectivity"
	}
}

// QueryError wraps an error returned while executing SQL
type QueryError struct {
	Class ErrorClass
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("%s error: %v", e.Class, e.Err)
	}
	return fmt.Sprintf("%s error running %q: %v", e.Class, e.Query, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func newQueryError(query string, err error) *QueryError {
	return &QueryError{Class: Classify(err), Query: query, Err: err}
}

// Classify maps a driver error onto an ErrorClass. Server errors are statement
// errors except SQLSTATE class 08 (connection exception) and 57P (operator
// intervention: shutdown, crash, cannot connect now).
func Classify(err error) ErrorClass {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Class
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P") {
			return ClassConnectivity
		}
		return ClassStatement
	}
	return ClassConnectivity
}

// IsStatementError reports whether err is a statement-level error
func IsStatementError(err error) bool {
	return err != nil && Classify(err) == ClassStatement
}
