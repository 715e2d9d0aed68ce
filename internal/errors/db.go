package errors

import (
	"fmt"
	"net/http"
)

// DBError carries the store operation that failed.
type DBError struct {
	Op      string
	Message string
	cause   error
}

func NewDBError(op, message string) *DBError {
	return &DBError{Op: op, Message: message}
}

func (e *DBError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("db %s: %s: %v", e.Op, e.Message, e.cause)
	}
	return fmt.Sprintf("db %s: %s", e.Op, e.Message)
}

func (e *DBError) Unwrap() error { return e.cause }

func (e *DBError) StatusCode() int { return http.StatusInternalServerError }

type DBInternalError struct {
	DBError
}

func NewDBInternalError(op string, err error) *DBInternalError {
	return &DBInternalError{DBError: DBError{Op: op, Message: "internal error", cause: err}}
}

type DBNotFoundError struct {
	DBError
}

func NewDBNotFoundError(op, message string) *DBNotFoundError {
	return &DBNotFoundError{DBError: *NewDBError(op, message)}
}

func (e *DBNotFoundError) StatusCode() int { return http.StatusNotFound }

type DBUniqueViolationError struct {
	DBError
	Column string
}

func (e *DBUniqueViolationError) StatusCode() int { return http.StatusConflict }

type DBForeignKeyViolationError struct {
	DBError
	ForeignKeyTable string
}

func (e *DBForeignKeyViolationError) StatusCode() int { return http.StatusBadRequest }
