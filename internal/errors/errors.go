package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AppError is the error type passed between layers. Code is an HTTP status.
type AppError struct {
	ID      string
	Message string
	Code    int
	Cause   error
}

type Option func(*AppError)

func WithCause(err error) Option {
	return func(e *AppError) { e.Cause = err }
}

func WithCode(code int) Option {
	return func(e *AppError) { e.Code = code }
}

func WithID(id string) Option {
	return func(e *AppError) { e.ID = id }
}

// New builds an AppError. Without WithCode the error is internal.
func New(message string, opts ...Option) error {
	e := &AppError{Message: message, Code: http.StatusInternalServerError}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func Internal(message string, opts ...Option) error {
	return New(message, append(opts, WithCode(http.StatusInternalServerError))...)
}

func NotFound(message string, opts ...Option) error {
	return New(message, append(opts, WithCode(http.StatusNotFound))...)
}

func BadRequest(message string, opts ...Option) error {
	return New(message, append(opts, WithCode(http.StatusBadRequest))...)
}

func Conflict(message string, opts ...Option) error {
	return New(message, append(opts, WithCode(http.StatusConflict))...)
}

func Forbidden(message string, opts ...Option) error {
	return New(message, append(opts, WithCode(http.StatusForbidden))...)
}

func Unprocessable(message string, opts ...Option) error {
	return New(message, append(opts, WithCode(http.StatusUnprocessableEntity))...)
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

type statusCoder interface {
	StatusCode() int
}

// Code walks the chain and returns the first status code found.
func Code(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var app *AppError
	if errors.As(err, &app) {
		return app.Code
	}
	var db statusCoder
	if errors.As(err, &db) {
		return db.StatusCode()
	}
	var auth AuthError
	if errors.As(err, &auth) {
		return auth.GetStatusCode()
	}
	return http.StatusInternalServerError
}

// ID returns the first error id found in the chain.
func ID(err error) string {
	var app *AppError
	if errors.As(err, &app) && app.ID != "" {
		return app.ID
	}
	var auth AuthError
	if errors.As(err, &auth) {
		return auth.GetId()
	}
	return ""
}

// Details renders the whole chain on one line for logs.
func Details(err error) string {
	if err == nil {
		return ""
	}
	var parts []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		if app, ok := e.(*AppError); ok {
			if app.ID != "" {
				parts = append(parts, fmt.Sprintf("[%s] %s", app.ID, app.Message))
			} else {
				parts = append(parts, app.Message)
			}
			if app.Cause == nil {
				break
			}
			continue
		}
		parts = append(parts, e.Error())
		break
	}
	return strings.Join(parts, " <- ")
}

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func Join(errs ...error) error { return errors.Join(errs...) }
