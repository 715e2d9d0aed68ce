package errors

import (
	"fmt"
	"net/http"

	goi18n "github.com/nicksnyder/go-i18n/i18n"
)

// AuthError is a request refused before it reached a service.
type AuthError interface {
	error
	GetId() string
	GetStatusCode() int
	// Message is the caller-facing text in the language of T.
	Message(T goi18n.TranslateFunc) string
}

// AccessError carries the role and action the permission gate refused, if any.
type AccessError struct {
	Id     string
	Code   int
	Role   string
	Action string
	Detail string
}

var _ AuthError = (*AccessError)(nil)

func (err *AccessError) Error() string {
	return fmt.Sprintf("auth [%s]: %s", err.Id, err.Detail)
}

func (err *AccessError) GetId() string { return err.Id }

func (err *AccessError) GetStatusCode() int { return err.Code }

func (err *AccessError) Message(T goi18n.TranslateFunc) string {
	if T == nil {
		return err.Detail
	}
	text := T(err.Id, map[string]any{"Role": err.Role, "Action": err.Action})
	if text == "" || text == err.Id {
		return err.Detail
	}
	return text
}

// NewUnauthorizedError is returned when no trusted identity is attached to the request.
func NewUnauthorizedError(id, detail string) *AccessError {
	return &AccessError{Id: id, Code: http.StatusUnauthorized, Detail: detail}
}

// NewInvalidRoleError is returned for an identity whose role the gate does not know.
func NewInvalidRoleError(role string) *AccessError {
	return &AccessError{
		Id:     "auth.session.invalid_role",
		Code:   http.StatusUnauthorized,
		Role:   role,
		Detail: fmt.Sprintf("unknown role %q", role),
	}
}

// NewActionForbiddenError is returned by the permission gate for a denied action.
func NewActionForbiddenError(role, action string) *AccessError {
	return &AccessError{
		Id:     "auth.permission.denied",
		Code:   http.StatusForbidden,
		Role:   role,
		Action: action,
		Detail: fmt.Sprintf("role %q may not %s", role, action),
	}
}
