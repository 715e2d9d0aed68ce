package auth

import (
	"net/http"

	"github.com/webitel/inspection-exporter/auth/permission"
)

// Auther is the identity attached to a request.
type Auther interface {
	GetUserId() int64
	GetName() string
	GetRole() permission.Role
}

type Manager interface {
	AuthorizeRequest(r *http.Request) (Auther, error)
}
