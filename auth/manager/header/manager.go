// Package header trusts the identity headers the API gateway injects after it
// has authenticated the caller.
package header

import (
	"net/http"
	"strconv"

	"github.com/webitel/inspection-exporter/auth"
	"github.com/webitel/inspection-exporter/auth/permission"
	"github.com/webitel/inspection-exporter/internal/domain/model"
	"github.com/webitel/inspection-exporter/internal/errors"
)

const (
	UserIDHeader   = "X-Fleet-User-Id"
	UserNameHeader = "X-Fleet-User-Name"
	RoleHeader     = "X-Fleet-Role"
)

type Manager struct{}

func New() *Manager { return &Manager{} }

func (m *Manager) AuthorizeRequest(r *http.Request) (auth.Auther, error) {
	rawID := r.Header.Get(UserIDHeader)
	if rawID == "" {
		return nil, errors.NewUnauthorizedError("auth.session.missing", "missing "+UserIDHeader)
	}
	userID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || userID <= 0 {
		return nil, errors.NewUnauthorizedError("auth.session.missing", "malformed "+UserIDHeader)
	}
	role, ok := permission.ParseRole(r.Header.Get(RoleHeader))
	if !ok {
		return nil, errors.NewInvalidRoleError(r.Header.Get(RoleHeader))
	}
	return model.NewSession(userID, r.Header.Get(UserNameHeader), role)
}
