package model

import (
	"github.com/webitel/inspection-exporter/auth/permission"
	"github.com/webitel/inspection-exporter/internal/errors"
)

type Session struct {
	userID int64
	name   string
	role   permission.Role
}

func NewSession(userID int64, name string, role permission.Role) (*Session, error) {
	if userID == 0 {
		return nil, errors.New("userID is required")
	}
	if _, ok := permission.ParseRole(string(role)); !ok {
		return nil, errors.New("valid role is required")
	}
	return &Session{userID: userID, name: name, role: role}, nil
}

func (s *Session) GetUserId() int64         { return s.userID }
func (s *Session) GetName() string          { return s.name }
func (s *Session) GetRole() permission.Role { return s.role }
