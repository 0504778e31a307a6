package domain

import "errors"

var (
	// ErrEmptySnapshot: у ресурса еще нет данных.
	ErrEmptySnapshot = errors.New("snapshot is empty")
	// ErrUnauthorized: админ-API ответил 401, нужен повторный логин.
	ErrUnauthorized = errors.New("admin session is not authenticated")
)

// Session: состояние аутентификации админки.
type Session struct {
	Authenticated bool   `json:"authenticated"`
	CSRFToken     string `json:"csrf_token"`
	Method        string `json:"method,omitempty"` // cookie, bearer
}

// Normalize гарантирует инвариант: без аутентификации CSRF-токена нет.
func (s Session) Normalize() Session {
	if !s.Authenticated {
		return Session{}
	}
	return s
}

// SessionInfo: ответ GET /admin/session.
type SessionInfo struct {
	Authenticated bool   `json:"authenticated"`
	Method        string `json:"method"`
	CSRFToken     string `json:"csrf_token"`
}
