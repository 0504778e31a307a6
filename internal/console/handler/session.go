package handler

import (
	"errors"
	"net/http"

	"github.com/xela07ax/shuma-dashboard/internal/domain"
	"go.uber.org/zap"
)

type SessionHandler struct {
	rt     Runtime
	logger *zap.Logger
}

func NewSessionHandler(rt Runtime, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{rt: rt, logger: logger}
}

func (h *SessionHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if !h.rt.RestoreSession(r.Context()) {
		writeError(w, h.rt, h.logger, domain.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, h.rt.State().View(false).Session)
}

type logoutResponse struct {
	Redirect string `json:"redirect"`
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, logoutResponse{Redirect: h.rt.Logout(r.Context())})
}

func isUnauthorized(err error) bool {
	return errors.Is(err, domain.ErrUnauthorized)
}
