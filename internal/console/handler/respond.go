package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xela07ax/shuma-dashboard/internal/adminapi"
	"github.com/xela07ax/shuma-dashboard/internal/domain"
	"github.com/xela07ax/shuma-dashboard/internal/draft"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}

// writeError переводит ошибки рантайма в HTTP-статусы. 401 несет URL логина для редиректа.
func writeError(w http.ResponseWriter, rt Runtime, logger *zap.Logger, err error) {
	var apiErr *adminapi.APIError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized", Redirect: rt.LoginURL()})
	case errors.Is(err, draft.ErrUnknownSection):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, draft.ErrReadOnly):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, adminapi.ErrCircuitOpen):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		writeJSON(w, apiErr.Status, errorResponse{Error: apiErr.Message})
	case errors.As(err, &apiErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: apiErr.Error()})
	default:
		logger.Error("command failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
