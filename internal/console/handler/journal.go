package handler

import (
	"net/http"
	"strconv"

	"github.com/xela07ax/shuma-dashboard/internal/console/service"
	"go.uber.org/zap"
)

type JournalHandler struct {
	svc    *service.JournalService
	logger *zap.Logger
}

func NewJournalHandler(svc *service.JournalService, logger *zap.Logger) *JournalHandler {
	return &JournalHandler{svc: svc, logger: logger}
}

// GetEntries: /api/v1/journal?tab=config&limit=50
func (h *JournalHandler) GetEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	entries, err := h.svc.FetchRecent(r.Context(), q.Get("tab"), limit)
	if err != nil {
		h.logger.Error("failed to fetch journal", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "journal unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
