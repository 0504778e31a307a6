package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/shuma-dashboard/internal/draft"
	"go.uber.org/zap"
)

type ConfigHandler struct {
	rt     Runtime
	logger *zap.Logger
}

func NewConfigHandler(rt Runtime, logger *zap.Logger) *ConfigHandler {
	return &ConfigHandler{rt: rt, logger: logger}
}

type saveConfigRequest struct {
	Section string       `json:"section"`
	Values  draft.Values `json:"values"`
}

// Save отправляет секцию формы и возвращает новый конфиг сервера.
func (h *ConfigHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveConfigRequest
	if err := decodeJSON(r, &req); err != nil || req.Section == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	snap, err := h.rt.SaveConfig(r.Context(), req.Section, req.Values)
	if err != nil {
		writeError(w, h.rt, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(snap.Data)
}

type dirtyResponse struct {
	Section string `json:"section"`
	Dirty   bool   `json:"dirty"`
}

// Dirty сравнивает значения формы с базисом секции.
func (h *ConfigHandler) Dirty(w http.ResponseWriter, r *http.Request) {
	section := chi.URLParam(r, "section")
	var values draft.Values
	if err := decodeJSON(r, &values); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	dirty, err := h.rt.IsDraftDirty(section, values)
	if err != nil {
		writeError(w, h.rt, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dirtyResponse{Section: section, Dirty: dirty})
}
