package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/shuma-dashboard/internal/domain"
	"github.com/xela07ax/shuma-dashboard/internal/route"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	rt     Runtime
	logger *zap.Logger
}

func NewDashboardHandler(rt Runtime, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{rt: rt, logger: logger}
}

// GetState отдает состояние; ?data=1 включает тела снапшотов.
func (h *DashboardHandler) GetState(w http.ResponseWriter, r *http.Request) {
	includeData := r.URL.Query().Get("data") == "1"
	writeJSON(w, http.StatusOK, h.rt.State().View(includeData))
}

func (h *DashboardHandler) GetTelemetry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.rt.Telemetry())
}

type applyTabRequest struct {
	SyncHash    *bool  `json:"syncHash"`
	ReplaceHash bool   `json:"replaceHash"`
	Force       bool   `json:"force"`
	Reason      string `json:"reason"`
}

type tabResponse struct {
	ActiveTab domain.Tab `json:"activeTab"`
}

// ApplyTab: клик по вкладке. Невалидное имя нормализуется, а не отклоняется.
func (h *DashboardHandler) ApplyTab(w http.ResponseWriter, r *http.Request) {
	var req applyTabRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
	}
	syncHash := true
	if req.SyncHash != nil {
		syncHash = *req.SyncHash
	}

	tab := h.rt.ApplyActiveTab(chi.URLParam(r, "tab"), route.Options{
		Reason:      domain.RefreshReason(req.Reason),
		SyncHash:    syncHash,
		ReplaceHash: req.ReplaceHash,
		Force:       req.Force,
	})
	writeJSON(w, http.StatusOK, tabResponse{ActiveTab: tab})
}

type hashRequest struct {
	Hash string `json:"hash"`
}

func (h *DashboardHandler) SetHash(w http.ResponseWriter, r *http.Request) {
	var req hashRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, tabResponse{ActiveTab: h.rt.SetHash(req.Hash)})
}

// Refresh выполняет обновление синхронно и отвечает статусом вкладки.
// Ошибка загрузки уже отражена в статусе вкладки, поэтому ответ 200; исключение: 401.
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	tab := domain.NormalizeTab(chi.URLParam(r, "tab"))
	reason := domain.RefreshReason(r.URL.Query().Get("reason"))

	err := h.rt.RefreshTab(tab, reason)
	if err != nil && isUnauthorized(err) {
		writeError(w, h.rt, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.rt.State().TabStatus(tab))
}

type visibilityRequest struct {
	Visible bool `json:"visible"`
}

func (h *DashboardHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	h.rt.SetVisible(req.Visible)
	w.WriteHeader(http.StatusNoContent)
}
