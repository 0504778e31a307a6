package handler

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type BanHandler struct {
	rt     Runtime
	logger *zap.Logger
}

func NewBanHandler(rt Runtime, logger *zap.Logger) *BanHandler {
	return &BanHandler{rt: rt, logger: logger}
}

type banRequest struct {
	IP              string `json:"ip"`
	Reason          string `json:"reason"`
	DurationSeconds int64  `json:"duration"`
}

func (h *BanHandler) Ban(w http.ResponseWriter, r *http.Request) {
	var req banRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if _, err := netip.ParseAddr(req.IP); err != nil {
		http.Error(w, "ip must be a valid address", http.StatusBadRequest)
		return
	}

	if err := h.rt.BanIP(r.Context(), req.IP, req.Reason, time.Duration(req.DurationSeconds)*time.Second); err != nil {
		writeError(w, h.rt, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BanHandler) Unban(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if _, err := netip.ParseAddr(ip); err != nil {
		http.Error(w, "ip must be a valid address", http.StatusBadRequest)
		return
	}

	if err := h.rt.UnbanIP(r.Context(), ip); err != nil {
		writeError(w, h.rt, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
