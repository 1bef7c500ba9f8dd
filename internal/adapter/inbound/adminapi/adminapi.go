// Package adminapi exposes a small JSON HTTP surface over the action gate so
// an operator can list pending egress approvals and render a verdict from a
// separate process (the "crabpot approve"/"crabpot deny" CLI commands).
package adminapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/crabpot-sandbox/crabpot/internal/domain/actiongate"
)

// Handler serves the pending-approval listing and verdict endpoints.
type Handler struct {
	gate *actiongate.Gate
	log  *slog.Logger
}

// New constructs a Handler over gate.
func New(gate *actiongate.Gate, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{gate: gate, log: log}
}

// Mux returns an http.Handler with every admin route registered.
func (h *Handler) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /approvals", h.handleList)
	mux.HandleFunc("POST /approvals/{domain}/approve", h.handleApprove)
	mux.HandleFunc("POST /approvals/{domain}/deny", h.handleDeny)
	mux.HandleFunc("GET /history", h.handleHistory)
	return mux
}

type pendingResponse struct {
	Domains []string `json:"domains"`
}

func (h *Handler) handleList(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, pendingResponse{Domains: h.gate.GetPending()})
}

type verdictRequest struct {
	Permanent bool `json:"permanent"`
}

type verdictResponse struct {
	Domain string `json:"domain"`
	Status string `json:"status"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")
	if domain == "" {
		h.respondError(w, http.StatusBadRequest, "domain is required")
		return
	}
	var req verdictRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	signaled := h.gate.Approve(domain, req.Permanent)
	status := "approved"
	if !signaled {
		status = "approved (no pending request; policy state updated)"
	}
	h.respondJSON(w, http.StatusOK, verdictResponse{Domain: domain, Status: status})
}

func (h *Handler) handleDeny(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")
	if domain == "" {
		h.respondError(w, http.StatusBadRequest, "domain is required")
		return
	}
	signaled := h.gate.Deny(domain)
	status := "denied"
	if !signaled {
		status = "denied (no pending request; policy state updated)"
	}
	h.respondJSON(w, http.StatusOK, verdictResponse{Domain: domain, Status: status})
}

func (h *Handler) handleHistory(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, h.gate.GetHistory(0))
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("failed to encode JSON response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
