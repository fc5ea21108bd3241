package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/higher-guardian/internal/console/service"
	"github.com/xela07ax/higher-guardian/internal/infra/auth"
)

type DecisionHandler struct {
	service *service.GuardianService
}

func NewDecisionHandler(s *service.GuardianService) *DecisionHandler {
	return &DecisionHandler{service: s}
}

// List GET /v1/decisions?agent_id=...
func (h *DecisionHandler) List(w http.ResponseWriter, r *http.Request) {
	decisions := h.service.Decisions()
	if agentID := r.URL.Query().Get("agent_id"); agentID != "" {
		filtered := decisions[:0]
		for _, d := range decisions {
			if d.AgentID == agentID {
				filtered = append(filtered, d)
			}
		}
		decisions = filtered
	}
	writeJSON(w, http.StatusOK, decisions)
}

type OverrideRequest struct {
	Approved bool `json:"approved"`
}

// Override POST /v1/decisions/{id}/override
func (h *DecisionHandler) Override(w http.ResponseWriter, r *http.Request) {
	var req OverrideRequest
	if !decode(w, r, &req) {
		return
	}

	decision, err := h.service.Override(r.Context(), chi.URLParam(r, "id"), req.Approved, auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}
