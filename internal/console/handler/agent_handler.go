package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/higher-guardian/internal/console/service"
	"github.com/xela07ax/higher-guardian/internal/domain"
)

type AgentHandler struct {
	service *service.GuardianService
}

func NewAgentHandler(s *service.GuardianService) *AgentHandler {
	return &AgentHandler{service: s}
}

// List GET /v1/agents
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Agents())
}

// Get GET /v1/agents/{id}
func (h *AgentHandler) Get(w http.ResponseWriter, r *http.Request) {
	agent, ok := h.service.Agent(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "Agent not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

// Upsert PUT /v1/agents/{id}. Регистрация агента — upsert, ID берется из пути.
func (h *AgentHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var profile domain.AISystemProfile
	if !decode(w, r, &profile) {
		return
	}
	profile.ID = chi.URLParam(r, "id")

	if err := h.service.UpsertAgent(profile); err != nil {
		writeError(w, err)
		return
	}
	agent, _ := h.service.Agent(profile.ID)
	writeJSON(w, http.StatusOK, agent)
}

// GetLimits GET /v1/agents/{id}/limits — лимиты и потраченное за день.
func (h *AgentHandler) GetLimits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Limits(chi.URLParam(r, "id")))
}

// SetLimits PUT /v1/agents/{id}/limits
func (h *AgentHandler) SetLimits(w http.ResponseWriter, r *http.Request) {
	var req service.Limits
	if !decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.service.SetLimits(id, req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.Limits(id))
}

// ResetSpending POST /v1/transactions/reset — новый торговый день.
func (h *AgentHandler) ResetSpending(w http.ResponseWriter, r *http.Request) {
	h.service.ResetDailySpending()
	w.WriteHeader(http.StatusNoContent)
}
