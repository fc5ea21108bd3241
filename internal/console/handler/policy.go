package handler

import (
	"net/http"

	"github.com/xela07ax/higher-guardian/internal/console/service"
	"github.com/xela07ax/higher-guardian/internal/domain"
)

type PolicyHandler struct {
	service *service.GuardianService
}

func NewPolicyHandler(s *service.GuardianService) *PolicyHandler {
	return &PolicyHandler{service: s}
}

// Boundaries GET /v1/boundaries
func (h *PolicyHandler) Boundaries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Boundaries())
}

// ReplaceBoundaries PUT /v1/boundaries — каталог заменяется целиком.
func (h *PolicyHandler) ReplaceBoundaries(w http.ResponseWriter, r *http.Request) {
	var boundaries []domain.EthicalBoundary
	if !decode(w, r, &boundaries) {
		return
	}
	if err := h.service.ReplaceBoundaries(boundaries); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.Boundaries())
}
