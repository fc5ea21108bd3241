package handler

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/higher-guardian/internal/console/service"
	"github.com/xela07ax/higher-guardian/internal/domain"
	"go.uber.org/zap"
)

type NetworkHandler struct {
	service *service.NetworkService
	logger  *zap.Logger
}

func NewNetworkHandler(s *service.NetworkService, logger *zap.Logger) *NetworkHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NetworkHandler{service: s, logger: logger}
}

// BlockedIPs GET /v1/network/blocked
func (h *NetworkHandler) BlockedIPs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.BlockedIPs())
}

// Block POST /v1/network/blocked/{ip}
func (h *NetworkHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.updateBlocklist(w, r, true)
}

// Unblock DELETE /v1/network/blocked/{ip}
func (h *NetworkHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.updateBlocklist(w, r, false)
}

func (h *NetworkHandler) updateBlocklist(w http.ResponseWriter, r *http.Request, blocked bool) {
	ip, err := netip.ParseAddr(chi.URLParam(r, "ip"))
	if err != nil {
		http.Error(w, "invalid ip address", http.StatusBadRequest)
		return
	}

	if blocked {
		err = h.service.Block(r.Context(), ip)
	} else {
		err = h.service.Unblock(r.Context(), ip)
	}
	if err != nil {
		// Локально уже применено, но другие инстансы могли не узнать
		h.logger.Error("failed to update blocklist", zap.String("ip", ip.String()), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rules GET /v1/network/rules
func (h *NetworkHandler) Rules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Rules())
}

// AddRule POST /v1/network/rules — правило добавляется в конец списка.
func (h *NetworkHandler) AddRule(w http.ResponseWriter, r *http.Request) {
	var rule domain.FirewallRule
	if !decode(w, r, &rule) {
		return
	}
	if rule.Name == "" {
		http.Error(w, "rule name is required", http.StatusBadRequest)
		return
	}
	switch rule.Action {
	case domain.FirewallAllow, domain.FirewallBlock, domain.FirewallMonitor:
	default:
		http.Error(w, "action must be ALLOW, BLOCK or MONITOR", http.StatusBadRequest)
		return
	}
	proto, ok := domain.ParseProtocol(string(rule.Protocol))
	if !ok {
		http.Error(w, "unknown protocol", http.StatusBadRequest)
		return
	}
	rule.Protocol = proto
	if rule.Direction == "" {
		rule.Direction = domain.DirectionBoth
	}

	h.service.AddFirewallRule(rule)
	writeJSON(w, http.StatusCreated, rule)
}

// Policy GET /v1/network/policy
func (h *NetworkHandler) Policy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Policy())
}

// ReplacePolicy PUT /v1/network/policy — политика заменяется целиком.
func (h *NetworkHandler) ReplacePolicy(w http.ResponseWriter, r *http.Request) {
	var policy domain.NetworkPolicy
	if !decode(w, r, &policy) {
		return
	}
	h.service.UpdatePolicy(policy)
	writeJSON(w, http.StatusOK, h.service.Policy())
}

// Tunnels GET /v1/network/tunnels
func (h *NetworkHandler) Tunnels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Tunnels())
}

// Suspicious GET /v1/network/suspicious
func (h *NetworkHandler) Suspicious(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.SuspiciousActivities())
}
