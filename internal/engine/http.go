package engine

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/xela07ax/higher-guardian/internal/domain"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Routes маршруты data plane.
func (g *Gateway) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/actions/validate", g.handleAction)
	mux.HandleFunc("POST /v1/transactions/validate", g.handleTransaction)
	mux.HandleFunc("POST /v1/network/connections/validate", g.handleConnection)
	mux.HandleFunc("POST /v1/network/tunnels", g.handleOpenTunnel)
	mux.HandleFunc("DELETE /v1/network/tunnels/{name}", g.handleCloseTunnel)
	mux.HandleFunc("POST /v1/network/tunnels/{name}/traffic", g.handleTraffic)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

// Handler маршруты, обернутые в трассировку, метрики и проверку токена агента.
func (g *Gateway) Handler(tokens *AgentTokens) http.Handler {
	return TracingMiddleware(g.metrics.MetricsMiddleware(tokens.AuthMiddleware(g.Routes())))
}

func (g *Gateway) handleAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := g.ProcessAction(r.Context(), req)
	if err != nil {
		g.writeError(w, err)
		return
	}
	if resp.ApprovalRequired {
		writeJSON(w, http.StatusAccepted, resp)
		return
	}
	// BLOCK это штатный вердикт, а не ошибка запроса
	writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) handleTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := g.ProcessTransaction(r.Context(), req)
	if err != nil {
		g.writeError(w, err)
		return
	}
	if resp.ApprovalRequired {
		writeJSON(w, http.StatusAccepted, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) handleConnection(w http.ResponseWriter, r *http.Request) {
	var req ConnectionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	decision, err := g.ProcessConnection(r.Context(), req)
	if err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (g *Gateway) handleOpenTunnel(w http.ResponseWriter, r *http.Request) {
	var req TunnelRequest
	if !decodeBody(w, r, &req) {
		return
	}

	decision, err := g.OpenTunnel(r.Context(), req)
	if err != nil {
		g.writeError(w, err)
		return
	}
	if !decision.Allowed {
		writeJSON(w, http.StatusForbidden, decision)
		return
	}
	writeJSON(w, http.StatusCreated, decision)
}

func (g *Gateway) handleCloseTunnel(w http.ResponseWriter, r *http.Request) {
	g.CloseTunnel(r.PathValue("name"))
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleTraffic(w http.ResponseWriter, r *http.Request) {
	var req TrafficRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, g.ReportTraffic(r.Context(), r.PathValue("name"), req))
}

// writeError: вид ошибки → HTTP статус. Внутренние детали наружу не отдаем.
func (g *Gateway) writeError(w http.ResponseWriter, err error) {
	switch domain.KindOf(err) {
	case domain.KindTransactionLimitExceeded:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": string(domain.KindTransactionLimitExceeded), "message": err.Error()})
	case domain.KindHumanApprovalRequired:
		writeJSON(w, http.StatusAccepted, map[string]string{"error": string(domain.KindHumanApprovalRequired), "message": err.Error()})
	case domain.KindSystemError, domain.KindEthicalViolation, domain.KindActionBlocked:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": string(domain.KindOf(err)), "message": err.Error()})
	default:
		g.logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		msg := "invalid request body"
		if errors.Is(err, io.EOF) {
			msg = "empty request body"
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": msg})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
