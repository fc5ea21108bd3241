package engine

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/higher-guardian/internal/audit"
	"github.com/xela07ax/higher-guardian/internal/domain"
	"go.uber.org/zap"
)

// ActionValidator Guardian.
type ActionValidator interface {
	ValidateAIAction(ctx context.Context, action domain.AIAction) (*domain.GuardianDecision, error)
}

// TransactionValidator TransactionMonitor.
type TransactionValidator interface {
	ValidateTransaction(tx domain.Transaction) error
}

// NetworkGuard NetworkSecurityMonitor и мост туннелей.
type NetworkGuard interface {
	ValidateConnection(ip netip.Addr, port uint16, proto domain.Protocol) domain.ConnectionDecision
	ValidateTunnelCreation(cfg domain.WireGuardConfig) domain.ConnectionDecision
	AddActiveTunnel(name string)
	RemoveActiveTunnel(name string)
	MonitorWireGuardTunnel(cfg domain.WireGuardConfig, bytesSent, bytesReceived uint64) domain.ConnectionDecision
	MonitorTraffic(tunnel string, bytesSent, bytesReceived uint64) domain.ConnectionDecision
}

// ActivitySink SystemMonitor.
type ActivitySink interface {
	LogActivity(record domain.ActivityRecord)
}

// Типы активности data plane, помимо решений Guardian.
const (
	ActivityTransactionRejected = "transaction_rejected"
	ActivityConnectionBlocked   = "connection_blocked"
	ActivityTunnelRejected      = "tunnel_rejected"
)

// Gateway единый пайплайн data plane для HTTP и gRPC.
type Gateway struct {
	guardian     ActionValidator
	transactions TransactionValidator
	network      NetworkGuard
	activity     ActivitySink
	auditor      audit.Auditor
	metrics      *Metrics
	logger       *zap.Logger
}

func NewGateway(
	guardian ActionValidator,
	transactions TransactionValidator,
	network NetworkGuard,
	activity ActivitySink,
	auditor audit.Auditor,
	metrics *Metrics,
	logger *zap.Logger,
) *Gateway {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		guardian:     guardian,
		transactions: transactions,
		network:      network,
		activity:     activity,
		auditor:      auditor,
		metrics:      metrics,
		logger:       logger.Named("gateway"),
	}
}

type ActionRequest struct {
	AgentID    string                 `json:"agent_id"`
	ActionType string                 `json:"action_type"`
	Payload    map[string]interface{} `json:"payload"`
}

// ActionResponse ответ data plane. Decision пуст, если действие ушло на апрув.
type ActionResponse struct {
	ActionID         string                   `json:"action_id"`
	Status           string                   `json:"status"`
	Decision         *domain.GuardianDecision `json:"decision,omitempty"`
	ApprovalRequired bool                     `json:"approval_required,omitempty"`
	Reason           string                   `json:"reason,omitempty"`
}

// Статусы ответа data plane.
const (
	StatusApproved        = "approved"
	StatusRejected        = "rejected"
	StatusPendingApproval = "pending_approval"
)

// ProcessAction вызывается и из HTTP, и из gRPC.
// Ошибка возвращается только для некорректного запроса и внутренних сбоев.
func (g *Gateway) ProcessAction(ctx context.Context, req ActionRequest) (ActionResponse, error) {
	if req.AgentID == "" {
		return ActionResponse{}, domain.NewError(domain.KindSystemError, "agent_id is required")
	}

	action := domain.NewAIAction(req.AgentID, req.ActionType, req.Payload)
	resp := ActionResponse{ActionID: action.ID}

	decision, err := g.guardian.ValidateAIAction(ctx, action)
	switch {
	case errors.Is(err, domain.ErrHumanApprovalRequired):
		resp.Status = StatusPendingApproval
		resp.ApprovalRequired = true
		resp.Reason = err.Error()
		return resp, nil
	case err != nil:
		return ActionResponse{}, err
	}

	resp.Decision = decision
	resp.Status = StatusRejected
	if decision.Approved {
		resp.Status = StatusApproved
	}
	return resp, nil
}

type TransactionRequest struct {
	AgentID         string  `json:"agent_id"`
	Amount          float64 `json:"amount"`
	Recipient       string  `json:"recipient"`
	TransactionType string  `json:"transaction_type"`
}

type TransactionResponse struct {
	TransactionID    string `json:"transaction_id"`
	Status           string `json:"status"`
	ApprovalRequired bool   `json:"approval_required,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

// ProcessTransaction проверяет платеж и пишет отказы в аудит и журнал активности.
func (g *Gateway) ProcessTransaction(ctx context.Context, req TransactionRequest) (TransactionResponse, error) {
	if req.AgentID == "" {
		return TransactionResponse{}, domain.NewError(domain.KindSystemError, "agent_id is required")
	}

	tx := domain.Transaction{
		ID:              uuid.New().String(),
		AgentID:         req.AgentID,
		Amount:          req.Amount,
		Recipient:       req.Recipient,
		TransactionType: req.TransactionType,
		Timestamp:       time.Now().UTC(),
	}
	resp := TransactionResponse{TransactionID: tx.ID, Status: StatusApproved}

	err := g.transactions.ValidateTransaction(tx)
	event := audit.Event{
		ID:         uuid.New().String(),
		TraceID:    audit.TraceIDFromContext(ctx),
		Source:     audit.SourceTransaction,
		AgentID:    tx.AgentID,
		ActionID:   tx.ID,
		ActionType: tx.TransactionType,
		Payload: map[string]interface{}{
			"amount":    tx.Amount,
			"recipient": tx.Recipient,
		},
		Timestamp: tx.Timestamp,
	}

	switch {
	case err == nil:
		event.Status = audit.StatusApproved
		event.Approved = true
	case errors.Is(err, domain.ErrHumanApprovalRequired):
		resp.Status = StatusPendingApproval
		resp.ApprovalRequired = true
		resp.Reason = err.Error()
		event.Status = audit.StatusApprovalRequired
		event.Reasoning = err.Error()
		g.logActivity(tx.AgentID, domain.ActivityHumanApprovalRequired, domain.RiskHigh, map[string]interface{}{
			"transaction_id": tx.ID,
			"amount":         tx.Amount,
		})
	case errors.Is(err, domain.ErrTransactionLimitExceeded):
		event.Status = audit.StatusRejected
		event.Reasoning = err.Error()
		g.log(event)
		g.logActivity(tx.AgentID, ActivityTransactionRejected, domain.RiskHigh, map[string]interface{}{
			"transaction_id": tx.ID,
			"amount":         tx.Amount,
		})
		return resp, err
	default:
		return TransactionResponse{}, err
	}

	g.log(event)
	return resp, nil
}

type ConnectionRequest struct {
	AgentID  string `json:"agent_id"`
	IP       string `json:"ip"`
	Port     uint16 `json:"port"`
	Protocol string `json:"protocol"`
}

// ProcessConnection проверка исходящего подключения агента.
func (g *Gateway) ProcessConnection(ctx context.Context, req ConnectionRequest) (domain.ConnectionDecision, error) {
	ip, err := netip.ParseAddr(req.IP)
	if err != nil {
		return domain.ConnectionDecision{}, domain.NewError(domain.KindSystemError, "invalid ip %q", req.IP)
	}
	proto, ok := domain.ParseProtocol(req.Protocol)
	if !ok {
		return domain.ConnectionDecision{}, domain.NewError(domain.KindSystemError, "unknown protocol %q", req.Protocol)
	}

	decision := g.network.ValidateConnection(ip, req.Port, proto)
	if !decision.Allowed {
		g.networkRejected(ctx, req.AgentID, ActivityConnectionBlocked, decision, map[string]interface{}{
			"ip":       ip.String(),
			"port":     req.Port,
			"protocol": string(proto),
		})
	}
	return decision, nil
}

type TunnelRequest struct {
	AgentID    string   `json:"agent_id"`
	Name       string   `json:"name"`
	PublicKey  string   `json:"public_key"`
	Endpoint   string   `json:"endpoint"`
	AllowedIPs []string `json:"allowed_ips"`
	ListenPort uint16   `json:"listen_port"`
}

func (r TunnelRequest) config() domain.WireGuardConfig {
	return domain.WireGuardConfig{
		Name:       r.Name,
		PublicKey:  r.PublicKey,
		Endpoint:   r.Endpoint,
		AllowedIPs: r.AllowedIPs,
		ListenPort: r.ListenPort,
	}
}

// OpenTunnel проверяет туннель по политике и занимает слот при успехе.
func (g *Gateway) OpenTunnel(ctx context.Context, req TunnelRequest) (domain.ConnectionDecision, error) {
	if req.Name == "" {
		return domain.ConnectionDecision{}, domain.NewError(domain.KindSystemError, "tunnel name is required")
	}
	cfg := req.config()
	decision := g.network.ValidateTunnelCreation(cfg)
	if !decision.Allowed {
		g.networkRejected(ctx, req.AgentID, ActivityTunnelRejected, decision, map[string]interface{}{
			"tunnel":   cfg.Name,
			"endpoint": cfg.Endpoint,
		})
		return decision, nil
	}
	g.network.AddActiveTunnel(cfg.Name)
	return decision, nil
}

func (g *Gateway) CloseTunnel(name string) {
	g.network.RemoveActiveTunnel(name)
}

type TrafficRequest struct {
	AgentID       string `json:"agent_id"`
	Endpoint      string `json:"endpoint"`
	BytesSent     uint64 `json:"bytes_sent"`
	BytesReceived uint64 `json:"bytes_received"`
}

// ReportTraffic: сначала эвристика утечки (она же копит счетчики), затем лимит объема.
func (g *Gateway) ReportTraffic(ctx context.Context, tunnel string, req TrafficRequest) domain.ConnectionDecision {
	cfg := domain.WireGuardConfig{Name: tunnel, Endpoint: req.Endpoint}
	decision := g.network.MonitorWireGuardTunnel(cfg, req.BytesSent, req.BytesReceived)
	if decision.Allowed {
		decision = g.network.MonitorTraffic(tunnel, req.BytesSent, req.BytesReceived)
	}
	if !decision.Allowed {
		g.networkRejected(ctx, req.AgentID, ActivityConnectionBlocked, decision, map[string]interface{}{
			"tunnel":         tunnel,
			"bytes_sent":     req.BytesSent,
			"bytes_received": req.BytesReceived,
		})
	}
	return decision
}

func (g *Gateway) networkRejected(ctx context.Context, agentID, activityType string, d domain.ConnectionDecision, details map[string]interface{}) {
	g.log(audit.Event{
		ID:         uuid.New().String(),
		TraceID:    audit.TraceIDFromContext(ctx),
		Source:     audit.SourceNetwork,
		AgentID:    agentID,
		ActionType: activityType,
		Payload:    details,
		RiskLevel:  d.RiskLevel.String(),
		Status:     audit.StatusBlocked,
		Reasoning:  d.Reason,
		Timestamp:  time.Now().UTC(),
	})
	g.logActivity(agentID, activityType, d.RiskLevel, details)
}

func (g *Gateway) log(event audit.Event) {
	if g.auditor != nil {
		g.auditor.Log(event)
	}
}

func (g *Gateway) logActivity(agentID, activityType string, level domain.RiskLevel, details map[string]interface{}) {
	if g.activity == nil {
		return
	}
	g.activity.LogActivity(domain.ActivityRecord{
		Timestamp:    time.Now().UTC(),
		AgentID:      agentID,
		ActivityType: activityType,
		Details:      details,
		RiskLevel:    level,
	})
}
