package audit

import (
	"context"
	"time"
)

// Источники событий аудита.
const (
	SourceDecision    = "decision"
	SourceTransaction = "transaction"
	SourceNetwork     = "network"
)

// Статусы исхода.
const (
	StatusApproved         = "APPROVED"
	StatusBlocked          = "BLOCKED"
	StatusApprovalRequired = "APPROVAL_REQUIRED"
	StatusRejected         = "REJECTED"
)

type Event struct {
	ID         string                 `json:"id"`          // UUID события
	TraceID    string                 `json:"trace_id"`    // Сквозной ID запроса
	Source     string                 `json:"source"`      // decision / transaction / network
	AgentID    string                 `json:"agent_id"`    // Кто делал
	ActionID   string                 `json:"action_id"`   // Какое действие оценивали
	ActionType string                 `json:"action_type"` // Что хотел сделать
	Payload    map[string]interface{} `json:"payload"`     // С какими данными

	// Оценка
	RiskLevel    string   `json:"risk_level"`
	RiskScore    float64  `json:"risk_score"`
	Intervention string   `json:"intervention"`
	EthicsScore  *float64 `json:"ethics_score,omitempty"` // Только для наблюдения, на решение не влияет

	// Результат
	Status    string    `json:"status"`
	Approved  bool      `json:"approved"`
	Reasoning string    `json:"reasoning"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// WithTraceID кладет сквозной ID запроса в контекст.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext достает ID или возвращает нулевой UUID.
func TraceIDFromContext(ctx context.Context) string {
	if ctx != nil {
		if id, ok := ctx.Value(traceIDKey).(string); ok && id != "" {
			return id
		}
	}
	return "00000000-0000-0000-0000-000000000000"
}
