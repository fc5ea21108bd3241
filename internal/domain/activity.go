package domain

import "time"

// Типы активности, по которым SystemMonitor ведет счетчики здоровья.
const (
	ActivityActionBlocked         = "action_blocked"
	ActivityHumanApprovalRequired = "human_approval_required"
	ActivityEthicalViolation      = "ethical_violation"
	ActivityActionWarned          = "action_warned"
	ActivityActionMonitored       = "action_monitored"
)

// ActivityRecord — запись журнала активности. Только добавление.
type ActivityRecord struct {
	Timestamp    time.Time              `json:"timestamp"`
	AgentID      string                 `json:"ai_system_id"`
	ActivityType string                 `json:"activity_type"`
	Details      map[string]interface{} `json:"details"`
	RiskLevel    RiskLevel              `json:"risk_level"`
}

// SystemHealth — накопительные счетчики с момента старта процесса.
type SystemHealth struct {
	TotalActionsMonitored  uint64  `json:"total_actions_monitored"`
	ActionsBlocked         uint64  `json:"actions_blocked"`
	HumanApprovalsRequired uint64  `json:"human_approvals_required"`
	EthicalViolations      uint64  `json:"ethical_violations"`
	UptimeHours            float64 `json:"uptime_hours"`
}

type AgentActivityCount struct {
	AgentID string `json:"ai_system_id"`
	Count   int    `json:"count"`
}

type SystemReport struct {
	GeneratedAt      time.Time            `json:"generated_at"`
	PeriodHours      int                  `json:"period_hours"`
	TotalActivities  int                  `json:"total_activities"`
	RiskDistribution map[RiskLevel]int    `json:"risk_distribution"`
	TopAISystems     []AgentActivityCount `json:"top_ai_systems"`
	SystemHealth     SystemHealth         `json:"system_health"`
}
