// Package transaction проверяет платежи агентов: разовый лимит, дневной лимит
// и эвристика подозрительных переводов.
package transaction

import (
	"math"
	"strings"
	"sync"

	"github.com/xela07ax/higher-guardian/internal/domain"
	"go.uber.org/zap"
)

// Причины отказа. Идут в лейбл метрики.
const (
	ReasonTransactionLimit = "transaction_limit"
	ReasonDailyLimit       = "daily_limit"
	ReasonSuspicious       = "suspicious_pattern"
	ReasonInvalid          = "invalid"
)

type Config struct {
	RoundAmountThreshold float64 `mapstructure:"round_amount_threshold"`
	MinRecipientLength   int     `mapstructure:"min_recipient_length"`
	UnknownMarker        string  `mapstructure:"unknown_marker"`
}

func DefaultConfig() Config {
	return Config{RoundAmountThreshold: 1000, MinRecipientLength: 10, UnknownMarker: "unknown"}
}

// RejectionObserver метрики отказов.
type RejectionObserver interface {
	ObserveTransactionRejected(reason string)
}

type Monitor struct {
	mu             sync.Mutex
	spendingLimits map[string]float64
	dailyLimits    map[string]float64
	dailySpending  map[string]float64

	cfg      Config
	observer RejectionObserver
	logger   *zap.Logger
}

func NewMonitor(cfg Config, observer RejectionObserver, logger *zap.Logger) *Monitor {
	d := DefaultConfig()
	if cfg.RoundAmountThreshold <= 0 {
		cfg.RoundAmountThreshold = d.RoundAmountThreshold
	}
	if cfg.MinRecipientLength <= 0 {
		cfg.MinRecipientLength = d.MinRecipientLength
	}
	if cfg.UnknownMarker == "" {
		cfg.UnknownMarker = d.UnknownMarker
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		spendingLimits: make(map[string]float64),
		dailyLimits:    make(map[string]float64),
		dailySpending:  make(map[string]float64),
		cfg:            cfg,
		observer:       observer,
		logger:         logger.With(zap.String("mod", "transaction")),
	}
}

func (m *Monitor) SetSpendingLimit(agentID string, limit float64) {
	m.mu.Lock()
	m.spendingLimits[agentID] = limit
	m.mu.Unlock()
	m.logger.Info("spending limit set", zap.String("agent_id", agentID), zap.Float64("limit", limit))
}

func (m *Monitor) SetDailyLimit(agentID string, limit float64) {
	m.mu.Lock()
	m.dailyLimits[agentID] = limit
	m.mu.Unlock()
	m.logger.Info("daily limit set", zap.String("agent_id", agentID), zap.Float64("limit", limit))
}

// ValidateTransaction последовательные проверки. Любой отказ не трогает дневную сумму.
// Агент без настроенного лимита этим лимитом не ограничен.
func (m *Monitor) ValidateTransaction(tx domain.Transaction) error {
	if math.IsNaN(tx.Amount) || math.IsInf(tx.Amount, 0) || tx.Amount < 0 {
		return m.reject(tx, ReasonInvalid, domain.NewError(domain.KindSystemError, "invalid transaction amount %v", tx.Amount))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if limit, ok := m.spendingLimits[tx.AgentID]; ok && tx.Amount > limit {
		return m.reject(tx, ReasonTransactionLimit, domain.NewError(domain.KindTransactionLimitExceeded,
			"amount %g exceeds transaction limit %g", tx.Amount, limit))
	}

	current := m.dailySpending[tx.AgentID]
	if limit, ok := m.dailyLimits[tx.AgentID]; ok && current+tx.Amount > limit {
		return m.reject(tx, ReasonDailyLimit, domain.NewError(domain.KindTransactionLimitExceeded,
			"daily limit %g would be exceeded: spent %g, requested %g", limit, current, tx.Amount))
	}

	if m.isSuspicious(tx) {
		return m.reject(tx, ReasonSuspicious, domain.NewError(domain.KindHumanApprovalRequired,
			"suspicious transaction pattern detected"))
	}

	m.dailySpending[tx.AgentID] = current + tx.Amount
	return nil
}

// isSuspicious: круглая сумма от порога, слишком короткий или "unknown" получатель.
func (m *Monitor) isSuspicious(tx domain.Transaction) bool {
	if tx.Amount >= m.cfg.RoundAmountThreshold && tx.Amount == math.Trunc(tx.Amount) {
		return true
	}
	if len(tx.Recipient) < m.cfg.MinRecipientLength {
		return true
	}
	return strings.Contains(tx.Recipient, m.cfg.UnknownMarker)
}

func (m *Monitor) reject(tx domain.Transaction, reason string, err error) error {
	m.logger.Warn("transaction rejected",
		zap.String("tx_id", tx.ID),
		zap.String("agent_id", tx.AgentID),
		zap.Float64("amount", tx.Amount),
		zap.String("reason", reason),
	)
	if m.observer != nil {
		m.observer.ObserveTransactionRejected(reason)
	}
	return err
}

// ResetDailySpending обнуляет дневные суммы всех агентов. По времени сама не вызывается.
func (m *Monitor) ResetDailySpending() {
	m.mu.Lock()
	m.dailySpending = make(map[string]float64)
	m.mu.Unlock()
	m.logger.Info("daily spending reset")
}

func (m *Monitor) SpendingSummary(agentID string) domain.SpendingSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.SpendingSummary{
		AgentID:          agentID,
		DailySpent:       m.dailySpending[agentID],
		DailyLimit:       m.dailyLimits[agentID],
		TransactionLimit: m.spendingLimits[agentID],
	}
}
