package service

import (
	"context"

	"github.com/xela07ax/higher-guardian/internal/domain"
	"go.uber.org/zap"
)

// GuardianAdmin административная часть Guardian.
type GuardianAdmin interface {
	RegisterAISystem(profile domain.AISystemProfile) error
	AISystems() []domain.AISystemProfile
	AISystem(id string) (domain.AISystemProfile, bool)
	SetTransactionGuard(agentID string, guard domain.TransactionGuard) error
	TransactionGuard(agentID string) (domain.TransactionGuard, bool)
	EthicalBoundaries() []domain.EthicalBoundary
	SetEthicalBoundaries(boundaries []domain.EthicalBoundary) error
	DecisionHistory() []domain.GuardianDecision
	ApplyHumanOverride(ctx context.Context, actionID string, approved bool) (domain.GuardianDecision, error)
}

// SpendingAdmin лимиты TransactionMonitor.
type SpendingAdmin interface {
	SetSpendingLimit(agentID string, limit float64)
	SetDailyLimit(agentID string, limit float64)
	ResetDailySpending()
	SpendingSummary(agentID string) domain.SpendingSummary
}

// Limits лимиты агента, как их задает оператор.
// Guardian видит их при оценке риска, TransactionMonitor — при проверке платежа.
type Limits struct {
	MaxAmount            float64  `json:"max_amount"`
	DailyLimit           float64  `json:"daily_limit"`
	SuspiciousPatterns   []string `json:"suspicious_patterns,omitempty"`
	BlacklistedAddresses []string `json:"blacklisted_addresses,omitempty"`
}

type LimitsView struct {
	Guard    *domain.TransactionGuard `json:"guard,omitempty"`
	Spending domain.SpendingSummary   `json:"spending"`
}

type GuardianService struct {
	guardian GuardianAdmin
	spending SpendingAdmin
	logger   *zap.Logger
}

func NewGuardianService(g GuardianAdmin, spending SpendingAdmin, logger *zap.Logger) *GuardianService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuardianService{
		guardian: g,
		spending: spending,
		logger:   logger.Named("guardian-service"),
	}
}

func (s *GuardianService) Agents() []domain.AISystemProfile {
	return s.guardian.AISystems()
}

func (s *GuardianService) Agent(id string) (domain.AISystemProfile, bool) {
	return s.guardian.AISystem(id)
}

func (s *GuardianService) UpsertAgent(profile domain.AISystemProfile) error {
	if profile.ID == "" {
		return domain.NewError(domain.KindSystemError, "agent id is required")
	}
	if err := s.guardian.RegisterAISystem(profile); err != nil {
		return err
	}
	s.logger.Info("agent registered", zap.String("agent_id", profile.ID), zap.String("name", profile.Name))
	return nil
}

// SetLimits пишет лимиты в оба компонента. Guard проверяется первым: при ошибке ничего не меняется.
func (s *GuardianService) SetLimits(agentID string, l Limits) error {
	if l.DailyLimit < 0 {
		return domain.NewError(domain.KindSystemError, "daily limit must not be negative")
	}
	guard := domain.TransactionGuard{
		MaxAmount:            l.MaxAmount,
		DailyLimit:           l.DailyLimit,
		SuspiciousPatterns:   l.SuspiciousPatterns,
		BlacklistedAddresses: l.BlacklistedAddresses,
	}
	if err := s.guardian.SetTransactionGuard(agentID, guard); err != nil {
		return err
	}
	s.spending.SetSpendingLimit(agentID, l.MaxAmount)
	s.spending.SetDailyLimit(agentID, l.DailyLimit)

	s.logger.Info("agent limits updated",
		zap.String("agent_id", agentID),
		zap.Float64("max_amount", l.MaxAmount),
		zap.Float64("daily_limit", l.DailyLimit))
	return nil
}

func (s *GuardianService) Limits(agentID string) LimitsView {
	view := LimitsView{Spending: s.spending.SpendingSummary(agentID)}
	if guard, ok := s.guardian.TransactionGuard(agentID); ok {
		view.Guard = &guard
	}
	return view
}

func (s *GuardianService) ResetDailySpending() {
	s.spending.ResetDailySpending()
	s.logger.Info("daily spending reset")
}

func (s *GuardianService) Boundaries() []domain.EthicalBoundary {
	return s.guardian.EthicalBoundaries()
}

func (s *GuardianService) ReplaceBoundaries(boundaries []domain.EthicalBoundary) error {
	if err := s.guardian.SetEthicalBoundaries(boundaries); err != nil {
		return err
	}
	s.logger.Info("ethical boundaries replaced", zap.Int("count", len(boundaries)))
	return nil
}

func (s *GuardianService) Decisions() []domain.GuardianDecision {
	return s.guardian.DecisionHistory()
}

func (s *GuardianService) Override(ctx context.Context, actionID string, approved bool, operatorID string) (domain.GuardianDecision, error) {
	d, err := s.guardian.ApplyHumanOverride(ctx, actionID, approved)
	if err != nil {
		return domain.GuardianDecision{}, err
	}
	s.logger.Info("human override applied",
		zap.String("action_id", actionID),
		zap.Bool("approved", approved),
		zap.String("operator_id", operatorID))
	return d, nil
}
