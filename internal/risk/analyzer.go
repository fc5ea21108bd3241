// Package risk считает риск действия по снимку политик Guardian.
// Анализатор без состояния: все, что ему нужно, приходит в Snapshot.
package risk

import (
	"fmt"
	"strings"

	"github.com/xela07ax/higher-guardian/internal/domain"
	"go.uber.org/zap"
)

// Snapshot — согласованные политики на момент оценки. Guard == nil, если у агента нет лимитов.
type Snapshot struct {
	Boundaries []domain.EthicalBoundary
	Guard      *domain.TransactionGuard
}

type Analyzer struct {
	cfg        Config
	predicates BoundaryPredicate
	logger     *zap.Logger
}

func NewAnalyzer(cfg Config, predicates BoundaryPredicate, logger *zap.Logger) *Analyzer {
	cfg = cfg.withDefaults()
	if predicates == nil {
		predicates = DefaultPredicates(cfg)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{cfg: cfg, predicates: predicates, logger: logger.Named("analyzer")}
}

// Assess суммирует вклады трех независимых проверок. Балл сверху не ограничен.
func (a *Analyzer) Assess(action domain.AIAction, snap Snapshot) domain.RiskAssessment {
	var (
		score     float64
		factors   []string
		violation string
	)

	// 1. Границы: первое нарушение засчитывается, остальные не проверяем
	for _, b := range snap.Boundaries {
		if a.predicates.Violates(b, action) {
			score += a.cfg.Weights.Boundary
			factors = append(factors, "Ethical violation: "+b.Principle)
			violation = b.Principle
			break
		}
	}

	// 2. Расширение возможностей
	if typeContainsAny(action.ActionType, a.cfg.CapabilityKeywords) {
		score += a.cfg.Weights.Capability
		factors = append(factors, "Capability expansion detected")
	}

	// 3. Лимит транзакции
	if action.ActionType == a.cfg.TransactionType && snap.Guard != nil {
		amount, _ := action.PayloadFloat(a.cfg.AmountField)
		if amount > snap.Guard.MaxAmount {
			score += a.cfg.Weights.Transaction
			factors = append(factors, fmt.Sprintf("Transaction limit: Amount %g exceeds limit %g", amount, snap.Guard.MaxAmount))
		}
	}

	level := LevelFor(score)
	assessment := domain.RiskAssessment{
		RiskLevel:         level,
		InterventionLevel: InterventionFor(level),
		Score:             score,
		Reasoning:         "Risk factors: " + strings.Join(factors, ", "),
		Confidence:        a.cfg.Confidence,
		Factors:           factors,
		ViolatedPrinciple: violation,
	}

	if level.IsElevated() {
		a.logger.Warn("elevated risk",
			zap.String("action_id", action.ID),
			zap.String("agent_id", action.AgentID),
			zap.Float64("score", score),
			zap.Strings("factors", factors),
		)
	}
	return assessment
}

// LevelFor — фиксированные пороги, независимо от того, насколько балл больше 1.
func LevelFor(score float64) domain.RiskLevel {
	switch {
	case score >= 0.8:
		return domain.RiskCritical
	case score >= 0.6:
		return domain.RiskHigh
	case score >= 0.3:
		return domain.RiskModerate
	}
	return domain.RiskLow
}

func InterventionFor(level domain.RiskLevel) domain.InterventionLevel {
	switch level {
	case domain.RiskCritical:
		return domain.InterventionBlock
	case domain.RiskHigh:
		return domain.InterventionRequireApproval
	case domain.RiskModerate:
		return domain.InterventionWarn
	}
	return domain.InterventionMonitor
}
