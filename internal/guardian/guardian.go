// Package guardian — оркестратор надзора: снимок политик, оценка риска,
// решение по уровню вмешательства и запись результата.
package guardian

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/higher-guardian/internal/audit"
	"github.com/xela07ax/higher-guardian/internal/buffer"
	"github.com/xela07ax/higher-guardian/internal/domain"
	"github.com/xela07ax/higher-guardian/internal/risk"
	"go.uber.org/zap"
)

// ActivityLogger — куда уходят записанные решения (SystemMonitor).
type ActivityLogger interface {
	LogActivity(record domain.ActivityRecord)
}

// DecisionObserver — метрики. Видит и те оценки, что закончились требованием апрува.
type DecisionObserver interface {
	ObserveAssessment(assessment domain.RiskAssessment)
	ObserveApprovalRequired(agentID string)
}

// EthicsScorer — второй, независимый слой оценки. Его балл только логируется.
type EthicsScorer interface {
	Evaluate(action domain.AIAction) (float64, error)
}

type Config struct {
	HistoryCapacity int                      `mapstructure:"history_capacity"`
	HistoryTrim     int                      `mapstructure:"history_trim"`
	Boundaries      []domain.EthicalBoundary `mapstructure:"boundaries"`
}

func DefaultConfig() Config {
	return Config{
		HistoryCapacity: 1000,
		HistoryTrim:     100,
		Boundaries:      domain.DefaultEthicalBoundaries(),
	}
}

// Guardian держит четыре контейнера, у каждого свой RWMutex.
// Порядок захвата при нескольких блокировках: boundaries → guards → history → agents.
type Guardian struct {
	analyzer *risk.Analyzer
	ethics   EthicsScorer
	activity ActivityLogger
	auditor  audit.Auditor
	observer DecisionObserver
	logger   *zap.Logger

	boundariesMu sync.RWMutex
	boundaries   []domain.EthicalBoundary

	guardsMu sync.RWMutex
	guards   map[string]domain.TransactionGuard

	historyMu sync.RWMutex
	history   *buffer.BatchTrimLog[domain.GuardianDecision]

	agentsMu sync.RWMutex
	agents   map[string]domain.AISystemProfile

	now func() time.Time
}

// NewGuardian собирает оркестратор. Любая зависимость, кроме analyzer, может быть nil.
func NewGuardian(
	analyzer *risk.Analyzer,
	ethics EthicsScorer,
	activity ActivityLogger,
	auditor audit.Auditor,
	observer DecisionObserver,
	logger *zap.Logger,
	cfg Config,
) *Guardian {
	d := DefaultConfig()
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = d.HistoryCapacity
	}
	if cfg.HistoryTrim <= 0 {
		cfg.HistoryTrim = d.HistoryTrim
	}
	if cfg.Boundaries == nil {
		cfg.Boundaries = d.Boundaries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if analyzer == nil {
		analyzer = risk.NewAnalyzer(risk.DefaultConfig(), nil, logger)
	}

	return &Guardian{
		analyzer:   analyzer,
		ethics:     ethics,
		activity:   activity,
		auditor:    auditor,
		observer:   observer,
		logger:     logger.With(zap.String("mod", "guardian")),
		boundaries: cloneBoundaries(cfg.Boundaries),
		guards:     make(map[string]domain.TransactionGuard),
		history:    buffer.NewBatchTrimLog[domain.GuardianDecision](cfg.HistoryCapacity, cfg.HistoryTrim),
		agents:     make(map[string]domain.AISystemProfile),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// snapshot читает границы и лимиты агента под обеими блокировками сразу,
// чтобы административное изменение не попало в оценку наполовину.
func (g *Guardian) snapshot(agentID string) risk.Snapshot {
	g.boundariesMu.RLock()
	defer g.boundariesMu.RUnlock()
	g.guardsMu.RLock()
	defer g.guardsMu.RUnlock()

	snap := risk.Snapshot{Boundaries: cloneBoundaries(g.boundaries)}
	if guard, ok := g.guards[agentID]; ok {
		snap.Guard = &guard
	}
	return snap
}

// AssessRisk оценивает действие без записи результата.
func (g *Guardian) AssessRisk(_ context.Context, action domain.AIAction) domain.RiskAssessment {
	return g.analyzer.Assess(action, g.snapshot(action.AgentID))
}

// ValidateAIAction принимает решение по действию.
// RequireApproval возвращает ошибку HumanApprovalRequired: решение не создается и нигде не записывается.
func (g *Guardian) ValidateAIAction(ctx context.Context, action domain.AIAction) (*domain.GuardianDecision, error) {
	if action.ActionType == "" {
		return nil, domain.NewError(domain.KindSystemError, "action_type is required")
	}
	if action.ID == "" {
		action.ID = uuid.New().String()
	}

	assessment := g.AssessRisk(ctx, action)
	if g.observer != nil {
		g.observer.ObserveAssessment(assessment)
	}

	log := g.logger.With(
		zap.String("trace_id", audit.TraceIDFromContext(ctx)),
		zap.String("action_id", action.ID),
		zap.String("agent_id", action.AgentID),
		zap.String("action_type", action.ActionType),
	)

	var approved bool
	switch assessment.InterventionLevel {
	case domain.InterventionRequireApproval:
		if g.observer != nil {
			g.observer.ObserveApprovalRequired(action.AgentID)
		}
		log.Info("human approval required", zap.String("reasoning", assessment.Reasoning))
		return nil, domain.NewError(domain.KindHumanApprovalRequired, "high risk action requires approval: %s", assessment.Reasoning)
	case domain.InterventionBlock:
		approved = false
	case domain.InterventionWarn:
		approved = true
		log.Warn("AI action warning", zap.String("reasoning", assessment.Reasoning), zap.Float64("score", assessment.Score))
	default:
		approved = true
	}

	decision := domain.GuardianDecision{
		ActionID:            action.ID,
		AgentID:             action.AgentID,
		Approved:            approved,
		InterventionApplied: assessment.InterventionLevel,
		Reasoning:           assessment.Reasoning,
		Timestamp:           g.now(),
	}
	g.record(ctx, action, assessment, decision)
	return &decision, nil
}

func (g *Guardian) record(ctx context.Context, action domain.AIAction, assessment domain.RiskAssessment, decision domain.GuardianDecision) {
	g.historyMu.Lock()
	g.history.Append(decision)
	g.historyMu.Unlock()

	g.agentsMu.Lock()
	if profile, ok := g.agents[action.AgentID]; ok {
		profile.LastActivity = decision.Timestamp
		g.agents[action.AgentID] = profile
	}
	g.agentsMu.Unlock()

	if g.activity != nil {
		g.activity.LogActivity(domain.ActivityRecord{
			Timestamp:    decision.Timestamp,
			AgentID:      action.AgentID,
			ActivityType: activityType(decision.InterventionApplied),
			RiskLevel:    assessment.RiskLevel,
			Details: map[string]interface{}{
				"action_id":    action.ID,
				"action_type":  action.ActionType,
				"intervention": string(decision.InterventionApplied),
				"risk_score":   assessment.Score,
				"reasoning":    assessment.Reasoning,
			},
		})

		// Блокировка из-за нарушенной границы учитывается и как этическое нарушение
		if !decision.Approved && assessment.ViolatedPrinciple != "" {
			g.activity.LogActivity(domain.ActivityRecord{
				Timestamp:    decision.Timestamp,
				AgentID:      action.AgentID,
				ActivityType: domain.ActivityEthicalViolation,
				RiskLevel:    assessment.RiskLevel,
				Details: map[string]interface{}{
					"action_id":   action.ID,
					"action_type": action.ActionType,
					"principle":   assessment.ViolatedPrinciple,
				},
			})
		}
	}

	var ethicsScore *float64
	if g.ethics != nil {
		if s, err := g.ethics.Evaluate(action); err != nil {
			g.logger.Error("ethics evaluation failed", zap.String("action_id", action.ID), zap.Error(err))
		} else {
			ethicsScore = &s
		}
	}

	if g.auditor != nil {
		status := audit.StatusApproved
		if !decision.Approved {
			status = audit.StatusBlocked
		}
		g.auditor.Log(audit.Event{
			TraceID:      audit.TraceIDFromContext(ctx),
			Source:       audit.SourceDecision,
			AgentID:      action.AgentID,
			ActionID:     action.ID,
			ActionType:   action.ActionType,
			Payload:      action.Payload,
			RiskLevel:    assessment.RiskLevel.String(),
			RiskScore:    assessment.Score,
			Intervention: string(decision.InterventionApplied),
			EthicsScore:  ethicsScore,
			Status:       status,
			Approved:     decision.Approved,
			Reasoning:    decision.Reasoning,
			Timestamp:    decision.Timestamp,
		})
	}
}

func activityType(level domain.InterventionLevel) string {
	switch level {
	case domain.InterventionBlock:
		return domain.ActivityActionBlocked
	case domain.InterventionWarn:
		return domain.ActivityActionWarned
	}
	return domain.ActivityActionMonitored
}

func cloneBoundaries(in []domain.EthicalBoundary) []domain.EthicalBoundary {
	out := make([]domain.EthicalBoundary, len(in))
	copy(out, in)
	return out
}
