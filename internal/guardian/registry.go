package guardian

import (
	"context"
	"sort"

	"github.com/xela07ax/higher-guardian/internal/audit"
	"github.com/xela07ax/higher-guardian/internal/domain"
	"go.uber.org/zap"
)

// RegisterAISystem — идемпотентный upsert по ID.
func (g *Guardian) RegisterAISystem(profile domain.AISystemProfile) error {
	if profile.ID == "" {
		return domain.NewError(domain.KindSystemError, "ai system id is required")
	}
	caps := make([]string, len(profile.Capabilities))
	copy(caps, profile.Capabilities)
	profile.Capabilities = caps

	g.agentsMu.Lock()
	g.agents[profile.ID] = profile
	g.agentsMu.Unlock()

	g.logger.Info("ai system registered", zap.String("agent_id", profile.ID), zap.String("name", profile.Name))
	return nil
}

// AISystems — все зарегистрированные агенты, отсортированные по ID.
func (g *Guardian) AISystems() []domain.AISystemProfile {
	g.agentsMu.RLock()
	defer g.agentsMu.RUnlock()

	out := make([]domain.AISystemProfile, 0, len(g.agents))
	for _, p := range g.agents {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (g *Guardian) AISystem(id string) (domain.AISystemProfile, bool) {
	g.agentsMu.RLock()
	defer g.agentsMu.RUnlock()
	p, ok := g.agents[id]
	return p, ok
}

func (g *Guardian) SetTransactionGuard(agentID string, guard domain.TransactionGuard) error {
	if agentID == "" {
		return domain.NewError(domain.KindSystemError, "ai system id is required")
	}
	if guard.MaxAmount < 0 || guard.DailyLimit < 0 {
		return domain.NewError(domain.KindSystemError, "transaction limits must not be negative")
	}

	g.guardsMu.Lock()
	g.guards[agentID] = guard
	g.guardsMu.Unlock()

	g.logger.Info("transaction guard updated",
		zap.String("agent_id", agentID),
		zap.Float64("max_amount", guard.MaxAmount),
		zap.Float64("daily_limit", guard.DailyLimit),
	)
	return nil
}

func (g *Guardian) TransactionGuard(agentID string) (domain.TransactionGuard, bool) {
	g.guardsMu.RLock()
	defer g.guardsMu.RUnlock()
	guard, ok := g.guards[agentID]
	return guard, ok
}

func (g *Guardian) EthicalBoundaries() []domain.EthicalBoundary {
	g.boundariesMu.RLock()
	defer g.boundariesMu.RUnlock()
	return cloneBoundaries(g.boundaries)
}

// SetEthicalBoundaries заменяет каталог целиком.
func (g *Guardian) SetEthicalBoundaries(boundaries []domain.EthicalBoundary) error {
	for _, b := range boundaries {
		if b.Principle == "" {
			return domain.NewError(domain.KindSystemError, "boundary principle is required")
		}
		if b.EnforcementLevel != "" && !b.EnforcementLevel.Valid() {
			return domain.NewError(domain.KindSystemError, "unknown enforcement level %q", b.EnforcementLevel)
		}
	}

	g.boundariesMu.Lock()
	g.boundaries = cloneBoundaries(boundaries)
	g.boundariesMu.Unlock()

	g.logger.Info("ethical boundaries replaced", zap.Int("count", len(boundaries)))
	return nil
}

// DecisionHistory — копия истории от старых к новым.
func (g *Guardian) DecisionHistory() []domain.GuardianDecision {
	g.historyMu.RLock()
	defer g.historyMu.RUnlock()
	return g.history.Snapshot()
}

// ApplyHumanOverride проставляет human_override последнему решению по действию.
func (g *Guardian) ApplyHumanOverride(ctx context.Context, actionID string, approved bool) (domain.GuardianDecision, error) {
	var updated domain.GuardianDecision

	g.historyMu.Lock()
	found := g.history.UpdateLast(
		func(d domain.GuardianDecision) bool { return d.ActionID == actionID },
		func(d *domain.GuardianDecision) {
			d.HumanOverride = &approved
			updated = *d
		},
	)
	g.historyMu.Unlock()

	if !found {
		return domain.GuardianDecision{}, domain.ErrDecisionNotFound
	}

	g.logger.Info("human override applied",
		zap.String("action_id", actionID),
		zap.String("agent_id", updated.AgentID),
		zap.Bool("approved", approved),
	)

	if g.auditor != nil {
		status := audit.StatusApproved
		if !approved {
			status = audit.StatusBlocked
		}
		g.auditor.Log(audit.Event{
			TraceID:      audit.TraceIDFromContext(ctx),
			Source:       audit.SourceDecision,
			AgentID:      updated.AgentID,
			ActionID:     actionID,
			Intervention: string(updated.InterventionApplied),
			Status:       status,
			Approved:     approved,
			Reasoning:    "human override",
		})
	}
	return updated, nil
}
