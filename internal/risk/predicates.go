package risk

import (
	"strings"

	"github.com/xela07ax/higher-guardian/internal/domain"
)

// BoundaryPredicate решает, нарушает ли действие границу данного принципа.
type BoundaryPredicate interface {
	Violates(boundary domain.EthicalBoundary, action domain.AIAction) bool
}

// PredicateFunc позволяет подставить функцию как BoundaryPredicate.
type PredicateFunc func(boundary domain.EthicalBoundary, action domain.AIAction) bool

func (f PredicateFunc) Violates(boundary domain.EthicalBoundary, action domain.AIAction) bool {
	return f(boundary, action)
}

// Predicates — диспетчер по имени принципа. Неизвестный принцип никогда не нарушается.
type Predicates map[string]BoundaryPredicate

func (p Predicates) Violates(boundary domain.EthicalBoundary, action domain.AIAction) bool {
	pred, ok := p[boundary.Principle]
	if !ok || pred == nil {
		return false
	}
	return pred.Violates(boundary, action)
}

// DefaultPredicates — встроенные предикаты. Поиск по типу действия регистрозависимый.
func DefaultPredicates(cfg Config) Predicates {
	cfg = cfg.withDefaults()
	return Predicates{
		domain.PrincipleHumanAutonomy: PredicateFunc(func(_ domain.EthicalBoundary, a domain.AIAction) bool {
			return typeContainsAny(a.ActionType, cfg.AutonomyKeywords)
		}),
		domain.PrincipleTransparency: PredicateFunc(func(_ domain.EthicalBoundary, a domain.AIAction) bool {
			return !a.HasField(cfg.ExplanationField)
		}),
		domain.PrincipleBeneficence: PredicateFunc(func(_ domain.EthicalBoundary, a domain.AIAction) bool {
			return typeContainsAny(a.ActionType, cfg.HarmKeywords)
		}),
	}
}

func typeContainsAny(actionType string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(actionType, kw) {
			return true
		}
	}
	return false
}
