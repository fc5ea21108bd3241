// Package ethics — взвешенная оценка действия по набору этических принципов.
// Это отдельный слой от проверок границ в risk: он не влияет на решение Guardian.
package ethics

import (
	"fmt"
	"math"

	"github.com/xela07ax/higher-guardian/internal/domain"
	"go.uber.org/zap"
)

// Нейтральная оценка для принципа без вычислителя.
const neutralScore = 0.5

// Principle — принцип с весом. Evaluator == nil дает нейтральные 0.5.
type Principle struct {
	Name      string
	Weight    float64
	Evaluator Evaluator
}

// PrincipleScore — вклад одного принципа.
type PrincipleScore struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Score  float64 `json:"score"`
}

type Result struct {
	Score      float64          `json:"score"`
	Principles []PrincipleScore `json:"principles"`
}

type Engine struct {
	principles []Principle
	logger     *zap.Logger
}

// DefaultPrinciples собирает четыре встроенных принципа из конфига.
func DefaultPrinciples(cfg Config) []Principle {
	cfg = cfg.withDefaults()
	return []Principle{
		{
			Name:      domain.PrincipleHumanAutonomy,
			Weight:    cfg.Weights.Autonomy,
			Evaluator: autonomyEvaluator{keywords: cfg.ManipulationKeywords},
		},
		{
			Name:   domain.PrincipleTransparency,
			Weight: cfg.Weights.Transparency,
			Evaluator: transparencyEvaluator{
				explanationField: cfg.ExplanationField,
				reasoningField:   cfg.ReasoningField,
			},
		},
		{
			Name:      domain.PrincipleBeneficence,
			Weight:    cfg.Weights.Beneficence,
			Evaluator: beneficenceEvaluator{harmful: cfg.HarmfulKeywords, beneficial: cfg.BeneficialKeywords},
		},
		{
			Name:      domain.PrincipleNonMaleficence,
			Weight:    cfg.Weights.NonMaleficence,
			Evaluator: nonMaleficenceEvaluator{keywords: cfg.DestructiveKeywords},
		},
	}
}

func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	return NewEngineWithPrinciples(DefaultPrinciples(cfg), logger)
}

func NewEngineWithPrinciples(principles []Principle, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	cp := make([]Principle, len(principles))
	copy(cp, principles)
	return &Engine{principles: cp, logger: logger.Named("ethics")}
}

// Principles — копия набора принципов.
func (e *Engine) Principles() []Principle {
	out := make([]Principle, len(e.principles))
	copy(out, e.principles)
	return out
}

// Evaluate возвращает взвешенное среднее в [0,1].
func (e *Engine) Evaluate(action domain.AIAction) (float64, error) {
	res, err := e.EvaluateDetailed(action)
	if err != nil {
		return 0, err
	}
	return res.Score, nil
}

// EvaluateDetailed — то же, что Evaluate, плюс вклад каждого принципа.
func (e *Engine) EvaluateDetailed(action domain.AIAction) (Result, error) {
	var (
		weighted    float64
		totalWeight float64
		scores      = make([]PrincipleScore, 0, len(e.principles))
	)

	for _, p := range e.principles {
		score := neutralScore
		if p.Evaluator != nil {
			s, err := p.Evaluator.Evaluate(action)
			if err != nil {
				return Result{}, fmt.Errorf("evaluate principle %s: %w", p.Name, err)
			}
			score = clamp01(s)
		}
		weighted += score * p.Weight
		totalWeight += p.Weight
		scores = append(scores, PrincipleScore{Name: p.Name, Weight: p.Weight, Score: score})
	}

	if totalWeight <= 0 {
		return Result{}, domain.NewError(domain.KindSystemError, "ethics engine has no weighted principles")
	}

	res := Result{Score: clamp01(weighted / totalWeight), Principles: scores}
	e.logger.Debug("action evaluated",
		zap.String("action_id", action.ID),
		zap.String("action_type", action.ActionType),
		zap.Float64("score", res.Score),
	)
	return res, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
