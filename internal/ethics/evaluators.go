package ethics

import (
	"strings"

	"github.com/xela07ax/higher-guardian/internal/domain"
)

// Evaluator оценивает действие по одному принципу. Результат ожидается в [0,1].
type Evaluator interface {
	Evaluate(action domain.AIAction) (float64, error)
}

// EvaluatorFunc позволяет подставить функцию как Evaluator.
type EvaluatorFunc func(action domain.AIAction) (float64, error)

func (f EvaluatorFunc) Evaluate(action domain.AIAction) (float64, error) {
	return f(action)
}

// actionText — то, по чему ищутся ключевые слова: тип действия и payload в JSON, в нижнем регистре.
func actionText(action domain.AIAction) string {
	return strings.ToLower(action.ActionType + " " + action.PayloadJSON())
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

type autonomyEvaluator struct {
	keywords []string
}

func (e autonomyEvaluator) Evaluate(action domain.AIAction) (float64, error) {
	if containsAny(actionText(action), e.keywords) {
		return 0, nil
	}
	return 1, nil
}

type transparencyEvaluator struct {
	explanationField string
	reasoningField   string
}

func (e transparencyEvaluator) Evaluate(action domain.AIAction) (float64, error) {
	switch {
	case action.HasField(e.explanationField):
		return 1, nil
	case action.HasField(e.reasoningField):
		return 0.8, nil
	}
	return 0.3, nil
}

type beneficenceEvaluator struct {
	harmful    []string
	beneficial []string
}

func (e beneficenceEvaluator) Evaluate(action domain.AIAction) (float64, error) {
	text := actionText(action)
	// Вред проверяется первым: "help exploit" — это 0, а не 1
	if containsAny(text, e.harmful) {
		return 0, nil
	}
	if containsAny(text, e.beneficial) {
		return 1, nil
	}
	return 0.5, nil
}

type nonMaleficenceEvaluator struct {
	keywords []string
}

func (e nonMaleficenceEvaluator) Evaluate(action domain.AIAction) (float64, error) {
	if containsAny(actionText(action), e.keywords) {
		return 0, nil
	}
	return 1, nil
}
