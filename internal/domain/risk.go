package domain

import (
	"fmt"
	"strings"
)

// RiskLevel — порядковая шкала риска. Порядок значим: сравнение через < / >.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskModerate
	RiskHigh
	RiskCritical
)

// RiskMedium используется сетевым монитором как уровень серьезности событий.
const RiskMedium = RiskModerate

var riskLevelNames = map[RiskLevel]string{
	RiskLow:      "LOW",
	RiskModerate: "MODERATE",
	RiskHigh:     "HIGH",
	RiskCritical: "CRITICAL",
}

func (l RiskLevel) String() string {
	if name, ok := riskLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("RiskLevel(%d)", int(l))
}

// MarshalText нужен, чтобы RiskLevel работал как ключ map в JSON (гистограмма отчета).
func (l RiskLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *RiskLevel) UnmarshalText(text []byte) error {
	s := strings.ToUpper(strings.TrimSpace(string(text)))
	if s == "MEDIUM" {
		*l = RiskMedium
		return nil
	}
	for level, name := range riskLevelNames {
		if name == s {
			*l = level
			return nil
		}
	}
	return fmt.Errorf("unknown risk level %q", string(text))
}

// IsElevated — High или Critical. По нему считается алерт SystemMonitor.
func (l RiskLevel) IsElevated() bool {
	return l >= RiskHigh
}

// InterventionLevel — градуированная реакция Guardian на действие.
type InterventionLevel string

const (
	InterventionMonitor         InterventionLevel = "MONITOR"          // Пропустить молча
	InterventionWarn            InterventionLevel = "WARN"             // Пропустить с предупреждением
	InterventionRequireApproval InterventionLevel = "REQUIRE_APPROVAL" // Человек в контуре (HITL)
	InterventionBlock           InterventionLevel = "BLOCK"            // Запретить
)

// Valid проверяет, что значение входит в закрытый набор уровней.
func (i InterventionLevel) Valid() bool {
	switch i {
	case InterventionMonitor, InterventionWarn, InterventionRequireApproval, InterventionBlock:
		return true
	}
	return false
}

// RiskAssessment — результат оценки одного действия.
type RiskAssessment struct {
	RiskLevel         RiskLevel         `json:"risk_level"`
	InterventionLevel InterventionLevel `json:"intervention_level"`
	Score             float64           `json:"score"` // Сумма вкладов проверок, сверху не ограничена
	Reasoning         string            `json:"reasoning"`
	Confidence        float64           `json:"confidence"`
	Factors           []string          `json:"factors"`
	ViolatedPrinciple string            `json:"violated_principle,omitempty"` // Первая нарушенная граница
}
