package domain

import "time"

// GuardianDecision — итоговая запись по действию. После создания меняется
// только через явный human override.
type GuardianDecision struct {
	ActionID            string            `json:"action_id"`
	AgentID             string            `json:"ai_system_id"`
	Approved            bool              `json:"approved"`
	InterventionApplied InterventionLevel `json:"intervention_applied"`
	Reasoning           string            `json:"reasoning"`
	Timestamp           time.Time         `json:"timestamp"`
	HumanOverride       *bool             `json:"human_override,omitempty"`
}

// EthicalBoundary — административно заданное правило, нарушение которого добавляет риск.
type EthicalBoundary struct {
	Principle          string            `json:"principle" mapstructure:"principle"`
	Description        string            `json:"description" mapstructure:"description"`
	ViolationThreshold float64           `json:"violation_threshold" mapstructure:"violation_threshold"`
	EnforcementLevel   InterventionLevel `json:"enforcement_level" mapstructure:"enforcement_level"`
}

// Имена принципов, для которых есть встроенные предикаты нарушения.
const (
	PrincipleHumanAutonomy  = "human_autonomy"
	PrincipleTransparency   = "transparency"
	PrincipleBeneficence    = "beneficence"
	PrincipleNonMaleficence = "non_maleficence"
)

// DefaultEthicalBoundaries — каталог границ по умолчанию.
func DefaultEthicalBoundaries() []EthicalBoundary {
	return []EthicalBoundary{
		{
			Principle:          PrincipleHumanAutonomy,
			Description:        "AI must not manipulate or coerce human decision-making",
			ViolationThreshold: 0.7,
			EnforcementLevel:   InterventionBlock,
		},
		{
			Principle:          PrincipleTransparency,
			Description:        "AI actions must be explainable and auditable",
			ViolationThreshold: 0.5,
			EnforcementLevel:   InterventionWarn,
		},
		{
			Principle:          PrincipleBeneficence,
			Description:        "AI must act in ways that benefit humanity",
			ViolationThreshold: 0.8,
			EnforcementLevel:   InterventionBlock,
		},
	}
}
