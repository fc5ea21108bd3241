package ethics

// Config — словари и веса эвристик. Логика движка от конкретных слов не зависит.
type Config struct {
	ManipulationKeywords []string `mapstructure:"manipulation_keywords"`
	HarmfulKeywords      []string `mapstructure:"harmful_keywords"`
	BeneficialKeywords   []string `mapstructure:"beneficial_keywords"`
	DestructiveKeywords  []string `mapstructure:"destructive_keywords"`

	ExplanationField string `mapstructure:"explanation_field"`
	ReasoningField   string `mapstructure:"reasoning_field"`

	Weights Weights `mapstructure:"weights"`
}

type Weights struct {
	Autonomy       float64 `mapstructure:"autonomy"`
	Transparency   float64 `mapstructure:"transparency"`
	Beneficence    float64 `mapstructure:"beneficence"`
	NonMaleficence float64 `mapstructure:"non_maleficence"`
}

func DefaultConfig() Config {
	return Config{
		ManipulationKeywords: []string{"manipulate", "coerce", "deceive", "trick"},
		HarmfulKeywords:      []string{"harm", "damage", "hurt", "exploit"},
		BeneficialKeywords:   []string{"help", "assist", "improve", "benefit", "support"},
		DestructiveKeywords:  []string{"delete", "destroy", "attack", "exploit", "breach"},
		ExplanationField:     "explanation",
		ReasoningField:       "reasoning",
		Weights: Weights{
			Autonomy:       1.0,
			Transparency:   0.8,
			Beneficence:    0.9,
			NonMaleficence: 1.0,
		},
	}
}

// withDefaults заполняет пустые поля значениями по умолчанию,
// чтобы частичная секция конфига не выключала проверки.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ManipulationKeywords == nil {
		c.ManipulationKeywords = d.ManipulationKeywords
	}
	if c.HarmfulKeywords == nil {
		c.HarmfulKeywords = d.HarmfulKeywords
	}
	if c.BeneficialKeywords == nil {
		c.BeneficialKeywords = d.BeneficialKeywords
	}
	if c.DestructiveKeywords == nil {
		c.DestructiveKeywords = d.DestructiveKeywords
	}
	if c.ExplanationField == "" {
		c.ExplanationField = d.ExplanationField
	}
	if c.ReasoningField == "" {
		c.ReasoningField = d.ReasoningField
	}
	if c.Weights.Autonomy == 0 {
		c.Weights.Autonomy = d.Weights.Autonomy
	}
	if c.Weights.Transparency == 0 {
		c.Weights.Transparency = d.Weights.Transparency
	}
	if c.Weights.Beneficence == 0 {
		c.Weights.Beneficence = d.Weights.Beneficence
	}
	if c.Weights.NonMaleficence == 0 {
		c.Weights.NonMaleficence = d.Weights.NonMaleficence
	}
	return c
}
