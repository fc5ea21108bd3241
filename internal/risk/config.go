package risk

// Config — словари и пороги проверок Guardian. Это отдельный набор от ethics.Config.
type Config struct {
	AutonomyKeywords   []string `mapstructure:"autonomy_keywords"`
	HarmKeywords       []string `mapstructure:"harm_keywords"`
	CapabilityKeywords []string `mapstructure:"capability_keywords"`
	ExplanationField   string   `mapstructure:"explanation_field"`
	TransactionType    string   `mapstructure:"transaction_type"`
	AmountField        string   `mapstructure:"amount_field"`
	Confidence         float64  `mapstructure:"confidence"`
	Weights            Weights  `mapstructure:"weights"`
}

// Weights — вклады проверок в итоговый балл.
type Weights struct {
	Boundary    float64 `mapstructure:"boundary"`
	Capability  float64 `mapstructure:"capability"`
	Transaction float64 `mapstructure:"transaction"`
}

func DefaultConfig() Config {
	return Config{
		AutonomyKeywords:   []string{"manipulate", "coerce"},
		HarmKeywords:       []string{"harm", "damage"},
		CapabilityKeywords: []string{"self_modify", "expand_capabilities", "learn_new_skill"},
		ExplanationField:   "explanation",
		TransactionType:    "transaction",
		AmountField:        "amount",
		Confidence:         0.85,
		Weights:            Weights{Boundary: 0.8, Capability: 0.6, Transaction: 0.7},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AutonomyKeywords == nil {
		c.AutonomyKeywords = d.AutonomyKeywords
	}
	if c.HarmKeywords == nil {
		c.HarmKeywords = d.HarmKeywords
	}
	if c.CapabilityKeywords == nil {
		c.CapabilityKeywords = d.CapabilityKeywords
	}
	if c.ExplanationField == "" {
		c.ExplanationField = d.ExplanationField
	}
	if c.TransactionType == "" {
		c.TransactionType = d.TransactionType
	}
	if c.AmountField == "" {
		c.AmountField = d.AmountField
	}
	if c.Confidence == 0 {
		c.Confidence = d.Confidence
	}
	// Каждый вес по отдельности: частичная секция weights не должна обнулять остальные проверки
	if c.Weights.Boundary == 0 {
		c.Weights.Boundary = d.Weights.Boundary
	}
	if c.Weights.Capability == 0 {
		c.Weights.Capability = d.Weights.Capability
	}
	if c.Weights.Transaction == 0 {
		c.Weights.Transaction = d.Weights.Transaction
	}
	return c
}
