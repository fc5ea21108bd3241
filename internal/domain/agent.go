package domain

import "time"

// AISystemProfile — зарегистрированный агент. Реестр делает upsert по ID, удаления нет.
type AISystemProfile struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"` // Человекочитаемое имя (например, "Jira-Helper-Bot")
	Capabilities  []string  `json:"capabilities"`
	TrustLevel    float64   `json:"trust_level"`
	SpendingLimit float64   `json:"spending_limit"`
	LastActivity  time.Time `json:"last_activity"`
}

// TransactionGuard — лимиты агента, которые видит Guardian при оценке риска.
type TransactionGuard struct {
	MaxAmount            float64  `json:"max_amount"`
	DailyLimit           float64  `json:"daily_limit"`
	SuspiciousPatterns   []string `json:"suspicious_patterns"`
	BlacklistedAddresses []string `json:"blacklisted_addresses"`
}
