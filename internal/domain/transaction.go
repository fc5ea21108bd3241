package domain

import "time"

// Transaction — платеж, предложенный агентом.
type Transaction struct {
	ID              string    `json:"id"`
	AgentID         string    `json:"ai_system_id"`
	Amount          float64   `json:"amount"`
	Recipient       string    `json:"recipient"`
	TransactionType string    `json:"transaction_type"`
	Timestamp       time.Time `json:"timestamp"`
}

type SpendingSummary struct {
	AgentID          string  `json:"ai_system_id"`
	DailySpent       float64 `json:"daily_spent"`
	DailyLimit       float64 `json:"daily_limit"`
	TransactionLimit float64 `json:"transaction_limit"`
}
