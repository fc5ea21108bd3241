package domain

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// AIAction — действие, которое агент предлагает выполнить. После создания не меняется.
type AIAction struct {
	ID         string                 `json:"id"`
	AgentID    string                 `json:"ai_system_id"`
	ActionType string                 `json:"action_type"` // Свободный текст: "transaction", "data_analysis", ...
	Payload    map[string]interface{} `json:"payload"`
	Timestamp  time.Time              `json:"timestamp"`

	RiskAssessment *RiskAssessment `json:"risk_assessment,omitempty"`
}

// NewAIAction проставляет ID и время.
func NewAIAction(agentID, actionType string, payload map[string]interface{}) AIAction {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return AIAction{
		ID:         uuid.New().String(),
		AgentID:    agentID,
		ActionType: actionType,
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
	}
}

// HasField — есть ли ключ в payload (значение может быть любым, даже null).
func (a AIAction) HasField(key string) bool {
	if a.Payload == nil {
		return false
	}
	_, ok := a.Payload[key]
	return ok
}

// PayloadFloat достает число из payload. Строки не конвертируются:
// нечисловое значение считается отсутствующим.
func (a AIAction) PayloadFloat(key string) (float64, bool) {
	raw, ok := a.Payload[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	}
	return 0, false
}

// PayloadJSON — сериализованный payload для текстовых эвристик.
func (a AIAction) PayloadJSON() string {
	if a.Payload == nil {
		return "null"
	}
	data, err := json.Marshal(a.Payload)
	if err != nil {
		return ""
	}
	return string(data)
}
