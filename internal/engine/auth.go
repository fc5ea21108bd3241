package engine

import (
	"crypto/subtle"
	"net/http"
)

// AgentTokens статические токены агентов data plane. Пустой набор выключает проверку.
type AgentTokens struct {
	tokens [][]byte
}

func NewAgentTokens(tokens []string) *AgentTokens {
	t := &AgentTokens{}
	for _, s := range tokens {
		if s != "" {
			t.tokens = append(t.tokens, []byte(s))
		}
	}
	return t
}

func (t *AgentTokens) Enabled() bool {
	return t != nil && len(t.tokens) > 0
}

// Valid сравнивает за постоянное время.
func (t *AgentTokens) Valid(token string) bool {
	if !t.Enabled() {
		return true
	}
	candidate := []byte(token)
	ok := 0
	for _, known := range t.tokens {
		ok |= subtle.ConstantTimeCompare(candidate, known)
	}
	return ok == 1
}

// AuthMiddleware проверяет X-Guardian-Token агента
func (t *AgentTokens) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Guardian-Token")
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "security_violation", "message": "missing access token"})
			return
		}
		if !t.Valid(token) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "security_violation", "message": "invalid access token"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
