package domain

import "github.com/golang-jwt/jwt/v5"

// Скоупы консоли.
const (
	ScopeAdmin = "admin"
	ScopeRead  = "guardian.read"
)

type CustomClaims struct {
	UserID string          `json:"user_id"`
	Scopes map[string]bool `json:"scopes"` // "admin": true или "guardian.read": true
	jwt.RegisteredClaims
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // Всегда "Bearer"
	ExpiresIn   int64  `json:"expires_in"`
}

// Operator — оператор консоли. Список задается в конфиге, БД нет.
type Operator struct {
	ID           string   `json:"id" mapstructure:"id"`
	Username     string   `json:"username" mapstructure:"username"`
	PasswordHash string   `json:"-" mapstructure:"password_hash"` // bcrypt
	Scopes       []string `json:"scopes" mapstructure:"scopes"`
}

// ScopeSet переводит список в формат claims.
func (o Operator) ScopeSet() map[string]bool {
	set := make(map[string]bool, len(o.Scopes))
	for _, s := range o.Scopes {
		set[s] = true
	}
	return set
}
