package service

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/higher-guardian/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthProvider interface {
	GetOperator(ctx context.Context, username string) (*domain.Operator, error)
}

// OperatorRegistry операторы из конфига. Меняется только перезапуском.
type OperatorRegistry struct {
	byName map[string]domain.Operator
}

func NewOperatorRegistry(operators []domain.Operator) *OperatorRegistry {
	r := &OperatorRegistry{byName: make(map[string]domain.Operator, len(operators))}
	for _, op := range operators {
		if op.ID == "" {
			op.ID = op.Username
		}
		r.byName[op.Username] = op
	}
	return r
}

func (r *OperatorRegistry) GetOperator(_ context.Context, username string) (*domain.Operator, error) {
	op, ok := r.byName[username]
	if !ok {
		return nil, nil
	}
	return &op, nil
}

type AuthService struct {
	repo       AuthProvider
	privateKey *rsa.PrivateKey
	issuer     string
	ttl        time.Duration
}

func NewAuthService(repo AuthProvider, privateKey *rsa.PrivateKey, issuer string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AuthService{
		repo:       repo,
		privateKey: privateKey,
		issuer:     issuer,
		ttl:        ttl,
	}
}

func (s *AuthService) GenerateToken(ctx context.Context, username, password string) (*domain.TokenResponse, error) {
	// 1. Аутентификация (источник правды — конфиг операторов)
	op, err := s.repo.GetOperator(ctx, username)
	if err != nil || op == nil {
		return nil, ErrInvalidCredentials
	}

	// 2. Проверка пароля (используем bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 3. Формирование Claims
	now := time.Now()
	expiresAt := now.Add(s.ttl)
	claims := &domain.CustomClaims{
		UserID: op.ID,
		Scopes: op.ScopeSet(), // Напр. map[string]bool{"admin": true}
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   op.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	// 4. Подпись токена ЗАКРЫТЫМ КЛЮЧОМ (RS256)
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &domain.TokenResponse{
		AccessToken: signedToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.ttl.Seconds()),
	}, nil
}
