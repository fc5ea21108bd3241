package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/higher-guardian/internal/domain"
	"github.com/xela07ax/higher-guardian/internal/infra/auth"
	"golang.org/x/crypto/bcrypt"
)

func newOperators(t *testing.T) *OperatorRegistry {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewOperatorRegistry([]domain.Operator{
		{ID: "op-1", Username: "alice", PasswordHash: string(hash), Scopes: []string{domain.ScopeAdmin}},
		{Username: "bob", PasswordHash: string(hash), Scopes: []string{domain.ScopeRead}},
	})
}

func TestGenerateTokenRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	svc := NewAuthService(newOperators(t), key, "higher-guardian-console", 15*time.Minute)

	resp, err := svc.GenerateToken(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(900), resp.ExpiresIn)

	claims, err := auth.NewBaseValidator(&key.PublicKey, "higher-guardian-console").VerifyToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.UserID)
	assert.True(t, claims.Scopes[domain.ScopeAdmin])

	// ID по умолчанию — имя пользователя
	resp, err = svc.GenerateToken(context.Background(), "bob", "s3cret")
	require.NoError(t, err)
	claims, err = auth.NewBaseValidator(&key.PublicKey, "").VerifyToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.UserID)
	assert.False(t, claims.Scopes[domain.ScopeAdmin])
}

func TestGenerateTokenRejectsBadCredentials(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	svc := NewAuthService(newOperators(t), key, "", 0)

	_, err = svc.GenerateToken(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.GenerateToken(context.Background(), "mallory", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
