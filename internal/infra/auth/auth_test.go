package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/higher-guardian/internal/domain"
)

func signedToken(t *testing.T, key *rsa.PrivateKey, issuer string, scopes map[string]bool, ttl time.Duration) string {
	t.Helper()
	claims := domain.CustomClaims{
		UserID: "op-1",
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestVerifyToken(t *testing.T) {
	key := newKey(t)
	v := NewBaseValidator(&key.PublicKey, "guardian")

	claims, err := v.VerifyToken("Bearer " + signedToken(t, key, "guardian", map[string]bool{domain.ScopeAdmin: true}, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.UserID)
	assert.True(t, claims.Scopes[domain.ScopeAdmin])

	_, err = v.VerifyToken(signedToken(t, key, "guardian", nil, -time.Minute))
	assert.Error(t, err, "expired")

	_, err = v.VerifyToken(signedToken(t, key, "someone-else", nil, time.Hour))
	assert.Error(t, err, "wrong issuer")

	_, err = v.VerifyToken(signedToken(t, newKey(t), "guardian", nil, time.Hour))
	assert.Error(t, err, "foreign key")

	hs, err := jwt.NewWithClaims(jwt.SigningMethodHS256, domain.CustomClaims{}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = v.VerifyToken(hs)
	assert.Error(t, err, "hmac must be rejected")
}

func TestParseKeys(t *testing.T) {
	key := newKey(t)

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	pub, err := ParseRSAPublicKey(pubPEM)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey.N, pub.N)

	priv, err := ParseRSAPrivateKey(privPEM)
	require.NoError(t, err)
	assert.Equal(t, key.D, priv.D)

	_, err = ParseRSAPublicKey(nil)
	assert.Error(t, err)
	_, err = ParseRSAPrivateKey([]byte("garbage"))
	assert.Error(t, err)
}

func TestMiddlewareAndScopes(t *testing.T) {
	key := newKey(t)
	v := NewBaseValidator(&key.PublicKey, "")

	var seenUser string
	handler := NewMiddleware(v, nil)(RequireScope(domain.ScopeRead)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"read scope", "Bearer " + signedToken(t, key, "", map[string]bool{domain.ScopeRead: true}, time.Hour), http.StatusNoContent},
		{"admin scope", "Bearer " + signedToken(t, key, "", map[string]bool{domain.ScopeAdmin: true}, time.Hour), http.StatusNoContent},
		{"no scope", "Bearer " + signedToken(t, key, "", map[string]bool{"other": true}, time.Hour), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	assert.Equal(t, "op-1", seenUser)
}
