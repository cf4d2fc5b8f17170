// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/jobsecure/jobsecure/internal/config"
	"codeberg.org/jobsecure/jobsecure/internal/models"
	"codeberg.org/jobsecure/jobsecure/internal/services/session"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validHashKey is a valid 32-byte hex-encoded key for testing
const validHashKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// validBlockKey is a valid 32-byte hex-encoded key for encryption testing
const validBlockKey = "fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210"

const testSecret = "test-jwt-secret-test-jwt-secret"

func newTestConfig() (*config.SessionConfig, *config.AuthConfig) {
	return &config.SessionConfig{
			CookieName: "_test_session",
			HashKey:    validHashKey,
		}, &config.AuthConfig{
			Mode:      config.ModeDevelopment,
			JWTSecret: testSecret,
			JWTIssuer: "jobsecure",
			JWTExpiry: time.Hour,
		}
}

func newManager(t *testing.T) *session.Manager {
	t.Helper()
	sessCfg, authCfg := newTestConfig()
	mgr, err := session.NewManager(sessCfg, authCfg, false)
	require.NoError(t, err)
	return mgr
}

func testAccount() *models.Account {
	return &models.Account{ID: 123, Email: "jane.doe@gmail.com", Kind: models.KindEmployer}
}

func TestNewManager_WithBlockKey(t *testing.T) {
	sessCfg, authCfg := newTestConfig()
	sessCfg.BlockKey = validBlockKey

	mgr, err := session.NewManager(sessCfg, authCfg, true)

	require.NoError(t, err)
	assert.NotNil(t, mgr)
}

func TestNewManager_InvalidKeys(t *testing.T) {
	tests := []struct {
		name     string
		hashKey  string
		blockKey string
		want     string
	}{
		{"hash not hex", "not-hex-encoded", "", "invalid session hash key"},
		{"hash wrong length", "0123456789abcdef", "", "must be 32 bytes"},
		{"block not hex", validHashKey, "not-hex-encoded", "invalid session block key"},
		{"block wrong length", validHashKey, "0123456789abcdef", "must be 32 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessCfg, authCfg := newTestConfig()
			sessCfg.HashKey = tt.hashKey
			sessCfg.BlockKey = tt.blockKey

			_, err := session.NewManager(sessCfg, authCfg, false)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewManager_DevMode_GeneratesKeys(t *testing.T) {
	sessCfg, authCfg := newTestConfig()
	sessCfg.HashKey = ""
	authCfg.JWTSecret = ""

	mgr, err := session.NewManager(sessCfg, authCfg, false)

	require.NoError(t, err)
	tok, _, err := mgr.Issue(testAccount())
	require.NoError(t, err)
	_, err = mgr.Parse(tok)
	assert.NoError(t, err)
}

func TestNewManager_ProductionRequiresSecret(t *testing.T) {
	sessCfg, authCfg := newTestConfig()
	authCfg.Mode = config.ModeProduction
	authCfg.JWTSecret = ""

	_, err := session.NewManager(sessCfg, authCfg, false)

	assert.ErrorIs(t, err, session.ErrMissingSecret)
}

func TestIssueAndParse(t *testing.T) {
	mgr := newManager(t)

	tok, expiresAt, err := mgr.Issue(testAccount())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := mgr.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(123), claims.AccountID)
	assert.Equal(t, models.KindEmployer, claims.Kind)
	assert.Equal(t, "123", claims.Subject)
	assert.Equal(t, "jobsecure", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestIssue_UniqueIDs(t *testing.T) {
	mgr := newManager(t)

	a, _, err := mgr.Issue(testAccount())
	require.NoError(t, err)
	b, _, err := mgr.Issue(testAccount())
	require.NoError(t, err)

	ca, err := mgr.Parse(a)
	require.NoError(t, err)
	cb, err := mgr.Parse(b)
	require.NoError(t, err)
	assert.NotEqual(t, ca.ID, cb.ID)
}

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestParse_Rejects(t *testing.T) {
	mgr := newManager(t)
	now := time.Now()

	valid := func() session.Claims {
		return session.Claims{
			AccountID: 123,
			Kind:      models.KindFreelancer,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "jobsecure",
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	expired.IssuedAt = jwt.NewNumericDate(now.Add(-time.Hour))

	wrongIssuer := valid()
	wrongIssuer.Issuer = "someone-else"

	noExpiry := valid()
	noExpiry.ExpiresAt = nil

	noAccount := valid()
	noAccount.AccountID = 0

	tests := map[string]string{
		"expired":       signed(t, jwt.SigningMethodHS256, []byte(testSecret), expired),
		"wrong issuer":  signed(t, jwt.SigningMethodHS256, []byte(testSecret), wrongIssuer),
		"no expiry":     signed(t, jwt.SigningMethodHS256, []byte(testSecret), noExpiry),
		"no account":    signed(t, jwt.SigningMethodHS256, []byte(testSecret), noAccount),
		"wrong secret":  signed(t, jwt.SigningMethodHS256, []byte("another-secret"), valid()),
		"wrong method":  signed(t, jwt.SigningMethodHS512, []byte(testSecret), valid()),
		"none method":   signed(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid()),
		"garbage":       "not.a.jwt",
		"empty":         "",
	}

	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := mgr.Parse(tok)
			assert.ErrorIs(t, err, session.ErrInvalidSession)
		})
	}
}

func TestCookie(t *testing.T) {
	mgr := newManager(t)
	tok, expiresAt, err := mgr.Issue(testAccount())
	require.NoError(t, err)

	cookie, err := mgr.Cookie(tok, expiresAt)

	require.NoError(t, err)
	assert.Equal(t, "_test_session", cookie.Name)
	assert.NotEmpty(t, cookie.Value)
	assert.NotEqual(t, tok, cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.InDelta(t, 3600, cookie.MaxAge, 5)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
}

func TestCookie_SecureInProduction(t *testing.T) {
	sessCfg, authCfg := newTestConfig()
	authCfg.Mode = config.ModeProduction
	mgr, err := session.NewManager(sessCfg, authCfg, false)
	require.NoError(t, err)

	cookie, err := mgr.Cookie("anything", time.Now().Add(time.Hour))

	require.NoError(t, err)
	assert.True(t, cookie.Secure)
	assert.True(t, mgr.Clear().Secure)
}

func TestFromRequest_Cookie(t *testing.T) {
	mgr := newManager(t)
	tok, expiresAt, err := mgr.Issue(testAccount())
	require.NoError(t, err)
	cookie, err := mgr.Cookie(tok, expiresAt)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)

	claims, err := mgr.FromRequest(req)

	require.NoError(t, err)
	assert.Equal(t, int64(123), claims.AccountID)
}

func TestFromRequest_Bearer(t *testing.T) {
	mgr := newManager(t)
	tok, _, err := mgr.Issue(testAccount())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	claims, err := mgr.FromRequest(req)

	require.NoError(t, err)
	assert.Equal(t, int64(123), claims.AccountID)
}

func TestFromRequest_NoCredentials(t *testing.T) {
	mgr := newManager(t)

	_, err := mgr.FromRequest(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestFromRequest_BadHeader(t *testing.T) {
	mgr := newManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	_, err := mgr.FromRequest(req)

	assert.ErrorIs(t, err, session.ErrInvalidSession)
}

func TestFromRequest_RawJWTInCookieRejected(t *testing.T) {
	mgr := newManager(t)
	tok, _, err := mgr.Issue(testAccount())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "_test_session", Value: tok})

	_, err = mgr.FromRequest(req)

	assert.ErrorIs(t, err, session.ErrInvalidSession)
}

func TestFromRequest_DifferentManager(t *testing.T) {
	mgr1 := newManager(t)
	tok, expiresAt, err := mgr1.Issue(testAccount())
	require.NoError(t, err)
	cookie, err := mgr1.Cookie(tok, expiresAt)
	require.NoError(t, err)

	sessCfg, authCfg := newTestConfig()
	sessCfg.HashKey = validBlockKey
	mgr2, err := session.NewManager(sessCfg, authCfg, false)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)

	_, err = mgr2.FromRequest(req)

	assert.ErrorIs(t, err, session.ErrInvalidSession)
}

func TestClear(t *testing.T) {
	mgr := newManager(t)

	cookie := mgr.Clear()

	assert.Equal(t, "_test_session", cookie.Name)
	assert.Empty(t, cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, -1, cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
}

func TestGenerateKey(t *testing.T) {
	key, err := session.GenerateKey()
	require.NoError(t, err)
	assert.Len(t, key, 64)
}
