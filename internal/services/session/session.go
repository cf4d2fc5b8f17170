// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session issues the stateless session tokens handed out after
// registration and login. Tokens are HS256 JWTs; when delivered as a cookie
// the JWT is additionally signed (and optionally encrypted) with
// securecookie.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"codeberg.org/jobsecure/jobsecure/internal/config"
	"codeberg.org/jobsecure/jobsecure/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

var (
	// ErrNoSession means the request carried neither a bearer token nor a cookie.
	ErrNoSession = errors.New("no session")
	// ErrInvalidSession means the token was malformed, forged or expired.
	ErrInvalidSession = errors.New("invalid or expired session")
	// ErrMissingSecret is returned in production when no JWT secret is configured.
	ErrMissingSecret = errors.New("jwt secret is required in production")
)

// Claims are the JWT claims of a session token.
type Claims struct {
	AccountID int64              `json:"aid"`
	Kind      models.AccountKind `json:"kind"`
	jwt.RegisteredClaims
}

// Manager issues and validates session tokens.
type Manager struct {
	secret     []byte
	issuer     string
	expiry     time.Duration
	cookieName string
	secure     bool
	codec      *securecookie.SecureCookie
	now        func() time.Time
}

// NewManager creates a Manager. Missing keys are generated in development
// mode, which invalidates sessions on restart. secure forces the Secure
// cookie flag; production mode always sets it.
func NewManager(sessCfg *config.SessionConfig, authCfg *config.AuthConfig, secure bool) (*Manager, error) {
	secret := []byte(authCfg.JWTSecret)
	if len(secret) == 0 {
		if authCfg.Mode.IsProduction() {
			return nil, ErrMissingSecret
		}
		slog.Warn("jwt_secret_generated", "hint", "set --jwt-secret to keep sessions across restarts")
		secret = securecookie.GenerateRandomKey(32)
	}

	hashKey, err := decodeKey(sessCfg.HashKey, "invalid session hash key")
	if err != nil {
		return nil, err
	}
	if hashKey == nil {
		hashKey = securecookie.GenerateRandomKey(32)
	}
	blockKey, err := decodeKey(sessCfg.BlockKey, "invalid session block key")
	if err != nil {
		return nil, err
	}

	expiry := authCfg.JWTExpiry
	if expiry <= 0 {
		expiry = 30 * 24 * time.Hour
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(int(expiry.Seconds()))

	cookieName := sessCfg.CookieName
	if cookieName == "" {
		cookieName = "token"
	}

	return &Manager{
		secret:     secret,
		issuer:     authCfg.JWTIssuer,
		expiry:     expiry,
		cookieName: cookieName,
		secure:     secure || authCfg.Mode.IsProduction(),
		codec:      codec,
		now:        time.Now,
	}, nil
}

func decodeKey(value, errPrefix string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errPrefix, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%s: must be 32 bytes (64 hex chars), got %d bytes", errPrefix, len(key))
	}
	return key, nil
}

// GenerateKey returns a random 32-byte key, hex encoded.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// Issue signs a new session token for acct.
func (m *Manager) Issue(acct *models.Account) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.expiry)

	claims := Claims{
		AccountID: acct.ID,
		Kind:      acct.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(acct.ID, 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse validates a session token and returns its claims.
func (m *Manager) Parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}
	if claims.AccountID <= 0 {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Cookie wraps tokenString in a signed session cookie.
func (m *Manager) Cookie(tokenString string, expiresAt time.Time) (*http.Cookie, error) {
	encoded, err := m.codec.Encode(m.cookieName, tokenString)
	if err != nil {
		return nil, fmt.Errorf("encoding session cookie: %w", err)
	}

	return &http.Cookie{
		Name:     m.cookieName,
		Value:    encoded,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Clear returns a cookie that removes the session cookie.
func (m *Manager) Clear() *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// FromRequest reads the session from the Authorization bearer header, or
// from the session cookie when no header is present.
func (m *Manager) FromRequest(r *http.Request) (*Claims, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, tokenString, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
			return nil, ErrInvalidSession
		}
		return m.Parse(strings.TrimSpace(tokenString))
	}

	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}

	var tokenString string
	if err := m.codec.Decode(m.cookieName, cookie.Value, &tokenString); err != nil {
		return nil, ErrInvalidSession
	}
	return m.Parse(tokenString)
}
