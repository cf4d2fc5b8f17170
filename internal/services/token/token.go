// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token issues and consumes the single-use tokens stored on an
// account: email verification (link or numeric code) and password reset.
package token

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand/v2"
	"strconv"
	"time"

	"codeberg.org/jobsecure/jobsecure/internal/config"
	"codeberg.org/jobsecure/jobsecure/internal/models"
	"codeberg.org/jobsecure/jobsecure/internal/repository"
)

// RawLength is the number of random bytes in link and reset tokens.
const RawLength = 32

// ErrInvalidOrExpired is returned when a token does not match any account,
// was already used, or has expired.
var ErrInvalidOrExpired = errors.New("token is invalid or has expired")

// ResetFlow selects which expiry applies to a reset token.
type ResetFlow int

const (
	// ResetFlowRequest is the user-initiated forgot-password flow.
	ResetFlowRequest ResetFlow = iota
	// ResetFlowHelper is the operator-issued reset link.
	ResetFlowHelper
)

func (f ResetFlow) String() string {
	if f == ResetFlowHelper {
		return "helper"
	}
	return "request"
}

// TTLs are the lifetimes of each token kind.
type TTLs struct {
	Verification     time.Duration
	VerificationCode time.Duration
	ResetRequest     time.Duration
	ResetHelper      time.Duration
}

// DefaultTTLs are 24h links, 1h codes, 1h requested resets and 10m helper resets.
var DefaultTTLs = TTLs{
	Verification:     24 * time.Hour,
	VerificationCode: time.Hour,
	ResetRequest:     time.Hour,
	ResetHelper:      10 * time.Minute,
}

// TTLsFromConfig reads the lifetimes from the auth config, keeping defaults
// for unset values.
func TTLsFromConfig(cfg *config.AuthConfig) TTLs {
	ttls := DefaultTTLs
	if cfg.VerificationTTL > 0 {
		ttls.Verification = cfg.VerificationTTL
	}
	if cfg.VerificationCodeTTL > 0 {
		ttls.VerificationCode = cfg.VerificationCodeTTL
	}
	if cfg.ResetTTL > 0 {
		ttls.ResetRequest = cfg.ResetTTL
	}
	if cfg.ResetHelperTTL > 0 {
		ttls.ResetHelper = cfg.ResetHelperTTL
	}
	return ttls
}

// Store persists token slots. *repository.Repository implements it.
type Store interface {
	SetVerificationToken(ctx context.Context, id int64, value string, method models.VerificationMethod, expiresAt time.Time) error
	ClearVerificationToken(ctx context.Context, id int64) error
	ConsumeVerificationLink(ctx context.Context, tokenHash string, now time.Time) (*models.Account, error)
	ConsumeVerificationCode(ctx context.Context, email, code string, now time.Time) (*models.Account, error)
	SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, id int64) error
	GetAccountByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.Account, error)
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*models.Account, error)
}

// PasswordHasher hashes the new password on reset.
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// Issued is a freshly issued token. Raw is handed to the user and never stored.
type Issued struct {
	Raw       string
	ExpiresAt time.Time
}

// Issuer issues and consumes tokens.
type Issuer struct {
	store  Store
	hasher PasswordHasher
	pepper []byte
	ttls   TTLs
	now    func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer creates an Issuer. Stored link and reset tokens are
// HMAC-SHA256(pepper, raw).
func NewIssuer(store Store, hasher PasswordHasher, pepper string, ttls TTLs, opts ...Option) *Issuer {
	i := &Issuer{
		store:  store,
		hasher: hasher,
		pepper: []byte(pepper),
		ttls:   ttls,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}

	if ttls.ResetRequest != ttls.ResetHelper {
		slog.Warn("reset_token_ttl_mismatch",
			"request_ttl", ttls.ResetRequest,
			"helper_ttl", ttls.ResetHelper,
		)
	}
	if pepper == "" {
		slog.Warn("token_pepper_missing", "hint", "stored token hashes are unkeyed")
	}
	return i
}

// TTLs returns the configured lifetimes.
func (i *Issuer) TTLs() TTLs {
	return i.ttls
}

// Hash returns the stored form of a raw link or reset token.
func (i *Issuer) Hash(raw string) string {
	mac := hmac.New(sha256.New, i.pepper)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// IssueVerificationToken stores a new link token on acct, replacing any
// outstanding verification token or code.
func (i *Issuer) IssueVerificationToken(ctx context.Context, acct *models.Account) (*Issued, error) {
	raw, err := randomToken()
	if err != nil {
		return nil, err
	}
	expiresAt := i.now().Add(i.ttls.Verification)

	if err := i.store.SetVerificationToken(ctx, acct.ID, i.Hash(raw), models.VerificationLink, expiresAt); err != nil {
		return nil, fmt.Errorf("storing verification token: %w", err)
	}
	return &Issued{Raw: raw, ExpiresAt: expiresAt}, nil
}

// IssueVerificationCode stores a new 6-digit code on acct. Unlike link
// tokens, codes come from a non-cryptographic source and are stored in
// plaintext with a shorter lifetime.
func (i *Issuer) IssueVerificationCode(ctx context.Context, acct *models.Account) (*Issued, error) {
	code := strconv.Itoa(100000 + mathrand.IntN(900000)) //nolint:gosec // weaker code variant kept on purpose
	expiresAt := i.now().Add(i.ttls.VerificationCode)

	if err := i.store.SetVerificationToken(ctx, acct.ID, code, models.VerificationCode, expiresAt); err != nil {
		return nil, fmt.Errorf("storing verification code: %w", err)
	}
	return &Issued{Raw: code, ExpiresAt: expiresAt}, nil
}

// ClearVerification removes the outstanding verification token or code.
func (i *Issuer) ClearVerification(ctx context.Context, accountID int64) error {
	return i.store.ClearVerificationToken(ctx, accountID)
}

// ConsumeVerificationToken verifies the account owning raw.
func (i *Issuer) ConsumeVerificationToken(ctx context.Context, raw string) (*models.Account, error) {
	if raw == "" {
		return nil, ErrInvalidOrExpired
	}
	acct, err := i.store.ConsumeVerificationLink(ctx, i.Hash(raw), i.now())
	return acct, mapConsumeError(err)
}

// ConsumeVerificationCode verifies the account with email if code matches.
func (i *Issuer) ConsumeVerificationCode(ctx context.Context, email, code string) (*models.Account, error) {
	if code == "" {
		return nil, ErrInvalidOrExpired
	}
	acct, err := i.store.ConsumeVerificationCode(ctx, email, code, i.now())
	return acct, mapConsumeError(err)
}

// IssueResetToken stores a new reset token on acct with the lifetime of flow.
func (i *Issuer) IssueResetToken(ctx context.Context, acct *models.Account, flow ResetFlow) (*Issued, error) {
	ttl := i.ttls.ResetRequest
	if flow == ResetFlowHelper {
		ttl = i.ttls.ResetHelper
	}

	raw, err := randomToken()
	if err != nil {
		return nil, err
	}
	expiresAt := i.now().Add(ttl)

	if err := i.store.SetResetToken(ctx, acct.ID, i.Hash(raw), expiresAt); err != nil {
		return nil, fmt.Errorf("storing reset token: %w", err)
	}
	slog.InfoContext(ctx, "reset_token_issued", "account_id", acct.ID, "flow", flow.String(), "expires_at", expiresAt)
	return &Issued{Raw: raw, ExpiresAt: expiresAt}, nil
}

// ClearReset removes the outstanding reset token.
func (i *Issuer) ClearReset(ctx context.Context, accountID int64) error {
	return i.store.ClearResetToken(ctx, accountID)
}

// LookupResetToken returns the account owning a live reset token. The token
// stays valid.
func (i *Issuer) LookupResetToken(ctx context.Context, raw string) (*models.Account, error) {
	if raw == "" {
		return nil, ErrInvalidOrExpired
	}
	acct, err := i.store.GetAccountByResetToken(ctx, i.Hash(raw), i.now())
	return acct, mapConsumeError(err)
}

// ConsumeResetToken sets newPassword on the account owning raw and clears
// the token in one conditional update.
func (i *Issuer) ConsumeResetToken(ctx context.Context, raw, newPassword string) (*models.Account, error) {
	if raw == "" {
		return nil, ErrInvalidOrExpired
	}
	passwordHash, err := i.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	acct, err := i.store.ConsumeResetToken(ctx, i.Hash(raw), passwordHash, i.now())
	return acct, mapConsumeError(err)
}

func mapConsumeError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidOrExpired
	}
	return err
}

func randomToken() (string, error) {
	b := make([]byte, RawLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
