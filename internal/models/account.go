// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"strings"
	"time"
)

// AccountKind is the marketplace role of an account.
type AccountKind string

const (
	KindFreelancer AccountKind = "freelancer"
	KindEmployer   AccountKind = "employer"
)

// Valid reports whether k is one of the known kinds.
func (k AccountKind) Valid() bool {
	return k == KindFreelancer || k == KindEmployer
}

// VerificationMethod tags what the verification slot currently holds.
type VerificationMethod string

const (
	// VerificationLink slots hold the keyed hash of a random link token.
	VerificationLink VerificationMethod = "link"
	// VerificationCode slots hold a numeric code in plaintext.
	VerificationCode VerificationMethod = "code"
)

// Account is a registered marketplace user. Expiry columns are unix
// milliseconds so SQL comparisons are exact.
type Account struct { //nolint:govet // fieldalignment: readability over optimization
	ID                    int64               `db:"id"`
	Name                  string              `db:"name"`
	Email                 string              `db:"email"`
	PasswordHash          string              `db:"password_hash"`
	Kind                  AccountKind         `db:"kind"`
	Verified              bool                `db:"verified"`
	VerificationToken     *string             `db:"verification_token"`
	VerificationMethod    *VerificationMethod `db:"verification_method"`
	VerificationExpiresAt *int64              `db:"verification_expires_at"`
	ResetTokenHash        *string             `db:"reset_token_hash"`
	ResetExpiresAt        *int64              `db:"reset_expires_at"`
	CreatedAt             int64               `db:"created_at"`
	UpdatedAt             int64               `db:"updated_at"`
}

// HasPendingVerification reports whether a verification token or code is outstanding.
func (a *Account) HasPendingVerification() bool {
	return a.VerificationToken != nil
}

// HasPendingReset reports whether a reset token is outstanding.
func (a *Account) HasPendingReset() bool {
	return a.ResetTokenHash != nil
}

// VerificationExpiry returns the expiry of the outstanding verification token.
func (a *Account) VerificationExpiry() time.Time {
	return fromMillis(a.VerificationExpiresAt)
}

// ResetExpiry returns the expiry of the outstanding reset token.
func (a *Account) ResetExpiry() time.Time {
	return fromMillis(a.ResetExpiresAt)
}

func (a *Account) Created() time.Time {
	return time.UnixMilli(a.CreatedAt).UTC()
}

// EmailDomain returns the part after the last "@".
func (a *Account) EmailDomain() string {
	if i := strings.LastIndexByte(a.Email, '@'); i >= 0 {
		return a.Email[i+1:]
	}
	return ""
}

func fromMillis(ms *int64) time.Time {
	if ms == nil {
		return time.Time{}
	}
	return time.UnixMilli(*ms).UTC()
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
