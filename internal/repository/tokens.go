// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/jobsecure/jobsecure/internal/models"
)

// Each account has one verification slot and one reset slot. Setting a slot
// overwrites whatever it held, which invalidates the previous token.
//
// Consume* methods are a single conditional UPDATE ... RETURNING: the row
// only changes when the stored value matches and the expiry lies strictly
// after now, so of two concurrent consumers exactly one gets the account.

// SetVerificationToken stores a verification value (link hash or code).
func (r *Repository) SetVerificationToken(ctx context.Context, id int64, value string, method models.VerificationMethod, expiresAt time.Time) error {
	return r.execOne(ctx,
		`UPDATE accounts
		 SET verification_token = ?, verification_method = ?, verification_expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		value, string(method), expiresAt.UnixMilli(), time.Now().UnixMilli(), id)
}

// ClearVerificationToken empties the verification slot.
func (r *Repository) ClearVerificationToken(ctx context.Context, id int64) error {
	return r.execOne(ctx,
		`UPDATE accounts
		 SET verification_token = NULL, verification_method = NULL, verification_expires_at = NULL, updated_at = ?
		 WHERE id = ?`,
		time.Now().UnixMilli(), id)
}

// ConsumeVerificationLink verifies the account whose slot holds the given link hash.
func (r *Repository) ConsumeVerificationLink(ctx context.Context, tokenHash string, now time.Time) (*models.Account, error) {
	var acct models.Account
	err := r.db.GetContext(ctx, &acct,
		`UPDATE accounts
		 SET verified = 1, verification_token = NULL, verification_method = NULL,
		     verification_expires_at = NULL, updated_at = ?
		 WHERE verification_token = ? AND verification_method = ? AND verification_expires_at > ?
		 RETURNING `+accountColumns,
		now.UnixMilli(), tokenHash, string(models.VerificationLink), now.UnixMilli())
	if err != nil {
		return nil, wrapError(err)
	}
	return &acct, nil
}

// ConsumeVerificationCode verifies the account with the given email if its
// slot holds the given numeric code.
func (r *Repository) ConsumeVerificationCode(ctx context.Context, email, code string, now time.Time) (*models.Account, error) {
	var acct models.Account
	err := r.db.GetContext(ctx, &acct,
		`UPDATE accounts
		 SET verified = 1, verification_token = NULL, verification_method = NULL,
		     verification_expires_at = NULL, updated_at = ?
		 WHERE email = ? AND verification_token = ? AND verification_method = ? AND verification_expires_at > ?
		 RETURNING `+accountColumns,
		now.UnixMilli(), email, code, string(models.VerificationCode), now.UnixMilli())
	if err != nil {
		return nil, wrapError(err)
	}
	return &acct, nil
}

// SetResetToken stores the hash of a password reset token.
func (r *Repository) SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	return r.execOne(ctx,
		`UPDATE accounts SET reset_token_hash = ?, reset_expires_at = ?, updated_at = ? WHERE id = ?`,
		tokenHash, expiresAt.UnixMilli(), time.Now().UnixMilli(), id)
}

// ClearResetToken empties the reset slot.
func (r *Repository) ClearResetToken(ctx context.Context, id int64) error {
	return r.execOne(ctx,
		`UPDATE accounts SET reset_token_hash = NULL, reset_expires_at = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UnixMilli(), id)
}

// ConsumeResetToken sets a new password hash on the account whose reset slot
// holds tokenHash and clears the slot in the same statement.
func (r *Repository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*models.Account, error) {
	var acct models.Account
	err := r.db.GetContext(ctx, &acct,
		`UPDATE accounts
		 SET password_hash = ?, reset_token_hash = NULL, reset_expires_at = NULL, updated_at = ?
		 WHERE reset_token_hash = ? AND reset_expires_at > ?
		 RETURNING `+accountColumns,
		passwordHash, now.UnixMilli(), tokenHash, now.UnixMilli())
	if err != nil {
		return nil, wrapError(err)
	}
	return &acct, nil
}

// GetAccountByResetToken returns the account whose live reset slot holds
// tokenHash without consuming it.
func (r *Repository) GetAccountByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.Account, error) {
	var acct models.Account
	err := r.db.GetContext(ctx, &acct,
		`SELECT `+accountColumns+` FROM accounts WHERE reset_token_hash = ? AND reset_expires_at > ?`,
		tokenHash, now.UnixMilli())
	if err != nil {
		return nil, wrapError(err)
	}
	return &acct, nil
}
