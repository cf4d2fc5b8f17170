// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/jobsecure/jobsecure/internal/models"
)

const accountColumns = `id, name, email, password_hash, kind, verified,
	verification_token, verification_method, verification_expires_at,
	reset_token_hash, reset_expires_at, created_at, updated_at`

// CreateAccount inserts a new account and fills in its ID and timestamps.
// Uniqueness of the email is enforced by the database only, so concurrent
// registrations for the same address yield exactly one row.
func (r *Repository) CreateAccount(ctx context.Context, acct *models.Account) error {
	now := time.Now().UnixMilli()
	if acct.CreatedAt == 0 {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = acct.CreatedAt

	err := r.db.GetContext(ctx, &acct.ID,
		`INSERT INTO accounts (name, email, password_hash, kind, verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		acct.Name, acct.Email, acct.PasswordHash, string(acct.Kind), acct.Verified, acct.CreatedAt, acct.UpdatedAt)
	return wrapError(err)
}

// GetAccountByID retrieves an account by ID.
func (r *Repository) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	var acct models.Account
	err := r.db.GetContext(ctx, &acct, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &acct, nil
}

// GetAccountByEmail retrieves an account by its normalized email.
func (r *Repository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var acct models.Account
	err := r.db.GetContext(ctx, &acct, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email)
	if err != nil {
		return nil, wrapError(err)
	}
	return &acct, nil
}

// UpdatePassword replaces the stored password hash.
func (r *Repository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.execOne(ctx,
		`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UnixMilli(), id)
}

// MarkVerified flags the account as verified and empties the verification slot.
func (r *Repository) MarkVerified(ctx context.Context, id int64) error {
	return r.execOne(ctx,
		`UPDATE accounts
		 SET verified = 1, verification_token = NULL, verification_method = NULL,
		     verification_expires_at = NULL, updated_at = ?
		 WHERE id = ?`,
		time.Now().UnixMilli(), id)
}

// DeleteAccount removes an account.
func (r *Repository) DeleteAccount(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM accounts WHERE id = ?`, id)
}

// CountAccounts returns the number of accounts with the given email.
func (r *Repository) CountAccounts(ctx context.Context, email string) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT count(*) FROM accounts WHERE email = ?`, email)
	return n, err
}

// execOne runs a statement that must touch exactly one row.
func (r *Repository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
