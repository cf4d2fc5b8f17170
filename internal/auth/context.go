// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth provides authentication context helpers.
package auth

import (
	"context"

	"codeberg.org/jobsecure/jobsecure/internal/ctxkeys"
	"codeberg.org/jobsecure/jobsecure/internal/models"
)

// WithAccount stores the authenticated account in the context.
func WithAccount(ctx context.Context, acct *models.Account) context.Context {
	return context.WithValue(ctx, ctxkeys.Account{}, acct)
}

// GetAccount returns the authenticated account from the context, or nil if not authenticated.
func GetAccount(ctx context.Context) *models.Account {
	if acct, ok := ctx.Value(ctxkeys.Account{}).(*models.Account); ok {
		return acct
	}
	return nil
}

// IsAuthenticated returns true if the context has an authenticated account.
func IsAuthenticated(ctx context.Context) bool {
	return GetAccount(ctx) != nil
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkeys.RequestID{}, id)
}

// RequestID returns the request ID from the context, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxkeys.RequestID{}).(string)
	return id
}
