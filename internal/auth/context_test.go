// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth_test

import (
	"context"
	"testing"

	"codeberg.org/jobsecure/jobsecure/internal/auth"
	"codeberg.org/jobsecure/jobsecure/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestAccountContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, auth.GetAccount(ctx))
	assert.False(t, auth.IsAuthenticated(ctx))

	acct := &models.Account{ID: 42}
	ctx = auth.WithAccount(ctx, acct)

	assert.Same(t, acct, auth.GetAccount(ctx))
	assert.True(t, auth.IsAuthenticated(ctx))
}

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, auth.RequestID(ctx))

	ctx = auth.WithRequestID(ctx, "abc-123")
	assert.Equal(t, "abc-123", auth.RequestID(ctx))
}
