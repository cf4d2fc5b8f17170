// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/jobsecure/jobsecure/internal/models"
	"codeberg.org/jobsecure/jobsecure/internal/repository"
	"codeberg.org/jobsecure/jobsecure/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetVerificationToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	acct := testutil.NewTestAccount(t, repo, "jane.doe@gmail.com")
	expires := time.Now().Add(time.Hour).Truncate(time.Millisecond)

	require.NoError(t, repo.SetVerificationToken(ctx, acct.ID, "hash-1", models.VerificationLink, expires))

	got, err := repo.GetAccountByID(ctx, acct.ID)
	require.NoError(t, err)
	require.NotNil(t, got.VerificationToken)
	assert.Equal(t, "hash-1", *got.VerificationToken)
	require.NotNil(t, got.VerificationMethod)
	assert.Equal(t, models.VerificationLink, *got.VerificationMethod)
	assert.True(t, expires.Equal(got.VerificationExpiry()))
}

func TestSetVerificationToken_OverwriteInvalidatesPrevious(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	acct := testutil.NewTestAccount(t, repo, "jane.doe@gmail.com")
	now := time.Now()

	require.NoError(t, repo.SetVerificationToken(ctx, acct.ID, "first", models.VerificationLink, now.Add(time.Hour)))
	require.NoError(t, repo.SetVerificationToken(ctx, acct.ID, "second", models.VerificationLink, now.Add(time.Hour)))

	_, err := repo.ConsumeVerificationLink(ctx, "first", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	got, err := repo.ConsumeVerificationLink(ctx, "second", now)
	require.NoError(t, err)
	assert.True(t, got.Verified)
}

func TestClearVerificationToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	acct := testutil.NewTestAccount(t, repo, "jane.doe@gmail.com")

	require.NoError(t, repo.SetVerificationToken(ctx, acct.ID, "hash", models.VerificationLink, time.Now().Add(time.Hour)))
	require.NoError(t, repo.ClearVerificationToken(ctx, acct.ID))

	got, err := repo.GetAccountByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.False(t, got.HasPendingVerification())
	assert.Nil(t, got.VerificationMethod)
	assert.Nil(t, got.VerificationExpiresAt)
}

func TestMarkVerified(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	acct := testutil.NewTestAccount(t, repo, "jane.doe@gmail.com")
	require.NoError(t, repo.SetVerificationToken(ctx, acct.ID, "hash", models.VerificationLink, time.Now().Add(time.Hour)))

	require.NoError(t, repo.MarkVerified(ctx, acct.ID))

	got, err := repo.GetAccountByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Verified)
	assert.False(t, got.HasPendingVerification())
}

func TestConsumeVerificationLink_ExpiryBoundary(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	acct := testutil.NewTestAccount(t, repo, "jane.doe@gmail.com")
	expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SetVerificationToken(ctx, acct.ID, "hash", models.VerificationLink, expires))

	_, err := repo.ConsumeVerificationLink(ctx, "hash", expires.Add(time.Millisecond))
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.ConsumeVerificationLink(ctx, "hash", expires)
	require.ErrorIs(t, err, repository.ErrNotFound)

	got, err := repo.ConsumeVerificationLink(ctx, "hash", expires.Add(-time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, acct.ID, got.ID)
	assert.True(t, got.Verified)
	assert.Nil(t, got.VerificationToken)
}

func TestConsumeVerificationLink_SingleUse(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	acct := testutil.NewTestAccount(t, repo, "jane.doe@gmail.com")
	now := time.Now()
	require.NoError(t, repo.SetVerificationToken(ctx, acct.ID, "hash", models.VerificationLink, now.Add(time.Hour)))

	_, err := repo.ConsumeVerificationLink(ctx, "hash", now)
	require.NoError(t, err)

	_, err = repo.ConsumeVerificationLink(ctx, "hash", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsumeVerificationLink_RejectsCodeSlot(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	acct := testutil.NewTestAccount(t, repo, "jane.doe@gmail.com")
	now := time.Now()
	require.NoError(t, repo.SetVerificationToken(ctx, acct.ID, "123456", models.VerificationCode, now.Add(time.Hour)))

	_, err := repo.ConsumeVerificationLink(ctx, "123456", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsumeVerificationCode(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	acct := testutil.NewTestAccount(t, repo, "jane.doe@gmail.com")
	other := testutil.NewTestAccount(t, repo, "john.smith@gmail.com")
	now := time.Now()
	require.NoError(t, repo.SetVerificationToken(ctx, acct.ID, "123456", models.VerificationCode, now.Add(time.Hour)))

	_, err := repo.ConsumeVerificationCode(ctx, other.Email, "123456", now)
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.ConsumeVerificationCode(ctx, acct.Email, "654321", now)
	require.ErrorIs(t, err, repository.ErrNotFound)

	got, err := repo.ConsumeVerificationCode(ctx, acct.Email, "123456", now)
	require.NoError(t, err)
	assert.True(t, got.Verified)
}

func TestConsumeResetToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	acct := testutil.NewTestAccount(t, repo, "jane.doe@gmail.com")
	now := time.Now()
	require.NoError(t, repo.SetResetToken(ctx, acct.ID, "reset-hash", now.Add(10*time.Minute)))

	got, err := repo.ConsumeResetToken(ctx, "reset-hash", "new-password-hash", now)
	require.NoError(t, err)
	assert.Equal(t, "new-password-hash", got.PasswordHash)
	assert.False(t, got.HasPendingReset())

	_, err = repo.ConsumeResetToken(ctx, "reset-hash", "other-hash", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsumeResetToken_Expired(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	acct := testutil.NewTestAccount(t, repo, "jane.doe@gmail.com")
	expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetResetToken(ctx, acct.ID, "reset-hash", expires))

	_, err := repo.ConsumeResetToken(ctx, "reset-hash", "new", expires.Add(time.Millisecond))
	assert.ErrorIs(t, err, repository.ErrNotFound)

	got, err := repo.GetAccountByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, testutil.PlaceholderHash, got.PasswordHash)
}

func TestGetAccountByResetToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	acct := testutil.NewTestAccount(t, repo, "jane.doe@gmail.com")
	expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetResetToken(ctx, acct.ID, "reset-hash", expires))

	got, err := repo.GetAccountByResetToken(ctx, "reset-hash", expires.Add(-time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, acct.ID, got.ID)
	assert.True(t, got.HasPendingReset())

	_, err = repo.GetAccountByResetToken(ctx, "reset-hash", expires)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetAccountByResetToken(ctx, "other-hash", expires.Add(-time.Hour))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestClearResetToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	acct := testutil.NewTestAccount(t, repo, "jane.doe@gmail.com")
	require.NoError(t, repo.SetResetToken(ctx, acct.ID, "reset-hash", time.Now().Add(time.Hour)))

	require.NoError(t, repo.ClearResetToken(ctx, acct.ID))

	_, err := repo.ConsumeResetToken(ctx, "reset-hash", "new", time.Now())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsumeResetToken_ConcurrentSingleWinner(t *testing.T) {
	_, repo := testutil.NewFileTestDB(t)
	ctx := context.Background()
	acct := testutil.NewTestAccount(t, repo, "jane.doe@gmail.com")
	now := time.Now()
	require.NoError(t, repo.SetResetToken(ctx, acct.ID, "reset-hash", now.Add(time.Hour)))

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ConsumeResetToken(ctx, "reset-hash", "new-hash", now); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
