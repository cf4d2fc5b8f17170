// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"bytes"
	"context"
	"testing"

	"codeberg.org/jobsecure/jobsecure/internal/database"
	"codeberg.org/jobsecure/jobsecure/internal/repository"
	"codeberg.org/jobsecure/jobsecure/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &out
	err := cmd.Run(context.Background(), append([]string{"jobsecure"}, args...))
	return out.String(), err
}

func TestMigrateVersion(t *testing.T) {
	dsn := t.TempDir() + "/app.db"

	out, err := run(t, "--database-dsn", dsn, "migrate", "version")

	require.NoError(t, err)
	assert.Contains(t, out, "schema version 1")
}

func TestMigrateReset(t *testing.T) {
	dsn := t.TempDir() + "/app.db"

	out, err := run(t, "--database-dsn", dsn, "migrate", "reset")

	require.NoError(t, err)
	assert.Contains(t, out, "schema version 0")
}

func TestAccountsResetLink(t *testing.T) {
	dsn := t.TempDir() + "/app.db"
	db, err := database.Open(dsn)
	require.NoError(t, err)
	testutil.NewTestAccount(t, repository.New(db), "jane.doe@gmail.com")
	require.NoError(t, db.Close())

	out, err := run(t,
		"--database-dsn", dsn,
		"--mode", "development",
		"--frontend-url", "https://app.jobsecure.example",
		"accounts", "reset-link", "--email", "Jane.Doe@gmail.com",
	)

	require.NoError(t, err)
	assert.Contains(t, out, "https://app.jobsecure.example/reset-password/")
	assert.Contains(t, out, "expires")

	db, err = database.Open(dsn)
	require.NoError(t, err)
	defer db.Close()
	acct, err := repository.New(db).GetAccountByEmail(context.Background(), "jane.doe@gmail.com")
	require.NoError(t, err)
	assert.True(t, acct.HasPendingReset())
}

func TestAccountsResetLink_UnknownAccount(t *testing.T) {
	dsn := t.TempDir() + "/app.db"

	_, err := run(t,
		"--database-dsn", dsn,
		"--mode", "development",
		"accounts", "reset-link", "--email", "nobody@gmail.com",
	)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "issuing reset link")
}
