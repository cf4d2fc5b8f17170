// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/jobsecure/jobsecure/internal/models"
	"codeberg.org/jobsecure/jobsecure/internal/repository"
)

// State is a step of the registration state machine. Registration moves
// through the states in declaration order and ends in one of the three
// terminal states.
type State string

const (
	StateNew                     State = "new"
	StateFormatChecked           State = "format_checked"
	StateDomainChecked           State = "domain_checked"
	StateNotDisposable           State = "not_disposable"
	StateDeliverabilityChecked   State = "deliverability_checked"
	StateAccountCreated          State = "account_created"
	StateVerificationTokenIssued State = "verification_token_issued"
	StateDevBypassVerified       State = "dev_bypass_verified"
	StateNotificationSent        State = "notification_sent"
	StateNotificationFailed      State = "notification_failed"
)

// Terminal reports whether registration stops in s.
func (s State) Terminal() bool {
	return s == StateDevBypassVerified || s == StateNotificationSent || s == StateNotificationFailed
}

// RegisterResult is the outcome of Register. It is returned together with
// any error so callers can see how far registration got; Account is set
// once the account exists.
type RegisterResult struct {
	Account      *models.Account
	State        State
	SessionToken string
	ExpiresAt    time.Time
}

func (r *RegisterResult) advance(ctx context.Context, next State) {
	slog.DebugContext(ctx, "register_transition", "from", r.State, "to", next)
	r.State = next
}

// Register validates the address, creates the account and starts email
// verification. Address rejections are *emailcheck.RejectionError and leave
// no account behind. In development mode the account is verified at once
// and no email is sent.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*RegisterResult, error) {
	res := &RegisterResult{State: StateNew}

	params.normalize()
	if err := s.validateRegisterParams(params); err != nil {
		return res, err
	}

	checks := []struct {
		next  State
		check func() error
	}{
		{StateFormatChecked, func() error { return s.validator.CheckFormat(params.Email) }},
		{StateDomainChecked, func() error { return s.validator.CheckDomain(ctx, params.Email) }},
		{StateNotDisposable, func() error { return s.validator.CheckDisposable(params.Email) }},
		{StateDeliverabilityChecked, func() error { return s.validator.CheckDeliverability(ctx, params.Email) }},
	}
	for _, c := range checks {
		if err := c.check(); err != nil {
			slog.InfoContext(ctx, "register_rejected", "email", params.Email, "state", res.State, "error", err)
			return res, err
		}
		res.advance(ctx, c.next)
	}

	hash, err := s.passwords.Hash(params.Password)
	if err != nil {
		return res, fmt.Errorf("hashing password: %w", err)
	}

	acct := &models.Account{
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: hash,
		Kind:         params.Kind,
	}
	if err := s.accounts.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			slog.InfoContext(ctx, "register_duplicate", "email", params.Email)
			return res, ErrDuplicateAccount
		}
		return res, fmt.Errorf("creating account: %w", err)
	}
	res.Account = acct
	res.advance(ctx, StateAccountCreated)
	slog.InfoContext(ctx, "register_success", "account_id", acct.ID, "kind", acct.Kind)

	issued, err := s.tokens.IssueVerificationToken(ctx, acct)
	if err != nil {
		return res, err
	}
	res.advance(ctx, StateVerificationTokenIssued)

	if s.mode.IsDevelopment() {
		if err := s.accounts.MarkVerified(ctx, acct.ID); err != nil {
			return res, fmt.Errorf("auto-verifying account: %w", err)
		}
		acct.Verified = true
		res.advance(ctx, StateDevBypassVerified)
		slog.InfoContext(ctx, "register_auto_verified", "account_id", acct.ID, "mode", s.mode)
		return res, s.attachSession(res)
	}

	if err := s.notifier.SendVerificationLink(ctx, acct, issued.Raw, s.tokens.TTLs().Verification); err != nil {
		s.clearVerification(ctx, acct.ID)
		res.advance(ctx, StateNotificationFailed)
		return res, fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}
	res.advance(ctx, StateNotificationSent)

	return res, s.attachSession(res)
}

func (s *Service) attachSession(res *RegisterResult) error {
	tok, expiresAt, err := s.sessions.Issue(res.Account)
	if err != nil {
		return fmt.Errorf("issuing session: %w", err)
	}
	res.SessionToken = tok
	res.ExpiresAt = expiresAt
	return nil
}
