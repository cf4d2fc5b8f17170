// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth implements registration, login and the password and
// verification flows on top of the account store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/jobsecure/jobsecure/internal/config"
	"codeberg.org/jobsecure/jobsecure/internal/models"
	"codeberg.org/jobsecure/jobsecure/internal/repository"
	"codeberg.org/jobsecure/jobsecure/internal/services/password"
	"codeberg.org/jobsecure/jobsecure/internal/services/token"
)

var (
	ErrDuplicateAccount   = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotFound    = errors.New("account not found")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrNotificationFailed = errors.New("notification could not be delivered")
)

// AccountStore persists accounts. *repository.Repository implements it.
type AccountStore interface {
	CreateAccount(ctx context.Context, acct *models.Account) error
	GetAccountByID(ctx context.Context, id int64) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	MarkVerified(ctx context.Context, id int64) error
}

// EmailValidator runs the registration address checks one stage at a time.
// *emailcheck.Validator implements it.
type EmailValidator interface {
	CheckFormat(email string) error
	CheckDomain(ctx context.Context, email string) error
	CheckDisposable(email string) error
	CheckDeliverability(ctx context.Context, email string) error
}

// Tokens issues and consumes single-use tokens. *token.Issuer implements it.
type Tokens interface {
	TTLs() token.TTLs
	IssueVerificationToken(ctx context.Context, acct *models.Account) (*token.Issued, error)
	IssueVerificationCode(ctx context.Context, acct *models.Account) (*token.Issued, error)
	ClearVerification(ctx context.Context, accountID int64) error
	ConsumeVerificationToken(ctx context.Context, raw string) (*models.Account, error)
	ConsumeVerificationCode(ctx context.Context, email, code string) (*models.Account, error)
	IssueResetToken(ctx context.Context, acct *models.Account, flow token.ResetFlow) (*token.Issued, error)
	ClearReset(ctx context.Context, accountID int64) error
	LookupResetToken(ctx context.Context, raw string) (*models.Account, error)
	ConsumeResetToken(ctx context.Context, raw, newPassword string) (*models.Account, error)
}

// Notifier delivers account emails. *email.Service implements it.
type Notifier interface {
	SendVerificationLink(ctx context.Context, acct *models.Account, raw string, ttl time.Duration) error
	SendVerificationCode(ctx context.Context, acct *models.Account, code string, ttl time.Duration) error
	SendPasswordReset(ctx context.Context, acct *models.Account, raw string, ttl time.Duration) error
}

// SessionIssuer signs session tokens. *session.Manager implements it.
type SessionIssuer interface {
	Issue(acct *models.Account) (string, time.Time, error)
}

// PasswordHasher hashes and verifies passwords. *password.Hasher implements it.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(encoded, plain string) (bool, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Accounts  AccountStore
	Validator EmailValidator
	Tokens    Tokens
	Notifier  Notifier
	Sessions  SessionIssuer
	Passwords PasswordHasher
	Policy    *password.Policy
	Mode      config.Mode
}

type Service struct {
	accounts  AccountStore
	validator EmailValidator
	tokens    Tokens
	notifier  Notifier
	sessions  SessionIssuer
	passwords PasswordHasher
	policy    *password.Policy
	mode      config.Mode
	dummyHash string
}

// NewService creates the auth service.
func NewService(deps Deps) (*Service, error) {
	policy := deps.Policy
	if policy == nil {
		policy = password.DefaultPolicy()
	}

	// Verified against on unknown emails so login timing does not reveal
	// whether an account exists.
	dummyHash, err := deps.Passwords.Hash("dummy-password-for-timing")
	if err != nil {
		return nil, fmt.Errorf("preparing dummy hash: %w", err)
	}

	return &Service{
		accounts:  deps.Accounts,
		validator: deps.Validator,
		tokens:    deps.Tokens,
		notifier:  deps.Notifier,
		sessions:  deps.Sessions,
		passwords: deps.Passwords,
		policy:    policy,
		mode:      deps.Mode,
		dummyHash: dummyHash,
	}, nil
}

// Mode returns the operating mode the service was built with.
func (s *Service) Mode() config.Mode {
	return s.mode
}

// IssueSessionToken signs a session token for acct.
func (s *Service) IssueSessionToken(acct *models.Account) (string, time.Time, error) {
	return s.sessions.Issue(acct)
}

// GetAccount loads an account by ID.
func (s *Service) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	acct, err := s.accounts.GetAccountByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	return acct, err
}

// Login authenticates an account by email and password.
func (s *Service) Login(ctx context.Context, email, plain string) (*models.Account, error) {
	email = models.NormalizeEmail(email)
	if email == "" || plain == "" {
		return nil, ErrInvalidCredentials
	}

	acct, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_, _ = s.passwords.Verify(s.dummyHash, plain)
			slog.WarnContext(ctx, "login_failed", "email", email, "reason", "account_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("loading account: %w", err)
	}

	ok, err := s.passwords.Verify(acct.PasswordHash, plain)
	if err != nil {
		slog.ErrorContext(ctx, "login_failed", "account_id", acct.ID, "reason", "unreadable_hash", "error", err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		slog.WarnContext(ctx, "login_failed", "account_id", acct.ID, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	slog.InfoContext(ctx, "login_success", "account_id", acct.ID)
	return acct, nil
}

// ChangePassword replaces the password of an account whose owner knows the
// current one.
func (s *Service) ChangePassword(ctx context.Context, accountID int64, current, newPassword string) error {
	acct, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}

	ok, err := s.passwords.Verify(acct.PasswordHash, current)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}

	if err := s.checkPassword(newPassword, acct.Name, acct.Email); err != nil {
		return err
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.accounts.UpdatePassword(ctx, acct.ID, hash); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	slog.InfoContext(ctx, "password_changed", "account_id", acct.ID)
	return nil
}

// ForgotPassword mails a reset link to the account with email. Unknown
// addresses are reported as ErrAccountNotFound.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	acct, err := s.accounts.GetAccountByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("loading account: %w", err)
	}

	issued, err := s.tokens.IssueResetToken(ctx, acct, token.ResetFlowRequest)
	if err != nil {
		return err
	}

	if err := s.notifier.SendPasswordReset(ctx, acct, issued.Raw, s.tokens.TTLs().ResetRequest); err != nil {
		if clearErr := s.tokens.ClearReset(ctx, acct.ID); clearErr != nil {
			slog.ErrorContext(ctx, "reset_token_clear_failed", "account_id", acct.ID, "error", clearErr)
		}
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}
	return nil
}

// ResetPassword sets a new password using a reset token.
func (s *Service) ResetPassword(ctx context.Context, raw, newPassword string) (*models.Account, error) {
	owner, err := s.tokens.LookupResetToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := s.checkPassword(newPassword, owner.Name, owner.Email); err != nil {
		return nil, err
	}

	acct, err := s.tokens.ConsumeResetToken(ctx, raw, newPassword)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "password_reset", "account_id", acct.ID)
	return acct, nil
}

// VerifyEmail verifies an account with a link token.
func (s *Service) VerifyEmail(ctx context.Context, raw string) (*models.Account, error) {
	acct, err := s.tokens.ConsumeVerificationToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "email_verified", "account_id", acct.ID, "method", models.VerificationLink)
	return acct, nil
}

// VerifyEmailCode verifies an account with a numeric code.
func (s *Service) VerifyEmailCode(ctx context.Context, email, code string) (*models.Account, error) {
	acct, err := s.tokens.ConsumeVerificationCode(ctx, models.NormalizeEmail(email), code)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "email_verified", "account_id", acct.ID, "method", models.VerificationCode)
	return acct, nil
}

// ResendVerification mails a fresh verification code to an unverified account.
func (s *Service) ResendVerification(ctx context.Context, accountID int64) error {
	acct, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if acct.Verified {
		return ErrAlreadyVerified
	}

	issued, err := s.tokens.IssueVerificationCode(ctx, acct)
	if err != nil {
		return err
	}

	if err := s.notifier.SendVerificationCode(ctx, acct, issued.Raw, s.tokens.TTLs().VerificationCode); err != nil {
		s.clearVerification(ctx, acct.ID)
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}
	return nil
}

// IssueHelperResetLink issues a short-lived reset token for an operator to
// hand to the account owner. It returns the raw token and its expiry.
func (s *Service) IssueHelperResetLink(ctx context.Context, email string) (*token.Issued, error) {
	acct, err := s.accounts.GetAccountByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("loading account: %w", err)
	}
	return s.tokens.IssueResetToken(ctx, acct, token.ResetFlowHelper)
}

func (s *Service) checkPassword(plain string, userAttributes ...string) error {
	if plain == "" {
		return &InputError{Field: "password", MessageID: "password_required"}
	}
	if err := s.policy.Check(plain, userAttributes...); err != nil {
		return passwordInputError(s.policy, err)
	}
	return nil
}

func (s *Service) clearVerification(ctx context.Context, accountID int64) {
	if err := s.tokens.ClearVerification(ctx, accountID); err != nil {
		slog.ErrorContext(ctx, "verification_token_clear_failed", "account_id", accountID, "error", err)
	}
}
