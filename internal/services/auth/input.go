// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"codeberg.org/jobsecure/jobsecure/internal/models"
	"codeberg.org/jobsecure/jobsecure/internal/services/password"
)

// MaxNameLength bounds the display name.
const MaxNameLength = 50

// InputError reports a request field that failed validation. MessageID and
// Data select the translated message shown to the user.
type InputError struct {
	Field     string
	MessageID string
	Data      map[string]any
	Err       error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.MessageID)
}

func (e *InputError) Unwrap() error { return e.Err }

// RegisterParams holds the parameters for account registration.
type RegisterParams struct {
	Name     string
	Email    string
	Password string
	Kind     models.AccountKind
}

// normalize trims the name and normalizes the email in place.
func (p *RegisterParams) normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = models.NormalizeEmail(p.Email)
	p.Kind = models.AccountKind(strings.ToLower(strings.TrimSpace(string(p.Kind))))
}

func (s *Service) validateRegisterParams(p RegisterParams) error {
	switch {
	case p.Name == "":
		return &InputError{Field: "name", MessageID: "name_required"}
	case utf8.RuneCountInString(p.Name) > MaxNameLength:
		return &InputError{Field: "name", MessageID: "name_too_long", Data: map[string]any{"Max": MaxNameLength}}
	case p.Email == "":
		return &InputError{Field: "email", MessageID: "email_required"}
	case !p.Kind.Valid():
		return &InputError{Field: "userType", MessageID: "kind_invalid"}
	}
	return s.checkPassword(p.Password, p.Name, p.Email)
}

func passwordInputError(policy *password.Policy, err error) error {
	var perr *password.PolicyError
	if !errors.As(err, &perr) || len(perr.Violations) == 0 {
		return &InputError{Field: "password", MessageID: "password_required", Err: err}
	}
	return &InputError{
		Field:     "password",
		MessageID: "password_" + perr.Violations[0].Code,
		Data:      map[string]any{"Min": policy.MinLength, "Max": policy.MaxLength},
		Err:       err,
	}
}
