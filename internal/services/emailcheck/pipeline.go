// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package emailcheck

import (
	"context"
	"errors"
	"fmt"
)

// Stage names the check that rejected an address.
type Stage string

const (
	StageFormat         Stage = "format"
	StageDomain         Stage = "domain"
	StageDisposable     Stage = "disposable"
	StageDeliverability Stage = "deliverability"
)

var (
	errDomainUnverified = errors.New("domain has no usable mail exchanger")
	errDomainNotAllowed = errors.New("domain is not an allowed provider")
	errDisposable       = errors.New("domain is a temporary-mail provider")
	errUndeliverable    = errors.New("address judged undeliverable")
)

// RejectionError reports which stage turned an address down.
type RejectionError struct {
	Stage  Stage
	Reason error
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("email rejected at %s check: %v", e.Stage, e.Reason)
}

func (e *RejectionError) Unwrap() error { return e.Reason }

// MessageID is the translation key of the user-facing message for the stage.
func (e *RejectionError) MessageID() string {
	switch e.Stage {
	case StageFormat:
		return "email_invalid_format"
	case StageDomain:
		if errors.Is(e.Reason, errDomainNotAllowed) {
			return "email_domain_not_allowed"
		}
		return "email_domain_unverified"
	case StageDisposable:
		return "email_disposable"
	default:
		return "email_undeliverable"
	}
}

// DomainChecker is implemented by DomainVerifier.
type DomainChecker interface {
	Verify(ctx context.Context, email string) bool
}

// Oracle is implemented by DeliverabilityOracle.
type Oracle interface {
	Acceptable(ctx context.Context, email string) bool
}

// Validator runs the registration checks in their fixed order.
type Validator struct {
	domains DomainChecker
	oracle  Oracle
}

// NewValidator creates a Validator.
func NewValidator(domains DomainChecker, oracle Oracle) *Validator {
	return &Validator{domains: domains, oracle: oracle}
}

// CheckFormat is the format stage.
func (v *Validator) CheckFormat(email string) error {
	if err := ValidateFormat(email); err != nil {
		return &RejectionError{Stage: StageFormat, Reason: err}
	}
	return nil
}

// CheckDomain is the allow-list and MX stage.
func (v *Validator) CheckDomain(ctx context.Context, email string) error {
	if _, domain := SplitAddress(email); !IsAllowedDomain(domain) {
		return &RejectionError{Stage: StageDomain, Reason: errDomainNotAllowed}
	}
	if !v.domains.Verify(ctx, email) {
		return &RejectionError{Stage: StageDomain, Reason: errDomainUnverified}
	}
	return nil
}

// CheckDisposable is the temporary-mail stage.
func (v *Validator) CheckDisposable(email string) error {
	if IsDisposable(email) {
		return &RejectionError{Stage: StageDisposable, Reason: errDisposable}
	}
	return nil
}

// CheckDeliverability is the third-party API stage.
func (v *Validator) CheckDeliverability(ctx context.Context, email string) error {
	if !v.oracle.Acceptable(ctx, email) {
		return &RejectionError{Stage: StageDeliverability, Reason: errUndeliverable}
	}
	return nil
}

// Validate runs every stage and stops at the first rejection.
func (v *Validator) Validate(ctx context.Context, email string) error {
	if err := v.CheckFormat(email); err != nil {
		return err
	}
	if err := v.CheckDomain(ctx, email); err != nil {
		return err
	}
	if err := v.CheckDisposable(email); err != nil {
		return err
	}
	return v.CheckDeliverability(ctx, email)
}
