// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package emailcheck implements the anti-abuse checks an email address must
// pass before an account is created for it.
package emailcheck

import (
	"errors"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// AllowedDomains is the fixed set of mail providers accepted at registration.
var AllowedDomains = []string{"gmail.com", "protonmail.com"}

// gmailDomain has a stricter local part minimum than the other provider.
const gmailDomain = "gmail.com"

// Format rejection reasons, in the order they are checked.
var (
	ErrMalformed          = errors.New("email is malformed")
	ErrGrammar            = errors.New("email is not a well-formed address at an allowed provider")
	ErrPlaceholderLocal   = errors.New("local part is a placeholder word")
	ErrLocalTooShort      = errors.New("local part is too short")
	ErrNumericLocal       = errors.New("local part is purely numeric")
	ErrTrailingDigits     = errors.New("local part is a name followed by many digits")
	ErrGmailLocalTooShort = errors.New("gmail local part is shorter than 6 characters")
	ErrRepeatedCharacters = errors.New("local part repeats a character 5 or more times")
)

var (
	basicPattern       = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	strictPattern      = regexp.MustCompile(`^(([^<>()\[\]\\.,;:\s@"]+(\.[^<>()\[\]\\.,;:\s@"]+)*)|(".+"))@(gmail\.com|protonmail\.com)$`)
	placeholderPattern = regexp.MustCompile(`(?i)^(admin|info|support|contact|test|fake|noreply)@`)
	numericPattern     = regexp.MustCompile(`^[0-9]+@`)
	trailingDigits     = regexp.MustCompile(`(?i)^[a-z]+[0-9]{4,}@`)
)

// ValidateFormat runs the syntactic and heuristic checks and returns the
// first one that fails. The checks are heuristics and reject some real
// addresses; that is accepted policy.
func ValidateFormat(email string) error {
	if !basicPattern.MatchString(email) {
		return ErrMalformed
	}
	if !strictPattern.MatchString(email) {
		return ErrGrammar
	}
	if placeholderPattern.MatchString(email) {
		return ErrPlaceholderLocal
	}

	local, domain := SplitAddress(email)
	if len([]rune(local)) <= 2 {
		return ErrLocalTooShort
	}
	if numericPattern.MatchString(email) {
		return ErrNumericLocal
	}
	if trailingDigits.MatchString(email) {
		return ErrTrailingDigits
	}
	if domain == gmailDomain && len([]rune(local)) < 6 {
		return ErrGmailLocalTooShort
	}
	if hasRun(local, 5) {
		return ErrRepeatedCharacters
	}
	return nil
}

// IsValidFormat reports whether email passes ValidateFormat.
func IsValidFormat(email string) bool {
	return ValidateFormat(email) == nil
}

// IsAllowedDomain reports whether domain is one of AllowedDomains.
func IsAllowedDomain(domain string) bool {
	return lo.Contains(AllowedDomains, domain)
}

// SplitAddress splits at the last "@". Without one, domain is empty.
func SplitAddress(email string) (local, domain string) {
	i := strings.LastIndexByte(email, '@')
	if i < 0 {
		return email, ""
	}
	return email[:i], email[i+1:]
}

// hasRun reports whether s contains the same rune n or more times in a row.
func hasRun(s string, n int) bool {
	var prev rune
	count := 0
	for i, r := range s {
		if i > 0 && r == prev {
			count++
		} else {
			count = 1
		}
		if count >= n {
			return true
		}
		prev = r
	}
	return false
}
