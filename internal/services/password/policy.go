// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package password

import (
	"bufio"
	_ "embed"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

//go:embed common_passwords.txt
var commonPasswordsList string

var commonPasswords = loadCommonPasswords(commonPasswordsList)

func loadCommonPasswords(list string) map[string]struct{} {
	set := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(list))
	for scanner.Scan() {
		if p := strings.ToLower(strings.TrimSpace(scanner.Text())); p != "" && !strings.HasPrefix(p, "#") {
			set[p] = struct{}{}
		}
	}
	return set
}

// Violation codes. Handlers translate them with the "password_" prefix.
const (
	CodeTooShort        = "too_short"
	CodeTooLong         = "too_long"
	CodeEntirelyNumeric = "entirely_numeric"
	CodeCommon          = "common"
	CodeTooSimilar      = "too_similar"
)

// Violation is a single policy failure.
type Violation struct {
	Code    string
	Message string
}

// PolicyError lists every rule a password broke.
type PolicyError struct {
	Violations []Violation
}

func (e *PolicyError) Error() string {
	if len(e.Violations) == 0 {
		return "password does not meet requirements"
	}
	return e.Violations[0].Message
}

// Codes returns the violation codes in order.
func (e *PolicyError) Codes() []string {
	codes := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		codes[i] = v.Code
	}
	return codes
}

// Policy describes what a password must satisfy.
type Policy struct {
	MinLength            int
	MaxLength            int
	CheckCommonPasswords bool
	CheckUserSimilarity  bool
}

// DefaultPolicy requires at least 8 characters.
func DefaultPolicy() *Policy {
	return &Policy{
		MinLength:            8,
		MaxLength:            128,
		CheckCommonPasswords: true,
		CheckUserSimilarity:  true,
	}
}

// Check returns a *PolicyError if plain breaks any rule. userAttributes are
// values like name and email the password must not resemble.
func (p *Policy) Check(plain string, userAttributes ...string) error {
	var violations []Violation
	length := utf8.RuneCountInString(plain)

	if length < p.MinLength {
		violations = append(violations, Violation{
			Code:    CodeTooShort,
			Message: fmt.Sprintf("Password must be at least %d characters long.", p.MinLength),
		})
	}
	if p.MaxLength > 0 && length > p.MaxLength {
		violations = append(violations, Violation{
			Code:    CodeTooLong,
			Message: fmt.Sprintf("Password must be at most %d characters long.", p.MaxLength),
		})
	}
	if isEntirelyNumeric(plain) {
		violations = append(violations, Violation{
			Code:    CodeEntirelyNumeric,
			Message: "Password cannot be entirely numeric.",
		})
	}
	if p.CheckCommonPasswords && isCommon(plain) {
		violations = append(violations, Violation{
			Code:    CodeCommon,
			Message: "This password is too common.",
		})
	}
	if p.CheckUserSimilarity && isSimilarToAny(plain, userAttributes) {
		violations = append(violations, Violation{
			Code:    CodeTooSimilar,
			Message: "Password is too similar to your personal information.",
		})
	}

	if len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}
	return nil
}

func isEntirelyNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func isCommon(s string) bool {
	_, ok := commonPasswords[strings.ToLower(s)]
	return ok
}

func isSimilarToAny(plain string, attributes []string) bool {
	pw := strings.ToLower(plain)
	for _, attr := range attributes {
		if attr == "" {
			continue
		}
		a := strings.ToLower(attr)
		// compare against the mailbox name as well as the whole address
		if local, _, ok := strings.Cut(a, "@"); ok && len(local) >= 3 && strings.Contains(pw, local) {
			return true
		}
		if strings.Contains(pw, a) || strings.Contains(a, pw) || similarity(pw, a) > 0.7 {
			return true
		}
	}
	return false
}

// similarity is the longest common subsequence relative to the longer string.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return float64(lcs(a, b)) / float64(max(len(a), len(b)))
}

func lcs(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
