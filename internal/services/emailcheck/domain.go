// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package emailcheck

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// DefaultMXTimeout bounds a single MX lookup.
const DefaultMXTimeout = 3 * time.Second

// MXResolver looks up mail exchangers. *net.Resolver satisfies it.
type MXResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// DomainVerifier confirms that an address belongs to an allowed provider
// whose domain publishes at least one MX record.
type DomainVerifier struct {
	resolver MXResolver
	timeout  time.Duration
}

// NewDomainVerifier creates a verifier. A nil resolver uses net.DefaultResolver,
// a non-positive timeout uses DefaultMXTimeout.
func NewDomainVerifier(resolver MXResolver, timeout time.Duration) *DomainVerifier {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if timeout <= 0 {
		timeout = DefaultMXTimeout
	}
	return &DomainVerifier{resolver: resolver, timeout: timeout}
}

// Verify reports whether email is deliverable at the DNS level. Lookup
// errors and timeouts are rejections.
func (v *DomainVerifier) Verify(ctx context.Context, email string) bool {
	if !IsValidFormat(email) {
		return false
	}

	_, domain := SplitAddress(email)
	if !IsAllowedDomain(domain) {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	records, err := v.resolver.LookupMX(ctx, domain)
	if err != nil {
		slog.WarnContext(ctx, "mx_lookup_failed", "domain", domain, "error", err)
		return false
	}
	return len(records) > 0
}
