// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package emailcheck_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"codeberg.org/jobsecure/jobsecure/internal/services/emailcheck"
	"github.com/stretchr/testify/assert"
)

type fakeResolver struct {
	records map[string][]*net.MX
	err     error
	delay   time.Duration
	calls   int
}

func (f *fakeResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.records[name], nil
}

func mxFor(domains ...string) map[string][]*net.MX {
	records := make(map[string][]*net.MX)
	for _, d := range domains {
		records[d] = []*net.MX{{Host: "mx." + d + ".", Pref: 10}}
	}
	return records
}

func TestDomainVerifier_AcceptsWithMXRecords(t *testing.T) {
	resolver := &fakeResolver{records: mxFor("gmail.com", "protonmail.com")}
	v := emailcheck.NewDomainVerifier(resolver, time.Second)

	assert.True(t, v.Verify(context.Background(), "validuser1@protonmail.com"))
	assert.True(t, v.Verify(context.Background(), "jane.doe@gmail.com"))
}

func TestDomainVerifier_RejectsWithoutMXRecords(t *testing.T) {
	resolver := &fakeResolver{records: mxFor("gmail.com")}
	v := emailcheck.NewDomainVerifier(resolver, time.Second)

	assert.False(t, v.Verify(context.Background(), "validuser1@protonmail.com"))
}

func TestDomainVerifier_RejectsInvalidFormatWithoutLookup(t *testing.T) {
	resolver := &fakeResolver{records: mxFor("gmail.com")}
	v := emailcheck.NewDomainVerifier(resolver, time.Second)

	assert.False(t, v.Verify(context.Background(), "ab@gmail.com"))
	assert.False(t, v.Verify(context.Background(), "jane.doe@yahoo.com"))
	assert.Zero(t, resolver.calls)
}

func TestDomainVerifier_FailsClosedOnError(t *testing.T) {
	resolver := &fakeResolver{err: &net.DNSError{Err: "server misbehaving", Name: "gmail.com", IsTemporary: true}}
	v := emailcheck.NewDomainVerifier(resolver, time.Second)

	assert.False(t, v.Verify(context.Background(), "jane.doe@gmail.com"))
}

func TestDomainVerifier_FailsClosedOnTimeout(t *testing.T) {
	resolver := &fakeResolver{records: mxFor("gmail.com"), delay: time.Second}
	v := emailcheck.NewDomainVerifier(resolver, 20*time.Millisecond)

	start := time.Now()
	ok := v.Verify(context.Background(), "jane.doe@gmail.com")

	assert.False(t, ok)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDomainVerifier_FailsClosedOnCancelledContext(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("unused")}
	v := emailcheck.NewDomainVerifier(resolver, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, v.Verify(ctx, "jane.doe@gmail.com"))
}

func TestNewDomainVerifier_Defaults(t *testing.T) {
	assert.NotNil(t, emailcheck.NewDomainVerifier(nil, 0))
}
