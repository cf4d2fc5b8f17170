// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package emailcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeberg.org/jobsecure/jobsecure/internal/config"
	"github.com/samber/lo"
)

const (
	// DefaultAbstractURL is the Abstract email validation endpoint.
	DefaultAbstractURL = "https://emailvalidation.abstractapi.com/v1/"
	// DefaultDeliverabilityTimeout bounds one API call.
	DefaultDeliverabilityTimeout = 5 * time.Second

	deliverable = "DELIVERABLE"
)

// ErrNotConfigured is returned by Check when no API key is set.
var ErrNotConfigured = errors.New("deliverability API key not configured")

// BoolFlag is the {"value": bool} wrapper the API uses for its flags.
type BoolFlag struct {
	Value *bool `json:"value"`
}

// Verdict is the subset of the API response the oracle looks at. Every field
// is optional because the API does not guarantee its response shape.
type Verdict struct {
	IsValidFormat     *BoolFlag `json:"is_valid_format"`
	Deliverability    *string   `json:"deliverability"`
	IsFreeEmail       *BoolFlag `json:"is_free_email"`
	IsDisposableEmail *BoolFlag `json:"is_disposable_email"`
	IsRoleEmail       *BoolFlag `json:"is_role_email"`
}

// Complete reports whether all five fields the oracle needs are present.
func (v *Verdict) Complete() bool {
	if v == nil || v.Deliverability == nil {
		return false
	}
	return lo.EveryBy([]*BoolFlag{v.IsValidFormat, v.IsFreeEmail, v.IsDisposableEmail, v.IsRoleEmail},
		func(f *BoolFlag) bool { return f != nil && f.Value != nil })
}

// Acceptable applies the acceptance rule to a complete verdict: valid format,
// deliverable, free provider, not disposable, not a role address.
func (v *Verdict) Acceptable() bool {
	return *v.IsValidFormat.Value &&
		*v.Deliverability == deliverable &&
		*v.IsFreeEmail.Value &&
		!*v.IsDisposableEmail.Value &&
		!*v.IsRoleEmail.Value
}

// AbstractClient calls the Abstract email validation API.
type AbstractClient struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewAbstractClient creates a client. An empty apiKey is allowed; Check then
// returns ErrNotConfigured without any network traffic.
func NewAbstractClient(apiKey, endpoint string, timeout time.Duration) *AbstractClient {
	if endpoint == "" {
		endpoint = DefaultAbstractURL
	}
	if timeout <= 0 {
		timeout = DefaultDeliverabilityTimeout
	}
	return &AbstractClient{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Check fetches the verdict for email.
func (c *AbstractClient) Check(ctx context.Context, email string) (*Verdict, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint: %w", err)
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	q.Set("email", email)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling deliverability API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deliverability API returned %s", resp.Status)
	}

	var verdict Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, fmt.Errorf("decoding deliverability response: %w", err)
	}
	return &verdict, nil
}

// Checker is implemented by AbstractClient.
type Checker interface {
	Check(ctx context.Context, email string) (*Verdict, error)
}

// DeliverabilityOracle decides whether an address is worth registering
// according to the third-party API. It fails open: any problem reaching or
// understanding the API accepts the address.
type DeliverabilityOracle struct {
	checker       Checker
	mode          config.Mode
	bypassDomains []string
}

// NewDeliverabilityOracle creates an oracle. In development mode addresses at
// bypassDomains are accepted without calling the API.
func NewDeliverabilityOracle(checker Checker, mode config.Mode, bypassDomains []string) *DeliverabilityOracle {
	return &DeliverabilityOracle{
		checker: checker,
		mode:    mode,
		bypassDomains: lo.Map(bypassDomains, func(d string, _ int) string {
			return strings.ToLower(strings.TrimSpace(d))
		}),
	}
}

// Acceptable reports whether email may be registered.
func (o *DeliverabilityOracle) Acceptable(ctx context.Context, email string) bool {
	_, domain := SplitAddress(email)
	if o.mode.IsDevelopment() && lo.Contains(o.bypassDomains, strings.ToLower(domain)) {
		slog.DebugContext(ctx, "deliverability_bypassed", "domain", domain, "mode", o.mode)
		return true
	}

	verdict, err := o.checker.Check(ctx, email)
	switch {
	case errors.Is(err, ErrNotConfigured):
		slog.WarnContext(ctx, "deliverability_check_skipped", "reason", "not_configured")
		return true
	case err != nil:
		slog.ErrorContext(ctx, "deliverability_check_failed", "error", err)
		return true
	case !verdict.Complete():
		slog.WarnContext(ctx, "deliverability_check_skipped", "reason", "unexpected_response")
		return true
	}

	return verdict.Acceptable()
}
