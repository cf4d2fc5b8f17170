// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package emailcheck_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/jobsecure/jobsecure/internal/config"
	"codeberg.org/jobsecure/jobsecure/internal/services/emailcheck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodVerdict = `{
	"email": "jane.doe@protonmail.com",
	"deliverability": "DELIVERABLE",
	"is_valid_format": {"value": true, "text": "TRUE"},
	"is_free_email": {"value": true, "text": "TRUE"},
	"is_disposable_email": {"value": false, "text": "FALSE"},
	"is_role_email": {"value": false, "text": "FALSE"}
}`

func abstractServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.NotEmpty(t, r.URL.Query().Get("email"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestAbstractClient_Check(t *testing.T) {
	srv, calls := abstractServer(t, http.StatusOK, goodVerdict)
	client := emailcheck.NewAbstractClient("test-key", srv.URL, time.Second)

	verdict, err := client.Check(context.Background(), "jane.doe@protonmail.com")

	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, verdict.Complete())
	assert.True(t, verdict.Acceptable())
}

func TestAbstractClient_NotConfigured(t *testing.T) {
	client := emailcheck.NewAbstractClient("", "http://127.0.0.1:1", time.Second)

	_, err := client.Check(context.Background(), "jane.doe@protonmail.com")

	assert.ErrorIs(t, err, emailcheck.ErrNotConfigured)
}

func TestAbstractClient_HTTPError(t *testing.T) {
	srv, _ := abstractServer(t, http.StatusTooManyRequests, `{"error":"quota"}`)
	client := emailcheck.NewAbstractClient("test-key", srv.URL, time.Second)

	_, err := client.Check(context.Background(), "jane.doe@protonmail.com")

	require.Error(t, err)
	assert.NotErrorIs(t, err, emailcheck.ErrNotConfigured)
}

func TestVerdict_Rules(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"all good", goodVerdict, true},
		{"undeliverable", `{"deliverability":"UNDELIVERABLE","is_valid_format":{"value":true},"is_free_email":{"value":true},"is_disposable_email":{"value":false},"is_role_email":{"value":false}}`, false},
		{"invalid format", `{"deliverability":"DELIVERABLE","is_valid_format":{"value":false},"is_free_email":{"value":true},"is_disposable_email":{"value":false},"is_role_email":{"value":false}}`, false},
		{"not free", `{"deliverability":"DELIVERABLE","is_valid_format":{"value":true},"is_free_email":{"value":false},"is_disposable_email":{"value":false},"is_role_email":{"value":false}}`, false},
		{"disposable", `{"deliverability":"DELIVERABLE","is_valid_format":{"value":true},"is_free_email":{"value":true},"is_disposable_email":{"value":true},"is_role_email":{"value":false}}`, false},
		{"role", `{"deliverability":"DELIVERABLE","is_valid_format":{"value":true},"is_free_email":{"value":true},"is_disposable_email":{"value":false},"is_role_email":{"value":true}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := abstractServer(t, http.StatusOK, tt.body)
			oracle := emailcheck.NewDeliverabilityOracle(
				emailcheck.NewAbstractClient("test-key", srv.URL, time.Second),
				config.ModeProduction, nil)

			assert.Equal(t, tt.want, oracle.Acceptable(context.Background(), "jane.doe@protonmail.com"))
		})
	}
}

type stubChecker struct {
	verdict *emailcheck.Verdict
	err     error
	calls   int
}

func (s *stubChecker) Check(context.Context, string) (*emailcheck.Verdict, error) {
	s.calls++
	return s.verdict, s.err
}

func TestDeliverabilityOracle_FailsOpenWhenNotConfigured(t *testing.T) {
	oracle := emailcheck.NewDeliverabilityOracle(emailcheck.NewAbstractClient("", "", 0), config.ModeProduction, nil)

	assert.True(t, oracle.Acceptable(context.Background(), "jane.doe@protonmail.com"))
}

func TestDeliverabilityOracle_FailsOpenOnError(t *testing.T) {
	checker := &stubChecker{err: errors.New("connection refused")}
	oracle := emailcheck.NewDeliverabilityOracle(checker, config.ModeProduction, nil)

	assert.True(t, oracle.Acceptable(context.Background(), "jane.doe@protonmail.com"))
	assert.Equal(t, 1, checker.calls)
}

func TestDeliverabilityOracle_FailsOpenOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	oracle := emailcheck.NewDeliverabilityOracle(
		emailcheck.NewAbstractClient("test-key", srv.URL, 20*time.Millisecond),
		config.ModeProduction, nil)

	assert.True(t, oracle.Acceptable(context.Background(), "jane.doe@protonmail.com"))
}

func TestDeliverabilityOracle_FailsOpenOnMissingFields(t *testing.T) {
	srv, _ := abstractServer(t, http.StatusOK, `{"deliverability":"UNDELIVERABLE","is_valid_format":{"value":false}}`)
	oracle := emailcheck.NewDeliverabilityOracle(
		emailcheck.NewAbstractClient("test-key", srv.URL, time.Second),
		config.ModeProduction, nil)

	assert.True(t, oracle.Acceptable(context.Background(), "jane.doe@protonmail.com"))
}

func TestDeliverabilityOracle_FailsOpenOnGarbage(t *testing.T) {
	srv, _ := abstractServer(t, http.StatusOK, `<html>maintenance</html>`)
	oracle := emailcheck.NewDeliverabilityOracle(
		emailcheck.NewAbstractClient("test-key", srv.URL, time.Second),
		config.ModeProduction, nil)

	assert.True(t, oracle.Acceptable(context.Background(), "jane.doe@protonmail.com"))
}

func TestDeliverabilityOracle_DevelopmentBypass(t *testing.T) {
	undeliverable := "UNDELIVERABLE"
	no := false
	checker := &stubChecker{verdict: &emailcheck.Verdict{
		Deliverability:    &undeliverable,
		IsValidFormat:     &emailcheck.BoolFlag{Value: &no},
		IsFreeEmail:       &emailcheck.BoolFlag{Value: &no},
		IsDisposableEmail: &emailcheck.BoolFlag{Value: &no},
		IsRoleEmail:       &emailcheck.BoolFlag{Value: &no},
	}}

	dev := emailcheck.NewDeliverabilityOracle(checker, config.ModeDevelopment, []string{"gmail.com"})
	assert.True(t, dev.Acceptable(context.Background(), "jane.doe@gmail.com"))
	assert.Equal(t, 0, checker.calls)

	assert.False(t, dev.Acceptable(context.Background(), "jane.doe@protonmail.com"))
	assert.Equal(t, 1, checker.calls)

	prod := emailcheck.NewDeliverabilityOracle(checker, config.ModeProduction, []string{"gmail.com"})
	assert.False(t, prod.Acceptable(context.Background(), "jane.doe@gmail.com"))
	assert.Equal(t, 2, checker.calls)
}
