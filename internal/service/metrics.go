package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Login methods and outcomes recorded by Metrics
const (
	MethodPassword    = "password"
	MethodGoogle      = "google"
	MethodSupabase    = "supabase"
	MethodInvite      = "invite"
	MethodVerifyEmail = "verify_email"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds authentication counters. A nil *Metrics records nothing.
type Metrics struct {
	logins    metric.Int64Counter
	refreshes metric.Int64Counter
}

// NewMetrics registers the counters on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	logins, err := meter.Int64Counter("auth_logins_total",
		metric.WithDescription("Sign-in attempts by method and outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create logins counter: %w", err)
	}

	refreshes, err := meter.Int64Counter("ringcentral_refreshes_total",
		metric.WithDescription("RingCentral refresh-token grants by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create refreshes counter: %w", err)
	}

	return &Metrics{logins: logins, refreshes: refreshes}, nil
}

func (m *Metrics) RecordLogin(ctx context.Context, method string, err error) {
	if m == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome(err)),
	))
}

func (m *Metrics) RecordRefresh(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
