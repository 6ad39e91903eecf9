package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ChallengeOutcome labels what happened to a two-factor challenge.
type ChallengeOutcome string

const (
	ChallengeIssued    ChallengeOutcome = "issued"
	ChallengeVerified  ChallengeOutcome = "verified"
	ChallengeMismatch  ChallengeOutcome = "mismatch"
	ChallengeExhausted ChallengeOutcome = "exhausted"
	ChallengeExpired   ChallengeOutcome = "expired"
	ChallengeMissing   ChallengeOutcome = "missing"
)

// CacheLookup labels the result of a revocation denylist cache lookup.
type CacheLookup string

const (
	CacheHit   CacheLookup = "hit"
	CacheMiss  CacheLookup = "miss"
	CacheError CacheLookup = "error"
)

// BusinessMetrics records identity operations and credential lifecycle events.
type BusinessMetrics interface {
	// RecordOperation counts one use case call, labelled by domain, operation and status.
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration observes the latency of one use case call in seconds.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)

	// RecordChallenge counts a two-factor challenge event.
	RecordChallenge(ctx context.Context, outcome ChallengeOutcome)

	// RecordRevocationLookup counts a denylist cache lookup.
	RecordRevocationLookup(ctx context.Context, result CacheLookup)
}

type businessMetrics struct {
	operations  metric.Int64Counter
	durations   metric.Float64Histogram
	challenges  metric.Int64Counter
	cacheLookup metric.Int64Counter
}

// NewBusinessMetrics creates the identity instruments on meterProvider.
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)
	name := func(suffix string) string { return fmt.Sprintf("%s_%s", namespace, suffix) }

	var (
		b   businessMetrics
		err error
	)

	b.operations, err = meter.Int64Counter(name("operations_total"),
		metric.WithDescription("Identity use case calls"),
		metric.WithUnit("{operation}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	b.durations, err = meter.Float64Histogram(name("operation_duration_seconds"),
		metric.WithDescription("Identity use case latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	b.challenges, err = meter.Int64Counter(name("two_factor_challenges_total"),
		metric.WithDescription("Two-factor challenges by outcome"),
		metric.WithUnit("{challenge}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create challenge counter: %w", err)
	}

	b.cacheLookup, err = meter.Int64Counter(name("revocation_cache_lookups_total"),
		metric.WithDescription("Access token denylist cache lookups by result"),
		metric.WithUnit("{lookup}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create revocation cache counter: %w", err)
	}

	return &b, nil
}

func operationAttrs(domain, operation, status string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
}

func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.operations.Add(ctx, 1, operationAttrs(domain, operation, status))
}

func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.durations.Record(ctx, duration.Seconds(), operationAttrs(domain, operation, status))
}

func (b *businessMetrics) RecordChallenge(ctx context.Context, outcome ChallengeOutcome) {
	b.challenges.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
}

func (b *businessMetrics) RecordRevocationLookup(ctx context.Context, result CacheLookup) {
	b.cacheLookup.Add(ctx, 1, metric.WithAttributes(attribute.String("result", string(result))))
}

// NoOpBusinessMetrics discards every measurement. It is used when metrics are disabled.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics returns a BusinessMetrics that records nothing.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return NoOpBusinessMetrics{}
}

func (NoOpBusinessMetrics) RecordOperation(context.Context, string, string, string) {}

func (NoOpBusinessMetrics) RecordDuration(context.Context, string, string, time.Duration, string) {}

func (NoOpBusinessMetrics) RecordChallenge(context.Context, ChallengeOutcome) {}

func (NoOpBusinessMetrics) RecordRevocationLookup(context.Context, CacheLookup) {}
