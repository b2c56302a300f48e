package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "billflow/recurring"

// RecurringMetrics records the outcome of recurring passes. Without an
// installed meter provider the instruments are no-ops.
type RecurringMetrics struct {
	generated       metric.Int64Counter
	cloneFailures   metric.Int64Counter
	dispatchFailure metric.Int64Counter
	passDuration    metric.Float64Histogram
}

// NewRecurringMetrics registers the instruments on meter, or on the global
// meter provider when meter is nil.
func NewRecurringMetrics(meter metric.Meter) (*RecurringMetrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	generated, err := meter.Int64Counter(
		"billflow_recurring_invoices_generated_total",
		metric.WithDescription("Invoices generated from recurring templates"),
		metric.WithUnit("{invoice}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create generated counter: %w", err)
	}
	cloneFailures, err := meter.Int64Counter(
		"billflow_recurring_clone_failures_total",
		metric.WithDescription("Recurring templates whose clone transaction failed"),
		metric.WithUnit("{invoice}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create clone failure counter: %w", err)
	}
	dispatchFailures, err := meter.Int64Counter(
		"billflow_recurring_dispatch_failures_total",
		metric.WithDescription("Generated invoices that could not be rendered, archived or emailed"),
		metric.WithUnit("{invoice}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch failure counter: %w", err)
	}
	passDuration, err := meter.Float64Histogram(
		"billflow_recurring_pass_duration_seconds",
		metric.WithDescription("Duration of a recurring pass"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pass duration histogram: %w", err)
	}

	return &RecurringMetrics{
		generated:       generated,
		cloneFailures:   cloneFailures,
		dispatchFailure: dispatchFailures,
		passDuration:    passDuration,
	}, nil
}

func (m *RecurringMetrics) InvoiceGenerated(ctx context.Context, frequency string) {
	if m == nil {
		return
	}
	m.generated.Add(ctx, 1, metric.WithAttributes(attribute.String("frequency", frequency)))
}

func (m *RecurringMetrics) CloneFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.cloneFailures.Add(ctx, 1)
}

// DispatchFailed counts a dispatch error, tagged with the failing stage
func (m *RecurringMetrics) DispatchFailed(ctx context.Context, err error) {
	if m == nil {
		return
	}
	stage := "other"
	switch {
	case errors.Is(err, ErrRenderFailed):
		stage = "render"
	case errors.Is(err, ErrArchiveFailed):
		stage = "archive"
	case errors.Is(err, ErrSendFailed):
		stage = "email"
	}
	m.dispatchFailure.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

func (m *RecurringMetrics) PassFinished(ctx context.Context, elapsed time.Duration, status string) {
	if m == nil {
		return
	}
	m.passDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}
