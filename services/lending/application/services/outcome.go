package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/ghuser/lendingdesk/services/lending/domain"
)

const instrumentationName = "github.com/ghuser/lendingdesk/services/lending"

// outcomes maps each domain sentinel to its metric label. Anything not listed
// is an infrastructure failure.
var outcomes = []struct {
	err   error
	label string
}{
	{domain.ErrItemNotFound, "item_not_found"},
	{domain.ErrRecordNotFound, "record_not_found"},
	{domain.ErrNotAvailable, "not_available"},
	{domain.ErrForbidden, "forbidden"},
	{domain.ErrAlreadyReturned, "already_returned"},
	{domain.ErrRecordActive, "record_active"},
	{domain.ErrAlreadyBorrowed, "already_borrowed"},
	{domain.ErrStockInvariant, "stock_invariant"},
	{domain.ErrTransient, "transient"},
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	for _, o := range outcomes {
		if errors.Is(err, o.err) {
			return o.label
		}
	}
	return "transient"
}

// classify wraps any error that is not a domain sentinel as ErrTransient.
// Context cancellation and deadline expiry land here too.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, o := range outcomes {
		if errors.Is(err, o.err) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrTransient, err)
}

type instruments struct {
	tracer         trace.Tracer
	borrowOutcomes metric.Int64Counter
	returnOutcomes metric.Int64Counter
	duration       metric.Float64Histogram
}

func newInstruments() instruments {
	meter := otel.Meter(instrumentationName)
	borrow, err := meter.Int64Counter("lending.borrow.outcomes",
		metric.WithDescription("Borrow attempts by outcome"))
	if err != nil {
		borrow = noop.Int64Counter{}
	}
	ret, err := meter.Int64Counter("lending.return.outcomes",
		metric.WithDescription("Return attempts by outcome"))
	if err != nil {
		ret = noop.Int64Counter{}
	}
	dur, err := meter.Float64Histogram("lending.transaction.duration",
		metric.WithDescription("Borrow and return transaction time including lock waits"),
		metric.WithUnit("s"))
	if err != nil {
		dur = noop.Float64Histogram{}
	}
	return instruments{
		tracer:         otel.Tracer(instrumentationName),
		borrowOutcomes: borrow,
		returnOutcomes: ret,
		duration:       dur,
	}
}

func finishSpan(span trace.Span, err error) {
	outcome := outcomeOf(err)
	span.SetAttributes(attribute.String("lending.outcome", outcome))
	if outcome == "transient" || outcome == "stock_invariant" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func count(ctx context.Context, c metric.Int64Counter, err error) {
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcomeOf(err))))
}

func (i instruments) observe(ctx context.Context, op string, start time.Time, err error) {
	i.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcomeOf(err)),
	))
}
