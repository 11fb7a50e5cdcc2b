// Package gateway exposes the financing engine over HTTP.
package gateway

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nftfi/native/financing"
	"nftfi/observability"
)

// Dispatcher serialises access to the engine. Every handler goes through it,
// including devnet token calls whose hooks re-enter the engine.
type Dispatcher struct {
	mu      sync.Mutex
	engine  *financing.Engine
	metrics *observability.FinancingMetricsRecorder
	tracer  trace.Tracer
}

func NewDispatcher(engine *financing.Engine, metrics *observability.FinancingMetricsRecorder) *Dispatcher {
	return &Dispatcher{engine: engine, metrics: metrics, tracer: otel.Tracer("nftfi/financing")}
}

// Do runs a mutating call and records its outcome.
func (d *Dispatcher) Do(ctx context.Context, op string, fn func(*financing.Engine) error) error {
	_, span := d.tracer.Start(ctx, "financing."+op, trace.WithAttributes(attribute.String("financing.op", op)))
	defer span.End()

	d.mu.Lock()
	start := time.Now()
	err := fn(d.engine)
	elapsed := time.Since(start)
	d.mu.Unlock()

	d.metrics.Observe(op, err, elapsed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, observability.Outcome(err))
	}
	return err
}

// View runs a read-only call under the same lock.
func (d *Dispatcher) View(fn func(*financing.Engine) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d.engine)
}
