package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Options toggles the providers New installs.
type Options struct {
	MetricsEnabled bool
	TracingEnabled bool
	SampleRatio    float64

	// Registerer receives the OTel prometheus collector. Defaults to
	// prometheus.DefaultRegisterer so /metrics exposes both stacks.
	Registerer prometheus.Registerer

	// SpanProcessors are attached to the tracer provider, e.g. a batcher
	// for an exporter or a span recorder in tests.
	SpanProcessors []sdktrace.SpanProcessor
}

type Observability struct {
	serviceName    string
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	checkCounter   otelmetric.Int64Counter
	checkDuration  otelmetric.Float64Histogram
	callbackResult otelmetric.Int64Counter
}

// New installs the global meter and tracer providers for serviceName.
// A failing exporter leaves metrics disabled rather than aborting startup.
func New(serviceName string, opts Options) (*Observability, error) {
	o := &Observability{serviceName: serviceName}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	if opts.TracingEnabled {
		ratio := opts.SampleRatio
		if ratio <= 0 {
			ratio = 1
		}
		tpOpts := []sdktrace.TracerProviderOption{
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		}
		for _, sp := range opts.SpanProcessors {
			tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
		}
		o.tracerProvider = sdktrace.NewTracerProvider(tpOpts...)
		otel.SetTracerProvider(o.tracerProvider)
	}

	if !opts.MetricsEnabled {
		return o, nil
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return o, err
	}

	o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(o.meterProvider)
	o.meter = o.meterProvider.Meter(serviceName)

	o.checkCounter, _ = o.meter.Int64Counter(
		"eligibility_checks",
		otelmetric.WithDescription("Number of eligibility checks processed"),
	)
	o.checkDuration, _ = o.meter.Float64Histogram(
		"eligibility_check_duration",
		otelmetric.WithDescription("Eligibility pipeline duration"),
		otelmetric.WithUnit("ms"),
	)
	o.callbackResult, _ = o.meter.Int64Counter(
		"eligibility_callbacks",
		otelmetric.WithDescription("Callback delivery outcomes"),
	)

	return o, nil
}

// Tracer returns the service tracer, or a no-op tracer when tracing is off.
func (o *Observability) Tracer() trace.Tracer {
	if o == nil || o.tracerProvider == nil {
		return noop.NewTracerProvider().Tracer("")
	}
	return o.tracerProvider.Tracer(o.serviceName)
}

func (o *Observability) RecordCheckProcessed(ctx context.Context, handlerType, status string) {
	if o == nil || o.checkCounter == nil {
		return
	}
	o.checkCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("handler_type", handlerType),
		attribute.String("status", status),
	))
}

func (o *Observability) RecordCheckDuration(ctx context.Context, duration time.Duration, status string) {
	if o == nil || o.checkDuration == nil {
		return
	}
	o.checkDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("status", status),
	))
}

func (o *Observability) RecordCallback(ctx context.Context, delivered bool) {
	if o == nil || o.callbackResult == nil {
		return
	}
	o.callbackResult.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.Bool("delivered", delivered),
	))
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
