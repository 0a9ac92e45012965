package processcheck

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	apperrors "eligibility-service/internal/common/errors"
	"eligibility-service/internal/common/logger"
	"eligibility-service/internal/common/metrics"
	"eligibility-service/internal/eligibility"
	sendcallback "eligibility-service/internal/workers/eligibility/send-callback"
)

const TaskType = "process-check"

// Resolver is satisfied by *eligibility.Registry.
type Resolver interface {
	Resolve(planName string) eligibility.Resolution
}

// Deliverer is satisfied by *sendcallback.Handler.
type Deliverer interface {
	Send(ctx context.Context, payload sendcallback.Payload) bool
}

// Spawner is satisfied by *tasks.Runner.
type Spawner interface {
	Go(name string, fn func(ctx context.Context)) error
}

// Recorder is satisfied by *observability.Observability.
type Recorder interface {
	RecordCheckProcessed(ctx context.Context, handlerType, status string)
	RecordCheckDuration(ctx context.Context, duration time.Duration, status string)
	RecordCallback(ctx context.Context, delivered bool)
}

type Handler struct {
	resolver  Resolver
	deliverer Deliverer
	spawner   Spawner
	overrides eligibility.OverrideSet
	tracer    trace.Tracer
	recorder  Recorder
	logger    logger.Logger
	errs      *apperrors.ErrorHandler
}

// Option customizes a Handler.
type Option func(*Handler)

// WithTracer sets the tracer used for stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(h *Handler) { h.tracer = t }
}

// WithRecorder sets the OTel metric recorder.
func WithRecorder(r Recorder) Option {
	return func(h *Handler) { h.recorder = r }
}

// WithOverrides sets the allow-list consulted when a fault reaches the
// pipeline boundary.
func WithOverrides(o eligibility.OverrideSet) Option {
	return func(h *Handler) { h.overrides = o }
}

func NewHandler(resolver Resolver, deliverer Deliverer, spawner Spawner, log logger.Logger, opts ...Option) *Handler {
	scoped := log.With(map[string]interface{}{"taskType": TaskType})
	h := &Handler{
		resolver:  resolver,
		deliverer: deliverer,
		spawner:   spawner,
		overrides: eligibility.NewStaticOverrides(),
		tracer:    noop.NewTracerProvider().Tracer(""),
		logger:    scoped,
		errs:      apperrors.NewErrorHandler(scoped),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Submit schedules the pipeline for req and returns without waiting for it.
func (h *Handler) Submit(req CheckRequest) error {
	return h.spawner.Go(TaskType+":"+req.RequestID, func(ctx context.Context) {
		h.Process(ctx, req)
	})
}

// Process runs resolve, check and deliver for req. Faults in resolve or check
// force NotEligible and delivery still happens; a fault in delivery drops the
// request. Nothing is retried at this level.
func (h *Handler) Process(ctx context.Context, req CheckRequest) Result {
	start := time.Now()
	log := h.logger.With(map[string]interface{}{
		"requestId":  req.RequestID,
		"cardId":     req.CardID,
		"planName":   req.PlanName,
		"callbackId": req.CallbackID,
	})

	ctx, span := h.tracer.Start(ctx, "eligibility.process", trace.WithAttributes(
		attribute.String("request.id", req.RequestID),
		attribute.String("plan.name", req.PlanName),
	))
	defer span.End()

	res := Result{RequestID: req.RequestID, Stage: StageReceived}
	log.Info("background processing started", map[string]interface{}{"stage": string(res.Stage)})

	res.Status = h.check(ctx, req, &res, log)

	res.Stage = StageDelivering
	res.Delivered = h.deliver(ctx, req, res.Status, log)
	res.Stage = StageDone

	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.String("eligibility.status", string(res.Status)),
		attribute.Bool("callback.delivered", res.Delivered),
	)
	if h.recorder != nil {
		h.recorder.RecordCheckProcessed(ctx, res.HandlerType, string(res.Status))
		h.recorder.RecordCheckDuration(ctx, elapsed, string(res.Status))
		h.recorder.RecordCallback(ctx, res.Delivered)
	}

	done := map[string]interface{}{
		"stage":       string(res.Stage),
		"status":      string(res.Status),
		"handlerType": res.HandlerType,
		"faulted":     res.Faulted,
		"durationMs":  elapsed.Milliseconds(),
	}
	if res.Delivered {
		log.Info("processing completed", done)
	} else {
		span.SetStatus(codes.Error, "callback not delivered")
		log.Warn("processing completed but callback failed", done)
	}
	return res
}

func (h *Handler) check(ctx context.Context, req CheckRequest, res *Result, log logger.Logger) (status eligibility.Status) {
	ctx, span := h.tracer.Start(ctx, "eligibility.check")
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			status = h.failClosed(ctx, req, res, apperrors.NewCheckPanickedError(req.PlanName, rec), span)
		}
	}()

	res.Stage = StageResolving
	resolution := h.resolver.Resolve(req.PlanName)
	res.HandlerType = resolution.Kind.String()
	res.Plan = resolution.Plan
	metrics.PlanResolutions.WithLabelValues(res.HandlerType).Inc()
	span.SetAttributes(
		attribute.String("handler.type", res.HandlerType),
		attribute.String("handler.plan", res.Plan),
	)

	res.Stage = StageChecking
	log.Info("checking eligibility", map[string]interface{}{
		"stage":       string(res.Stage),
		"handlerType": res.HandlerType,
	})

	checkStart := time.Now()
	status, err := resolution.Check(ctx, req.CardID)
	metrics.CheckDuration.WithLabelValues(res.HandlerType).Observe(time.Since(checkStart).Seconds())
	if err != nil {
		return h.failClosed(ctx, req, res, apperrors.NewCheckFailedError(req.PlanName, err), span)
	}
	if !status.Valid() {
		return h.failClosed(ctx, req, res,
			apperrors.NewCheckFailedError(req.PlanName, fmt.Errorf("invalid status %q", status)), span)
	}

	metrics.ChecksCompleted.WithLabelValues(res.HandlerType, string(status)).Inc()
	return status
}

func (h *Handler) failClosed(ctx context.Context, req CheckRequest, res *Result, fault *apperrors.StandardError, span trace.Span) eligibility.Status {
	status := eligibility.NotEligible
	if h.overrides.Contains(context.WithoutCancel(ctx), req.CardID) {
		status = eligibility.Eligible
	}
	if res.HandlerType == "" {
		res.HandlerType = eligibility.Generic.String()
	}
	res.Faulted = true

	span.RecordError(fault)
	span.SetStatus(codes.Error, string(fault.Code))
	metrics.CheckFaults.WithLabelValues(string(fault.Code)).Inc()
	metrics.ChecksCompleted.WithLabelValues(res.HandlerType, string(status)).Inc()

	h.errs.Handle("eligibility processing fault, failing closed", fault, map[string]interface{}{
		"requestId":      req.RequestID,
		"cardId":         req.CardID,
		"planName":       req.PlanName,
		"stage":          string(res.Stage),
		"fallbackStatus": string(status),
	})
	return status
}

func (h *Handler) deliver(ctx context.Context, req CheckRequest, status eligibility.Status, log logger.Logger) (delivered bool) {
	ctx, span := h.tracer.Start(ctx, "eligibility.deliver")
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			fault := apperrors.NewDeliveryPanickedError(rec)
			span.RecordError(fault)
			span.SetStatus(codes.Error, string(fault.Code))
			h.errs.Handle("callback delivery fault, request dropped", fault, map[string]interface{}{
				"requestId":  req.RequestID,
				"callbackId": req.CallbackID,
				"status":     string(status),
			})
			delivered = false
		}
	}()

	log.Info("delivering result", map[string]interface{}{
		"stage":  string(StageDelivering),
		"status": string(status),
	})
	delivered = h.deliverer.Send(ctx, sendcallback.Payload{CallbackID: req.CallbackID, Status: status})
	span.SetAttributes(attribute.Bool("callback.delivered", delivered))
	return delivered
}
