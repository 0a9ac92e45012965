package api

import (
	"fmt"
	"runtime"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "eligibility-service/internal/common/errors"
	"eligibility-service/internal/common/logger"
	"eligibility-service/internal/common/metrics"
	"eligibility-service/internal/common/validation"
	processcheck "eligibility-service/internal/workers/eligibility/process-check"
)

// Submitter is satisfied by *processcheck.Handler.
type Submitter interface {
	Submit(req processcheck.CheckRequest) error
}

// PlanLister is satisfied by *eligibility.Registry.
type PlanLister interface {
	ListSupportedPlans() []string
}

// ServiceInfo is reported by the metadata endpoints.
type ServiceInfo struct {
	Name        string
	Version     string
	Environment string
}

type Options struct {
	Info         ServiceInfo
	Submitter    Submitter
	Plans        PlanLister
	Gatherer     prometheus.Gatherer
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Router struct {
	App       *fiber.App
	info      ServiceInfo
	submitter Submitter
	plans     PlanLister
	gatherer  prometheus.Gatherer
	logger    logger.Logger
}

func NewRouter(opts Options, log logger.Logger) *Router {
	app := fiber.New(fiber.Config{
		AppName:               opts.Info.Name,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		DisableStartupMessage: true,
	})

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Router{
		App:       app,
		info:      opts.Info,
		submitter: opts.Submitter,
		plans:     opts.Plans,
		gatherer:  gatherer,
		logger:    log.With(map[string]interface{}{"component": "api"}),
	}
}

func (r *Router) RegisterRoutes() {
	r.App.Use(recover.New(recover.Config{EnableStackTrace: true}))
	r.App.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "*",
	}))

	r.App.Get("/", r.Root)
	r.App.Get("/health", r.HealthCheck)
	r.App.Get("/ready", r.ReadyCheck)
	r.App.Get("/plans", r.ListPlans)
	r.App.Get("/debug", r.Debug)
	r.App.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))

	r.App.Post("/webhook/in", r.WebhookIn)
}

// WebhookIn validates the body, schedules the check and acknowledges without
// waiting for it. Invalid bodies get 422 and schedule nothing.
func (r *Router) WebhookIn(c *fiber.Ctx) error {
	body := c.Body()

	result := webhookSchema.Validate(body)
	if !result.Valid {
		return r.reject(c, result.Errors)
	}

	var in WebhookRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return r.reject(c, []validation.ValidationError{{Field: "body", Message: err.Error(), Code: "INVALID_JSON"}})
	}

	req := processcheck.NewCheckRequest(in.CardID, in.PlanName, in.CallbackID)
	fields := map[string]interface{}{
		"requestId":  req.RequestID,
		"cardId":     req.CardID,
		"planName":   req.PlanName,
		"callbackId": req.CallbackID,
	}
	r.logger.Info("webhook received", fields)

	if err := r.submitter.Submit(req); err != nil {
		metrics.WebhooksReceived.WithLabelValues(OutcomeUnavailable).Inc()
		fields["error"] = err.Error()
		r.logger.Error("failed to schedule eligibility check", fields)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"message": "service shutting down",
		})
	}

	metrics.WebhooksReceived.WithLabelValues(OutcomeAccepted).Inc()
	return c.JSON(WebhookResponse{Success: true, Message: AcceptedMessage})
}

func (r *Router) reject(c *fiber.Ctx, detail []validation.ValidationError) error {
	fault := apperrors.NewValidationFailedError(fmt.Sprintf("%d invalid field(s)", len(detail)))
	fields := fault.Fields()
	fields["detail"] = detail

	metrics.WebhooksReceived.WithLabelValues(OutcomeRejected).Inc()
	r.logger.Warn("webhook rejected", fields)
	return c.Status(fiber.StatusUnprocessableEntity).JSON(ValidationErrorResponse{
		Code:   string(fault.Code),
		Detail: detail,
	})
}

func (r *Router) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:         "healthy",
		Service:        r.info.Name,
		SupportedPlans: r.plans.ListSupportedPlans(),
	})
}

func (r *Router) ReadyCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (r *Router) ListPlans(c *fiber.Ctx) error {
	plans := r.plans.ListSupportedPlans()
	r.logger.Info("supported plans requested", map[string]interface{}{"plans": plans})
	return c.JSON(PlansResponse{SupportedPlans: plans, Total: len(plans)})
}

func (r *Router) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": r.info.Name,
		"version": r.info.Version,
		"status":  "running",
		"endpoints": fiber.Map{
			"webhook": "POST /webhook/in",
			"health":  "GET /health",
			"ready":   "GET /ready",
			"plans":   "GET /plans",
			"debug":   "GET /debug",
			"metrics": "GET /metrics",
		},
	})
}

func (r *Router) Debug(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service":          r.info.Name,
		"version":          r.info.Version,
		"environment":      r.info.Environment,
		"go_version":       runtime.Version(),
		"goroutines":       runtime.NumGoroutine(),
		"registered_plans": r.plans.ListSupportedPlans(),
	})
}
