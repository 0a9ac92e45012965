package sendcallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	apperrors "eligibility-service/internal/common/errors"
	commonhttp "eligibility-service/internal/common/http"
	"eligibility-service/internal/common/logger"
	"eligibility-service/internal/common/metrics"
)

const TaskType = "send-callback"

var ErrEncodePayload = errors.New("CALLBACK_ENCODE_FAILED")

// Poster is satisfied by *commonhttp.Client.
type Poster interface {
	PostJSON(ctx context.Context, url string, body []byte, maxBody int64) (*commonhttp.Response, error)
}

type Handler struct {
	config *Config
	client Poster
	logger logger.Logger
	errs   *apperrors.ErrorHandler
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option customizes a Handler.
type Option func(*Handler)

// WithPoster replaces the HTTP client.
func WithPoster(p Poster) Option {
	return func(h *Handler) { h.client = p }
}

// WithSleep replaces the backoff wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(h *Handler) { h.sleep = fn }
}

func NewHandler(config *Config, log logger.Logger, opts ...Option) *Handler {
	scoped := log.With(map[string]interface{}{
		"taskType":    TaskType,
		"callbackUrl": config.URL,
	})
	h := &Handler{
		config: config,
		client: commonhttp.NewClient(config.Timeout),
		logger: scoped,
		errs:   apperrors.NewErrorHandler(scoped),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Send posts payload up to MaxRetries times and reports whether the collector
// accepted it with a 2xx. It stops at the first success. Between failed
// attempts it waits Backoff(attempt); there is no wait after the last one.
// Exhaustion is logged and reported as false, never escalated.
func (h *Handler) Send(ctx context.Context, payload Payload) bool {
	fields := map[string]interface{}{
		"callbackId": payload.CallbackID,
		"status":     string(payload.Status),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("callback payload encoding failed", map[string]interface{}{
			"callbackId": payload.CallbackID,
			"error":      fmt.Errorf("%w: %v", ErrEncodePayload, err).Error(),
		})
		metrics.CallbackDeliveries.WithLabelValues(ResultAborted).Inc()
		return false
	}

	h.logger.Info("sending callback", fields)

	maxRetries := h.config.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if h.attempt(ctx, attempt, body, fields) {
			metrics.CallbackDeliveries.WithLabelValues(ResultDelivered).Inc()
			return true
		}

		if attempt == maxRetries {
			break
		}

		wait := h.config.Backoff(attempt)
		h.logger.Info("waiting before next callback attempt", map[string]interface{}{
			"attempt":  attempt,
			"waitTime": wait.String(),
		})
		if err := h.sleep(ctx, wait); err != nil {
			h.logger.Error("callback retry wait interrupted", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
			metrics.CallbackDeliveries.WithLabelValues(ResultAborted).Inc()
			return false
		}
	}

	h.errs.Handle("callback delivery failed after all attempts",
		apperrors.NewCallbackDeliveryFailedError(maxRetries), fields)
	metrics.CallbackDeliveries.WithLabelValues(ResultExhausted).Inc()
	return false
}

func (h *Handler) attempt(ctx context.Context, attempt int, body []byte, fields map[string]interface{}) bool {
	attemptCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	resp, err := h.client.PostJSON(attemptCtx, h.config.URL, body, h.config.MaxBodyLog)
	if err != nil {
		metrics.CallbackAttempts.WithLabelValues(OutcomeError).Inc()
		h.errs.Handle("callback request error", apperrors.NewCallbackRequestFailedError(attempt, err), map[string]interface{}{
			"callbackId": fields["callbackId"],
			"attempt":    attempt,
		})
		return false
	}

	if resp.Success() {
		metrics.CallbackAttempts.WithLabelValues(OutcomeSuccess).Inc()
		h.logger.Info("callback delivered", map[string]interface{}{
			"callbackId":   fields["callbackId"],
			"attempt":      attempt,
			"statusCode":   resp.StatusCode,
			"responseText": string(resp.Body),
		})
		return true
	}

	metrics.CallbackAttempts.WithLabelValues(OutcomeRejected).Inc()
	h.errs.Handle("callback rejected", apperrors.NewCallbackRejectedError(attempt, resp.StatusCode), map[string]interface{}{
		"callbackId":   fields["callbackId"],
		"attempt":      attempt,
		"responseText": string(resp.Body),
	})
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
