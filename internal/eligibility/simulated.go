package eligibility

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"eligibility-service/internal/common/logger"
)

// DefaultEligibleWeight is the share (out of 100) of non-override cards the
// simulated checker reports as Eligible.
const DefaultEligibleWeight = 70

// SimulatedConfig tunes the artificial latency of SimulatedChecker.
type SimulatedConfig struct {
	MinDelay       time.Duration
	MaxDelay       time.Duration
	StepDelay      time.Duration
	EligibleWeight int
}

// SimulatedChecker stands in for a provider portal. Results are repeatable per
// card: a stable hash of the card ID seeds the weighted draw. The outcome is a
// simulation artifact and carries no real eligibility rule.
type SimulatedChecker struct {
	label     string
	config    SimulatedConfig
	overrides OverrideSet
	logger    logger.Logger
	sleep     SleepFunc
	jitter    func() float64
}

// SimulatedOption customizes a SimulatedChecker.
type SimulatedOption func(*SimulatedChecker)

// WithSleep replaces the wait used for artificial latency.
func WithSleep(fn SleepFunc) SimulatedOption {
	return func(c *SimulatedChecker) { c.sleep = fn }
}

// WithJitter replaces the [0,1) source used to pick the processing delay.
func WithJitter(fn func() float64) SimulatedOption {
	return func(c *SimulatedChecker) { c.jitter = fn }
}

func NewSimulatedChecker(label string, cfg SimulatedConfig, overrides OverrideSet, log logger.Logger, opts ...SimulatedOption) *SimulatedChecker {
	if cfg.EligibleWeight <= 0 || cfg.EligibleWeight > 100 {
		cfg.EligibleWeight = DefaultEligibleWeight
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	if overrides == nil {
		overrides = NewStaticOverrides()
	}
	c := &SimulatedChecker{
		label:     label,
		config:    cfg,
		overrides: overrides,
		logger:    log.With(map[string]interface{}{"checker": "simulated"}),
		sleep:     sleepContext,
		jitter:    rand.Float64,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *SimulatedChecker) Check(ctx context.Context, cardID string) (Status, error) {
	return c.CheckPlan(ctx, cardID, c.label)
}

func (c *SimulatedChecker) CheckPlan(ctx context.Context, cardID, planLabel string) (Status, error) {
	fields := map[string]interface{}{
		"cardId":   cardID,
		"planName": planLabel,
	}
	c.logger.Info("starting eligibility check", fields)

	processing := c.processingDelay()
	c.logger.Info(fmt.Sprintf("simulating processing for %.1f seconds", processing.Seconds()), fields)
	if err := c.sleep(ctx, processing); err != nil {
		return NotEligible, fmt.Errorf("processing wait: %w", err)
	}

	var status Status
	if c.overrides.Contains(ctx, cardID) {
		status = Eligible
		c.logger.Info("card is on the override list, always eligible", fields)
	} else {
		status = SeededStatus(cardID, c.config.EligibleWeight)
	}

	steps := []struct {
		msg   string
		delay time.Duration
	}{
		{"navigating to provider login page", c.config.StepDelay},
		{"login succeeded", c.config.StepDelay},
		{"opening eligibility tab", c.config.StepDelay},
		{"looking up card", c.config.StepDelay},
		{"waiting for lookup result", 2 * c.config.StepDelay},
	}
	for _, step := range steps {
		c.logger.Info(step.msg, fields)
		if err := c.sleep(ctx, step.delay); err != nil {
			return NotEligible, fmt.Errorf("%s: %w", step.msg, err)
		}
	}

	c.logger.Info("eligibility check finished", map[string]interface{}{
		"cardId":   cardID,
		"planName": planLabel,
		"status":   string(status),
	})
	return status, nil
}

func (c *SimulatedChecker) processingDelay() time.Duration {
	span := c.config.MaxDelay - c.config.MinDelay
	if span <= 0 {
		return c.config.MinDelay
	}
	return c.config.MinDelay + time.Duration(c.jitter()*float64(span))
}

// SeededStatus is the weighted draw for cardID: the same card always gets the
// same status for a given weight, across processes.
func SeededStatus(cardID string, eligibleWeight int) Status {
	h := fnv.New64a()
	_, _ = h.Write([]byte(cardID))
	seed := h.Sum64()

	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	if r.IntN(100) < eligibleWeight {
		return Eligible
	}
	return NotEligible
}
