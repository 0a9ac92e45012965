package eligibility

import (
	"context"
	"time"
)

// Checker decides eligibility for a card under one plan.
type Checker interface {
	Check(ctx context.Context, cardID string) (Status, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, cardID string) (Status, error)

func (f CheckerFunc) Check(ctx context.Context, cardID string) (Status, error) {
	return f(ctx, cardID)
}

// GenericChecker serves any plan; planLabel is only used for reporting.
type GenericChecker interface {
	CheckPlan(ctx context.Context, cardID, planLabel string) (Status, error)
}

// GenericCheckerFunc adapts a function to GenericChecker.
type GenericCheckerFunc func(ctx context.Context, cardID, planLabel string) (Status, error)

func (f GenericCheckerFunc) CheckPlan(ctx context.Context, cardID, planLabel string) (Status, error) {
	return f(ctx, cardID, planLabel)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
