package eligibility

import (
	"context"
	"errors"

	apperrors "eligibility-service/internal/common/errors"
	"eligibility-service/internal/common/logger"
)

// FailClosed guards a checker so that no fault escapes it: any error or panic
// becomes NotEligible, except for override-listed cards, which stay Eligible.
type FailClosed struct {
	next      GenericChecker
	overrides OverrideSet
	errs      *apperrors.ErrorHandler
}

func NewFailClosed(next GenericChecker, overrides OverrideSet, log logger.Logger) *FailClosed {
	if overrides == nil {
		overrides = NewStaticOverrides()
	}
	return &FailClosed{
		next:      next,
		overrides: overrides,
		errs:      apperrors.NewErrorHandler(log.With(map[string]interface{}{"component": "fail-closed"})),
	}
}

// Bind returns a Checker that always reports planLabel.
func (f *FailClosed) Bind(planLabel string) Checker {
	return CheckerFunc(func(ctx context.Context, cardID string) (Status, error) {
		return f.CheckPlan(ctx, cardID, planLabel)
	})
}

// CheckPlan never returns a non-nil error.
func (f *FailClosed) CheckPlan(ctx context.Context, cardID, planLabel string) (status Status, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			status = f.fallback(ctx, cardID, planLabel, apperrors.NewCheckPanickedError(planLabel, rec))
			err = nil
		}
	}()

	status, err = f.next.CheckPlan(ctx, cardID, planLabel)
	if err != nil {
		return f.fallback(ctx, cardID, planLabel, classify(planLabel, err)), nil
	}
	if !status.Valid() {
		return f.fallback(ctx, cardID, planLabel,
			apperrors.NewCheckFailedError(planLabel, errors.New("invalid status "+string(status)))), nil
	}
	return status, nil
}

func (f *FailClosed) fallback(ctx context.Context, cardID, planLabel string, fault *apperrors.StandardError) Status {
	status := NotEligible
	// ctx may already be cancelled by the fault
	if f.overrides.Contains(context.WithoutCancel(ctx), cardID) {
		status = Eligible
	}
	f.errs.Handle("eligibility check fault, failing closed", fault, map[string]interface{}{
		"cardId":         cardID,
		"planName":       planLabel,
		"fallbackStatus": string(status),
	})
	return status
}

func classify(planLabel string, err error) *apperrors.StandardError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewCheckTimeoutError(planLabel, err)
	}
	return apperrors.NewCheckFailedError(planLabel, err)
}
