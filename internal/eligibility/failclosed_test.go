package eligibility

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eligibility-service/internal/common/logger"
)

func TestFailClosed_CheckPlan(t *testing.T) {
	overrides := NewStaticOverrides("086955681")

	tests := []struct {
		name   string
		next   GenericCheckerFunc
		cardID string
		want   Status
	}{
		{
			name: "passes through a valid result",
			next: func(ctx context.Context, cardID, planLabel string) (Status, error) {
				return Eligible, nil
			},
			cardID: "1",
			want:   Eligible,
		},
		{
			name: "error becomes not eligible",
			next: func(ctx context.Context, cardID, planLabel string) (Status, error) {
				return "", errors.New("portal unreachable")
			},
			cardID: "1",
			want:   NotEligible,
		},
		{
			name: "error on override card stays eligible",
			next: func(ctx context.Context, cardID, planLabel string) (Status, error) {
				return "", errors.New("portal unreachable")
			},
			cardID: "086955681",
			want:   Eligible,
		},
		{
			name: "panic becomes not eligible",
			next: func(ctx context.Context, cardID, planLabel string) (Status, error) {
				panic("selector not found")
			},
			cardID: "1",
			want:   NotEligible,
		},
		{
			name: "panic on override card stays eligible",
			next: func(ctx context.Context, cardID, planLabel string) (Status, error) {
				panic("selector not found")
			},
			cardID: "086955681",
			want:   Eligible,
		},
		{
			name: "invalid status becomes not eligible",
			next: func(ctx context.Context, cardID, planLabel string) (Status, error) {
				return Status("maybe"), nil
			},
			cardID: "1",
			want:   NotEligible,
		},
		{
			name: "timeout becomes not eligible",
			next: func(ctx context.Context, cardID, planLabel string) (Status, error) {
				return NotEligible, context.DeadlineExceeded
			},
			cardID: "1",
			want:   NotEligible,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := NewFailClosed(tt.next, overrides, logger.NewTestLogger(t))

			status, err := fc.CheckPlan(context.Background(), tt.cardID, "amil")
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestFailClosed_OverrideLookupIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var seen context.Context
	overrides := overrideFunc(func(ctx context.Context, cardID string) bool {
		seen = ctx
		return true
	})
	next := GenericCheckerFunc(func(ctx context.Context, cardID, planLabel string) (Status, error) {
		return "", ctx.Err()
	})

	status, err := NewFailClosed(next, overrides, logger.NewNoOpLogger()).CheckPlan(ctx, "1", "amil")
	require.NoError(t, err)
	assert.Equal(t, Eligible, status)
	require.NotNil(t, seen)
	assert.NoError(t, seen.Err())
}

func TestFailClosed_Bind(t *testing.T) {
	var label string
	next := GenericCheckerFunc(func(ctx context.Context, cardID, planLabel string) (Status, error) {
		label = planLabel
		return Eligible, nil
	})

	checker := NewFailClosed(next, nil, logger.NewNoOpLogger()).Bind("amil")
	status, err := checker.Check(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, Eligible, status)
	assert.Equal(t, "amil", label)
}

type overrideFunc func(ctx context.Context, cardID string) bool

func (f overrideFunc) Contains(ctx context.Context, cardID string) bool {
	return f(ctx, cardID)
}
