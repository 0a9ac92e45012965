package eligibility

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eligibility-service/internal/common/config"
	"eligibility-service/internal/common/database"
	"eligibility-service/internal/common/logger"
)

const testOverridesKey = "eligibility:always_eligible"

func setupRedis(t *testing.T) (*miniredis.Miniredis, *database.RedisClient) {
	mr := miniredis.RunT(t)
	client, err := database.NewRedis(config.RedisConfig{Enabled: true, Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestStaticOverrides_Contains(t *testing.T) {
	s := NewStaticOverrides("086955681", "111")

	assert.True(t, s.Contains(context.Background(), "086955681"))
	assert.True(t, s.Contains(context.Background(), "111"))
	assert.False(t, s.Contains(context.Background(), "86955681"))
	assert.False(t, NewStaticOverrides().Contains(context.Background(), "086955681"))
}

func TestRedisOverrides_Contains(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()
	require.NoError(t, client.AddMembers(ctx, testOverridesKey, "222", "333"))

	o := NewRedisOverrides(NewStaticOverrides("086955681"), client, testOverridesKey, logger.NewTestLogger(t))

	tests := []struct {
		cardID string
		want   bool
	}{
		{"086955681", true},
		{"222", true},
		{"333", true},
		{"444", false},
	}
	for _, tt := range tests {
		t.Run(tt.cardID, func(t *testing.T) {
			assert.Equal(t, tt.want, o.Contains(ctx, tt.cardID))
		})
	}
}

func TestRedisOverrides_DegradesToStaticOnFailure(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	require.NoError(t, client.AddMembers(ctx, testOverridesKey, "222"))

	o := NewRedisOverrides(NewStaticOverrides("086955681"), client, testOverridesKey, logger.NewTestLogger(t))
	mr.Close()

	assert.True(t, o.Contains(ctx, "086955681"))
	assert.False(t, o.Contains(ctx, "222"))
}

func TestSimulatedChecker_WithRedisOverrides(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()
	require.NoError(t, client.AddMembers(ctx, testOverridesKey, "999"))

	o := NewRedisOverrides(NewStaticOverrides(), client, testOverridesKey, logger.NewNoOpLogger())
	rec := &sleepRecorder{}
	checker := NewSimulatedChecker("amil", testSimulatedConfig(), o, logger.NewNoOpLogger(), WithSleep(rec.sleep))
	status, err := checker.Check(ctx, "999")
	require.NoError(t, err)
	assert.Equal(t, Eligible, status)
}
