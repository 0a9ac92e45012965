package eligibility

import (
	"context"

	apperrors "eligibility-service/internal/common/errors"
	"eligibility-service/internal/common/logger"
)

// OverrideSet is the allow-list of cards that are always Eligible.
type OverrideSet interface {
	Contains(ctx context.Context, cardID string) bool
}

// StaticOverrides is an in-memory allow-list fixed at startup.
type StaticOverrides map[string]struct{}

func NewStaticOverrides(cardIDs ...string) StaticOverrides {
	s := make(StaticOverrides, len(cardIDs))
	for _, id := range cardIDs {
		s[id] = struct{}{}
	}
	return s
}

func (s StaticOverrides) Contains(_ context.Context, cardID string) bool {
	_, ok := s[cardID]
	return ok
}

// SetMembership is implemented by database.RedisClient.
type SetMembership interface {
	IsMember(ctx context.Context, key, member string) (bool, error)
}

// RedisOverrides extends a static allow-list with a Redis set so operators can
// add cards without a redeploy. The static list always wins; a Redis failure
// degrades to the static list only.
type RedisOverrides struct {
	static StaticOverrides
	store  SetMembership
	key    string
	errs   *apperrors.ErrorHandler
}

func NewRedisOverrides(static StaticOverrides, store SetMembership, key string, log logger.Logger) *RedisOverrides {
	return &RedisOverrides{
		static: static,
		store:  store,
		key:    key,
		errs: apperrors.NewErrorHandler(log.With(map[string]interface{}{
			"component": "override-set",
			"redisKey":  key,
		})),
	}
}

func (r *RedisOverrides) Contains(ctx context.Context, cardID string) bool {
	if r.static.Contains(ctx, cardID) {
		return true
	}
	ok, err := r.store.IsMember(ctx, r.key, cardID)
	if err != nil {
		r.errs.Handle("override lookup failed, using static allow-list", apperrors.NewOverrideLookupError(err),
			map[string]interface{}{"cardId": cardID})
		return false
	}
	return ok
}
