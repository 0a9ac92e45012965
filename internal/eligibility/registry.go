package eligibility

import (
	"context"
	"strings"
	"sync"

	"eligibility-service/internal/common/logger"
)

// GenericPlanSentinel closes the supported-plans listing: any other plan is
// served by the generic checker.
const GenericPlanSentinel = "qualquer_plano_via_handler_generico"

// HandlerKind tags a Resolution.
type HandlerKind int

const (
	Specific HandlerKind = iota
	Generic
)

func (k HandlerKind) String() string {
	if k == Specific {
		return "specific"
	}
	return "generic"
}

// Resolution is the checker chosen for one request.
// Specific: Plan is the registered (lower-cased) key.
// Generic: Plan is the plan name exactly as the caller sent it.
type Resolution struct {
	Kind    HandlerKind
	Plan    string
	checker Checker
	generic GenericChecker
}

func (r Resolution) Check(ctx context.Context, cardID string) (Status, error) {
	if r.Kind == Specific {
		return r.checker.Check(ctx, cardID)
	}
	return r.generic.CheckPlan(ctx, cardID, r.Plan)
}

// Registry maps plan names, case-insensitively, to checkers. It is filled at
// startup and read concurrently afterwards.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	handlers map[string]Checker
	generic  GenericChecker
	logger   logger.Logger
}

func NewRegistry(generic GenericChecker, log logger.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]Checker),
		generic:  generic,
		logger:   log.With(map[string]interface{}{"component": "handler-registry"}),
	}
}

// Register stores checker under the lower-cased plan name. Registering the
// same key again replaces the checker and keeps its listing position.
func (r *Registry) Register(planName string, checker Checker) {
	key := strings.ToLower(planName)

	r.mu.Lock()
	if _, exists := r.handlers[key]; !exists {
		r.order = append(r.order, key)
	}
	r.handlers[key] = checker
	r.mu.Unlock()

	r.logger.Info("handler registered", map[string]interface{}{
		"planName": planName,
		"planKey":  key,
	})
}

// Resolve never fails. Unknown plans, typos included, resolve to the generic
// checker labelled with the original plan name.
func (r *Registry) Resolve(planName string) Resolution {
	key := strings.ToLower(planName)

	r.mu.RLock()
	checker, ok := r.handlers[key]
	r.mu.RUnlock()

	if ok {
		r.logger.Info("using specific handler", map[string]interface{}{
			"planName":    planName,
			"handlerType": Specific.String(),
		})
		return Resolution{Kind: Specific, Plan: key, checker: checker}
	}

	r.logger.Info("using generic handler", map[string]interface{}{
		"planName":    planName,
		"handlerType": Generic.String(),
	})
	return Resolution{Kind: Generic, Plan: planName, generic: r.generic}
}

// ListSupportedPlans returns registered keys in registration order followed
// by GenericPlanSentinel.
func (r *Registry) ListSupportedPlans() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plans := make([]string, 0, len(r.order)+1)
	plans = append(plans, r.order...)
	return append(plans, GenericPlanSentinel)
}
