package eligibility

import (
	"fmt"
	"strings"

	"eligibility-service/internal/common/config"
	apperrors "eligibility-service/internal/common/errors"
	"eligibility-service/internal/common/logger"
)

// Credentials is the portal login pair of a plan-specific checker.
type Credentials struct {
	Login    string
	Password string
}

// Provider builds the checkers for one implementation family. It is chosen
// once at startup from checker.provider.
type Provider interface {
	Name() string
	Generic() GenericChecker
	ForPlan(planName string, creds Credentials) (Checker, error)
}

// NewProvider returns the configured provider. Every checker it hands out is
// wrapped in FailClosed.
func NewProvider(cfg config.CheckerConfig, overrides OverrideSet, log logger.Logger, opts ...SimulatedOption) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderSimulated, "":
		return &simulatedProvider{
			config: SimulatedConfig{
				MinDelay:  config.GetDuration(cfg.MinDelay),
				MaxDelay:  config.GetDuration(cfg.MaxDelay),
				StepDelay: config.GetDuration(cfg.StepDelay),
			},
			overrides: overrides,
			logger:    log,
			opts:      opts,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported checker provider %q", cfg.Provider)
	}
}

type simulatedProvider struct {
	config    SimulatedConfig
	overrides OverrideSet
	logger    logger.Logger
	opts      []SimulatedOption
}

func (p *simulatedProvider) Name() string { return config.ProviderSimulated }

func (p *simulatedProvider) Generic() GenericChecker {
	sim := NewSimulatedChecker("generic", p.config, p.overrides, p.logger, p.opts...)
	return NewFailClosed(sim, p.overrides, p.logger)
}

func (p *simulatedProvider) ForPlan(planName string, creds Credentials) (Checker, error) {
	if creds.Login == "" || creds.Password == "" {
		return nil, apperrors.NewCredentialsMissingError(planName)
	}
	sim := NewSimulatedChecker(planName, p.config, p.overrides, p.logger, p.opts...)
	return NewFailClosed(sim, p.overrides, p.logger).Bind(planName), nil
}

// BuildRegistry registers a checker for every enabled plan in cfg, in sorted
// plan order, on top of the provider's generic fallback.
func BuildRegistry(cfg *config.Config, provider Provider, log logger.Logger) (*Registry, error) {
	registry := NewRegistry(provider.Generic(), log)

	for _, name := range cfg.EnabledPlans() {
		plan := lookupPlan(cfg.Plans, name)
		checker, err := provider.ForPlan(name, Credentials{Login: plan.Login, Password: plan.Password})
		if err != nil {
			return nil, fmt.Errorf("register plan %s: %w", name, err)
		}
		registry.Register(name, checker)
	}

	log.Info("handlers registered", map[string]interface{}{
		"registeredPlans": registry.ListSupportedPlans(),
		"genericFallback": true,
		"provider":        provider.Name(),
	})
	return registry, nil
}

func lookupPlan(plans map[string]config.PlanConfig, lowered string) config.PlanConfig {
	if plan, ok := plans[lowered]; ok {
		return plan
	}
	for name, plan := range plans {
		if strings.ToLower(name) == lowered {
			return plan
		}
	}
	return config.PlanConfig{}
}
