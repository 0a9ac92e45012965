// internal/common/config/loader.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultCallbackURL    = "https://web-hook.imca.app.br/webhook/a4c4db28-1c03-4233-959d-6f89630daae4"
	DefaultAlwaysEligible = "086955681"
	ProviderSimulated     = "simulated"
)

var ErrMissingCredentials = errors.New("PLAN_CREDENTIALS_MISSING")

type loadOptions struct {
	skipPlanCredentials bool
}

// LoadOption adjusts how a configuration is validated.
type LoadOption func(*loadOptions)

// WithoutPlanCredentials skips the plan login/password check, for tools that
// read the config but never run a plan checker.
func WithoutPlanCredentials() LoadOption {
	return func(o *loadOptions) { o.skipPlanCredentials = true }
}

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top,
// then applies environment overrides.
func Load(opts ...LoadOption) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return build(v, opts)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string, opts ...LoadOption) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return build(v, opts)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func build(v *viper.Viper, opts []LoadOption) (*Config, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyLegacyEnv(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if !o.skipPlanCredentials {
		if err := validatePlanCredentials(&cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "robo_veia")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 5000)
	v.SetDefault("server.write_timeout", 5000)
	v.SetDefault("server.shutdown_timeout", 30000)

	v.SetDefault("callback.url", DefaultCallbackURL)
	v.SetDefault("callback.timeout", 10)
	v.SetDefault("callback.max_retries", 3)

	v.SetDefault("checker.provider", ProviderSimulated)
	v.SetDefault("checker.min_delay", 3000)
	v.SetDefault("checker.max_delay", 8000)
	v.SetDefault("checker.step_delay", 500)
	v.SetDefault("checker.always_eligible", []string{DefaultAlwaysEligible})

	v.SetDefault("plans.amil.enabled", true)
	v.SetDefault("plans.amil.login", "")
	v.SetDefault("plans.amil.password", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.overrides_key", "eligibility:always_eligible")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.tracing_enabled", true)
	v.SetDefault("observability.sample_ratio", 1.0)
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// applyLegacyEnv honours the variable names the service has always been
// deployed with. They win over file values when set.
func applyLegacyEnv(cfg *Config) {
	if val := os.Getenv("WEBHOOK_CALLBACK_URL"); val != "" {
		cfg.Callback.URL = val
	}
	if n, ok := intEnv("WEBHOOK_TIMEOUT"); ok {
		cfg.Callback.Timeout = n
	}
	if n, ok := intEnv("WEBHOOK_MAX_RETRIES"); ok {
		cfg.Callback.MaxRetries = n
	}
	if n, ok := intEnv("PORT"); ok {
		cfg.Server.Port = n
	}

	if cfg.Plans == nil {
		cfg.Plans = make(map[string]PlanConfig)
	}
	for name, plan := range cfg.Plans {
		prefix := strings.ToUpper(name)
		if val := os.Getenv(prefix + "_LOGIN"); val != "" && plan.Login == "" {
			plan.Login = val
		}
		if val := os.Getenv(prefix + "_PASSWORD"); val != "" && plan.Password == "" {
			plan.Password = val
		}
		cfg.Plans[name] = plan
	}
}

func intEnv(key string) (int, bool) {
	val := os.Getenv(key)
	if val == "" {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return n, true
}

// applyDefaults fills fields an explicit empty value would blank. Callback
// timeout and retries are left to setDefaults so an explicit 0 is rejected.
func applyDefaults(cfg *Config) {
	if cfg.Checker.Provider == "" {
		cfg.Checker.Provider = ProviderSimulated
	}
	if len(cfg.Checker.AlwaysEligible) == 0 {
		cfg.Checker.AlwaysEligible = []string{DefaultAlwaysEligible}
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}
	if cfg.Redis.OverridesKey == "" {
		cfg.Redis.OverridesKey = "eligibility:always_eligible"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Observability.SampleRatio <= 0 {
		cfg.Observability.SampleRatio = 1.0
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Callback.URL == "" {
		return fmt.Errorf("callback.url is required")
	}
	if u, err := url.Parse(cfg.Callback.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("callback.url must be an absolute URL: %q", cfg.Callback.URL)
	}
	if cfg.Callback.MaxRetries < 1 {
		return fmt.Errorf("callback.max_retries must be at least 1")
	}
	if cfg.Callback.Timeout < 1 {
		return fmt.Errorf("callback.timeout must be at least 1 second")
	}

	if cfg.Checker.Provider != ProviderSimulated {
		return fmt.Errorf("checker.provider %q is not supported", cfg.Checker.Provider)
	}
	if cfg.Checker.MinDelay < 0 || cfg.Checker.MaxDelay < cfg.Checker.MinDelay {
		return fmt.Errorf("checker delays must satisfy 0 <= min_delay <= max_delay")
	}

	if cfg.Redis.Enabled && cfg.Redis.Address == "" {
		return fmt.Errorf("redis.address is required when redis is enabled")
	}
	return nil
}

func validatePlanCredentials(cfg *Config) error {
	var missing []string
	for name, plan := range cfg.Plans {
		if !plan.Enabled {
			continue
		}
		if plan.Login == "" {
			missing = append(missing, strings.ToUpper(name)+"_LOGIN")
		}
		if plan.Password == "" {
			missing = append(missing, strings.ToUpper(name)+"_PASSWORD")
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
