// internal/workers/eligibility/send-callback/config.go
package sendcallback

import (
	"math"
	"time"

	"eligibility-service/internal/common/config"
)

type Config struct {
	URL         string
	Timeout     time.Duration // per attempt
	MaxRetries  int
	MaxBodyLog  int64
	BackoffUnit time.Duration
}

func LoadConfig(cfg config.CallbackConfig) *Config {
	return &Config{
		URL:         cfg.URL,
		Timeout:     cfg.TimeoutDuration(),
		MaxRetries:  cfg.MaxRetries,
		MaxBodyLog:  500,
		BackoffUnit: time.Second,
	}
}

// Backoff is the wait after a failed attempt: 2^attempt units, so 2s, 4s, 8s
// with the default one-second unit.
func (c *Config) Backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * c.BackoffUnit
}
