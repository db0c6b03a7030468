package resilience

import (
	"time"

	"github.com/sells-group/compliance-cli/internal/config"
)

// FromAnalytics derives the retry policy and breaker settings from the
// analytics section of the configuration.
func FromAnalytics(cfg config.AnalyticsConfig) (RetryPolicy, BreakerConfig) {
	p := DefaultRetryPolicy()
	if cfg.MaxRetries > 0 {
		p.Attempts = cfg.MaxRetries
	}
	if cfg.BackoffMs > 0 {
		p.Initial = time.Duration(cfg.BackoffMs) * time.Millisecond
	}

	b := DefaultBreakerConfig()
	if cfg.BreakerThreshold > 0 {
		b.Threshold = cfg.BreakerThreshold
	}
	if cfg.BreakerCooldownSecs > 0 {
		b.Cooldown = time.Duration(cfg.BreakerCooldownSecs) * time.Second
	}
	return p, b
}
