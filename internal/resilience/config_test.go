package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/compliance-cli/internal/config"
)

func TestFromAnalytics(t *testing.T) {
	p, b := FromAnalytics(config.AnalyticsConfig{
		MaxRetries:          5,
		BackoffMs:           250,
		BreakerThreshold:    2,
		BreakerCooldownSecs: 10,
	})
	assert.Equal(t, 5, p.Attempts)
	assert.Equal(t, 250*time.Millisecond, p.Initial)
	assert.Equal(t, 2, b.Threshold)
	assert.Equal(t, 10*time.Second, b.Cooldown)
}

func TestFromAnalytics_Defaults(t *testing.T) {
	p, b := FromAnalytics(config.AnalyticsConfig{})
	assert.Equal(t, DefaultRetryPolicy().Attempts, p.Attempts)
	assert.Equal(t, DefaultBreakerConfig().Cooldown, b.Cooldown)
}
