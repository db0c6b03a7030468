package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Server.MaxUploadMB)
	assert.Equal(t, 100, cfg.View.TopN)
	assert.Equal(t, 3, cfg.Loader.MaxRetries)
	assert.Equal(t, "http://13.51.164.20", cfg.Analytics.PredictURL)
	assert.Equal(t, 3, cfg.Analytics.MaxRetries)
	assert.Equal(t, 30, cfg.Analytics.BreakerCooldownSecs)
	assert.Equal(t, 0.5, cfg.Monitoring.MinComplianceRate)
	assert.Empty(t, cfg.Monitoring.WebhookURL)
	assert.Equal(t, DefaultRiskConfig(), cfg.Risk)
	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
  format: console
server:
  port: 9090
risk:
  grid_points: 20
  occupancy:
    - keywords: [warehouse]
      points: 3
view:
  top_n: 25
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 25, cfg.View.TopN)
	assert.Equal(t, 20, cfg.Risk.GridPoints)
	require.Len(t, cfg.Risk.Occupancy, 1)
	assert.Equal(t, []string{"warehouse"}, cfg.Risk.Occupancy[0].Keywords)
	// Defaults still apply for unset values
	assert.Equal(t, 50, cfg.Risk.NonCompliantPoints)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("COMPLIANCE_LOG_LEVEL", "warn")
	t.Setenv("COMPLIANCE_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Risk = DefaultRiskConfig()
	cfg.View.TopN = 100
	cfg.Server.Port = 8080
	cfg.Server.MaxUploadMB = 50
	cfg.Server.MaxAnalyses = 32
	cfg.Analytics.RatePerSec = 2
	return cfg
}

func TestValidate_Modes(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("analyze"))
	assert.NoError(t, cfg.Validate("serve"))
	assert.NoError(t, cfg.Validate("analytics"))

	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	// Port is irrelevant outside serve mode.
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidateRisk_NegativeWeights(t *testing.T) {
	cfg := validDefaults()
	cfg.Risk.GridPoints = -1
	cfg.Risk.Occupancy[1].Points = -5

	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "risk.grid_points must be >= 0")
	assert.Contains(t, err.Error(), "risk.occupancy[1].points must be >= 0")
}

func TestValidateRisk_FloorTiers(t *testing.T) {
	cfg := validDefaults()
	cfg.Risk.MidRiseFloors = 12

	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floor tiers")
}

func TestValidateRisk_EmptyKeywords(t *testing.T) {
	cfg := validDefaults()
	cfg.Risk.Occupancy = append(cfg.Risk.Occupancy, OccupancyRule{Points: 1})

	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keywords must not be empty")
}

func TestValidate_TopN(t *testing.T) {
	cfg := validDefaults()
	cfg.View.TopN = 0
	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "view.top_n")
}

func TestValidate_MonitoringRates(t *testing.T) {
	cfg := validDefaults()
	cfg.Monitoring.MaxHighRiskShare = 1.5

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring rates")
}
