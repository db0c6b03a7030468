package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Risk       RiskConfig       `yaml:"risk" mapstructure:"risk"`
	View       ViewConfig       `yaml:"view" mapstructure:"view"`
	Loader     LoaderConfig     `yaml:"loader" mapstructure:"loader"`
	Analytics  AnalyticsConfig  `yaml:"analytics" mapstructure:"analytics"`
	Geo        GeoConfig        `yaml:"geo" mapstructure:"geo"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// RiskConfig holds the rule-based risk score weights. Points are summed and
// clamped to [0,100].
type RiskConfig struct {
	NonCompliantPoints int `yaml:"non_compliant_points" mapstructure:"non_compliant_points"`

	// Floor tiers, checked from the tallest down.
	HighRiseFloors   int `yaml:"high_rise_floors" mapstructure:"high_rise_floors"`
	HighRisePoints   int `yaml:"high_rise_points" mapstructure:"high_rise_points"`
	MidRiseFloors    int `yaml:"mid_rise_floors" mapstructure:"mid_rise_floors"`
	MidRisePoints    int `yaml:"mid_rise_points" mapstructure:"mid_rise_points"`
	MultiStoryFloors int `yaml:"multi_story_floors" mapstructure:"multi_story_floors"`
	MultiStoryPoints int `yaml:"multi_story_points" mapstructure:"multi_story_points"`

	GridPoints         int `yaml:"grid_points" mapstructure:"grid_points"`
	FuelSourcePoints   int `yaml:"fuel_source_points" mapstructure:"fuel_source_points"`
	NoSmartMeterPoints int `yaml:"no_smart_meter_points" mapstructure:"no_smart_meter_points"`

	Occupancy []OccupancyRule `yaml:"occupancy" mapstructure:"occupancy"`
}

// OccupancyRule awards Points when the occupancy text contains any keyword.
type OccupancyRule struct {
	Keywords []string `yaml:"keywords" mapstructure:"keywords"`
	Points   int      `yaml:"points" mapstructure:"points"`
}

// ViewConfig configures the result table.
type ViewConfig struct {
	TopN int `yaml:"top_n" mapstructure:"top_n"`
}

// LoaderConfig configures remote dataset downloads.
type LoaderConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// AnalyticsConfig points at the remote prediction service. The service is
// spread across hosts, so each feature has its own base URL.
type AnalyticsConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	ClassifyURL   string  `yaml:"classify_url" mapstructure:"classify_url"`
	PredictURL    string  `yaml:"predict_url" mapstructure:"predict_url"`
	BenchmarkURL  string  `yaml:"benchmark_url" mapstructure:"benchmark_url"`
	AnomalyURL    string  `yaml:"anomaly_url" mapstructure:"anomaly_url"`
	EPCURL        string  `yaml:"epc_url" mapstructure:"epc_url"`
	EfficiencyURL string  `yaml:"efficiency_url" mapstructure:"efficiency_url"`
	RenewableURL  string  `yaml:"renewable_url" mapstructure:"renewable_url"`

	// Retry and circuit breaker settings, applied per feature endpoint.
	MaxRetries          int `yaml:"max_retries" mapstructure:"max_retries"`
	BackoffMs           int `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// GeoConfig configures the province map.
type GeoConfig struct {
	ProvincesFile string `yaml:"provinces_file" mapstructure:"provinces_file"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	MaxAnalyses    int      `yaml:"max_analyses" mapstructure:"max_analyses"`
}

// MonitoringConfig configures threshold alerts on finished analyses.
// Alerts are only sent when WebhookURL is set.
type MonitoringConfig struct {
	WebhookURL         string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	MinComplianceRate  float64 `yaml:"min_compliance_rate" mapstructure:"min_compliance_rate"`
	MaxHighRiskShare   float64 `yaml:"max_high_risk_share" mapstructure:"max_high_risk_share"`
	MaxEPCOnly         int     `yaml:"max_epc_only" mapstructure:"max_epc_only"`
	MinBuildings       int     `yaml:"min_buildings" mapstructure:"min_buildings"`
	WebhookTimeoutSecs int     `yaml:"webhook_timeout_secs" mapstructure:"webhook_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COMPLIANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("server.max_analyses", 32)
	v.SetDefault("view.top_n", 100)
	v.SetDefault("monitoring.min_compliance_rate", 0.5)
	v.SetDefault("monitoring.max_high_risk_share", 0.25)
	v.SetDefault("monitoring.min_buildings", 5)
	v.SetDefault("monitoring.webhook_timeout_secs", 10)
	v.SetDefault("loader.timeout_secs", 60)
	v.SetDefault("loader.max_retries", 3)
	v.SetDefault("loader.user_agent", "compliance-cli/1.0")
	v.SetDefault("loader.rate_per_sec", 5)
	v.SetDefault("analytics.timeout_secs", 30)
	v.SetDefault("analytics.rate_per_sec", 2)
	v.SetDefault("analytics.classify_url", "http://localhost:5000")
	v.SetDefault("analytics.predict_url", "http://13.51.164.20")
	v.SetDefault("analytics.benchmark_url", "http://13.49.72.166")
	v.SetDefault("analytics.anomaly_url", "http://13.49.72.166")
	v.SetDefault("analytics.epc_url", "http://13.49.72.166")
	v.SetDefault("analytics.efficiency_url", "https://13.51.130.19")
	v.SetDefault("analytics.renewable_url", "http://localhost:5000")
	v.SetDefault("analytics.max_retries", 3)
	v.SetDefault("analytics.backoff_ms", 500)
	v.SetDefault("analytics.breaker_threshold", 5)
	v.SetDefault("analytics.breaker_cooldown_secs", 30)

	d := DefaultRiskConfig()
	v.SetDefault("risk.non_compliant_points", d.NonCompliantPoints)
	v.SetDefault("risk.high_rise_floors", d.HighRiseFloors)
	v.SetDefault("risk.high_rise_points", d.HighRisePoints)
	v.SetDefault("risk.mid_rise_floors", d.MidRiseFloors)
	v.SetDefault("risk.mid_rise_points", d.MidRisePoints)
	v.SetDefault("risk.multi_story_floors", d.MultiStoryFloors)
	v.SetDefault("risk.multi_story_points", d.MultiStoryPoints)
	v.SetDefault("risk.grid_points", d.GridPoints)
	v.SetDefault("risk.fuel_source_points", d.FuelSourcePoints)
	v.SetDefault("risk.no_smart_meter_points", d.NoSmartMeterPoints)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Slices of structs do not merge with defaults; fall back wholesale.
	if len(cfg.Risk.Occupancy) == 0 {
		cfg.Risk.Occupancy = d.Occupancy
	}

	return &cfg, nil
}

// DefaultRiskConfig returns the standard rule weights.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		NonCompliantPoints: 50,

		HighRiseFloors:   10,
		HighRisePoints:   15,
		MidRiseFloors:    5,
		MidRisePoints:    10,
		MultiStoryFloors: 2,
		MultiStoryPoints: 5,

		GridPoints:         10,
		FuelSourcePoints:   5,
		NoSmartMeterPoints: 10,

		Occupancy: []OccupancyRule{
			{Keywords: []string{"hospital", "health"}, Points: 10},
			{Keywords: []string{"office"}, Points: 5},
			{Keywords: []string{"school", "education"}, Points: 5},
		},
	}
}

// Validate checks the settings a command mode depends on.
// Modes: "analyze", "serve", "analytics".
func (c *Config) Validate(mode string) error {
	var errs []string

	errs = append(errs, c.Risk.validate()...)
	if c.View.TopN <= 0 {
		errs = append(errs, "view.top_n must be > 0")
	}

	if m := c.Monitoring; m.MinComplianceRate < 0 || m.MinComplianceRate > 1 || m.MaxHighRiskShare < 0 || m.MaxHighRiskShare > 1 {
		errs = append(errs, "monitoring rates must be within [0,1]")
	}

	switch mode {
	case "analyze":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.MaxUploadMB <= 0 {
			errs = append(errs, "server.max_upload_mb must be > 0")
		}
		if c.Server.MaxAnalyses <= 0 {
			errs = append(errs, "server.max_analyses must be > 0")
		}
	case "analytics":
		if c.Analytics.RatePerSec <= 0 {
			errs = append(errs, "analytics.rate_per_sec must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

func (r RiskConfig) validate() []string {
	var errs []string
	weights := map[string]int{
		"non_compliant_points":  r.NonCompliantPoints,
		"high_rise_points":      r.HighRisePoints,
		"mid_rise_points":       r.MidRisePoints,
		"multi_story_points":    r.MultiStoryPoints,
		"grid_points":           r.GridPoints,
		"fuel_source_points":    r.FuelSourcePoints,
		"no_smart_meter_points": r.NoSmartMeterPoints,
	}
	for _, name := range []string{
		"non_compliant_points", "high_rise_points", "mid_rise_points",
		"multi_story_points", "grid_points", "fuel_source_points", "no_smart_meter_points",
	} {
		if weights[name] < 0 {
			errs = append(errs, fmt.Sprintf("risk.%s must be >= 0", name))
		}
	}
	if !(r.HighRiseFloors > r.MidRiseFloors && r.MidRiseFloors > r.MultiStoryFloors && r.MultiStoryFloors > 0) {
		errs = append(errs, "risk floor tiers must be strictly decreasing and > 0")
	}
	for i, rule := range r.Occupancy {
		if rule.Points < 0 {
			errs = append(errs, fmt.Sprintf("risk.occupancy[%d].points must be >= 0", i))
		}
		if len(rule.Keywords) == 0 {
			errs = append(errs, fmt.Sprintf("risk.occupancy[%d].keywords must not be empty", i))
		}
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
