package compliance

import (
	"strings"

	"github.com/sells-group/compliance-cli/internal/config"
	"github.com/sells-group/compliance-cli/internal/model"
)

// Breakdown lists the points each rule contributed before clamping.
type Breakdown struct {
	NonCompliant int `json:"non_compliant"`
	Floors       int `json:"floors"`
	Grid         int `json:"grid"`
	FuelSources  int `json:"fuel_sources"`
	NoSmartMeter int `json:"no_smart_meter"`
	Occupancy    int `json:"occupancy"`
}

// Total returns the unclamped sum.
func (b Breakdown) Total() int {
	return b.NonCompliant + b.Floors + b.Grid + b.FuelSources + b.NoSmartMeter + b.Occupancy
}

// Score returns the sum clamped to [0,100].
func (b Breakdown) Score() int {
	return clampScore(b.Total())
}

// Scorer applies the rule-based risk weights.
type Scorer struct {
	cfg config.RiskConfig
}

// NewScorer creates a Scorer. Callers validate cfg through config.Validate.
func NewScorer(cfg config.RiskConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// DefaultScorer scores with the standard weights.
func DefaultScorer() *Scorer {
	return NewScorer(config.DefaultRiskConfig())
}

// Explain computes the per-rule points for one registry row.
func (s *Scorer) Explain(r model.RegistryRecord, compliant bool) Breakdown {
	var b Breakdown

	if !compliant {
		b.NonCompliant = s.cfg.NonCompliantPoints
	}

	switch {
	case r.Floors >= s.cfg.HighRiseFloors:
		b.Floors = s.cfg.HighRisePoints
	case r.Floors >= s.cfg.MidRiseFloors:
		b.Floors = s.cfg.MidRisePoints
	case r.Floors >= s.cfg.MultiStoryFloors:
		b.Floors = s.cfg.MultiStoryPoints
	}

	if r.Usage.Grid > 0 {
		b.Grid = s.cfg.GridPoints
	}

	for _, u := range []float64{r.Usage.Gas, r.Usage.Liquid, r.Usage.Solid} {
		if u > 0 {
			b.FuelSources += s.cfg.FuelSourcePoints
		}
	}

	if !r.SmartMetered {
		b.NoSmartMeter = s.cfg.NoSmartMeterPoints
	}

	for _, rule := range s.cfg.Occupancy {
		if containsAny(r.Occupancy, rule.Keywords) {
			b.Occupancy += rule.Points
		}
	}

	return b
}

// Score returns the clamped risk score for one registry row.
func (s *Scorer) Score(r model.RegistryRecord, compliant bool) int {
	return s.Explain(r, compliant).Score()
}

// Apply produces the scored record for one registry row.
func (s *Scorer) Apply(r model.RegistryRecord, compliant bool) model.ScoredRecord {
	score := s.Score(r, compliant)
	return model.ScoredRecord{
		RegistryRecord: r,
		Compliant:      compliant,
		Label:          model.LabelFor(compliant),
		RiskScore:      score,
		Category:       model.CategoryFor(score),
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func clampScore(n int) int {
	return max(model.MinRiskScore, min(model.MaxRiskScore, n))
}
