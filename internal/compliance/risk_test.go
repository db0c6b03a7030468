package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/config"
	"github.com/sells-group/compliance-cli/internal/model"
)

func hospitalRow() model.RegistryRecord {
	return model.RegistryRecord{
		Key:          "REG001",
		Floors:       12,
		Usage:        model.Usage{Grid: 500},
		SmartMetered: false,
		Occupancy:    "hospital ward",
	}
}

func TestScore_HospitalExample(t *testing.T) {
	s := DefaultScorer()

	rec := s.Apply(hospitalRow(), false)
	assert.Equal(t, 95, rec.RiskScore)
	assert.Equal(t, model.RiskHigh, rec.Category)
	assert.Equal(t, model.LabelNonCompliant, rec.Label)

	rec = s.Apply(hospitalRow(), true)
	assert.Equal(t, 45, rec.RiskScore)
	assert.Equal(t, model.RiskMedium, rec.Category)
	assert.Equal(t, model.LabelCompliant, rec.Label)
}

func TestExplain_Breakdown(t *testing.T) {
	b := DefaultScorer().Explain(hospitalRow(), false)
	assert.Equal(t, Breakdown{
		NonCompliant: 50,
		Floors:       15,
		Grid:         10,
		FuelSources:  0,
		NoSmartMeter: 10,
		Occupancy:    10,
	}, b)
	assert.Equal(t, 95, b.Total())
}

func TestScore_FloorTiers(t *testing.T) {
	s := DefaultScorer()
	tests := []struct {
		floors int
		want   int
	}{
		{0, 0}, {1, 0}, {2, 5}, {4, 5}, {5, 10}, {9, 10}, {10, 15}, {40, 15},
	}
	for _, tt := range tests {
		b := s.Explain(model.RegistryRecord{Floors: tt.floors, SmartMetered: true}, true)
		assert.Equal(t, tt.want, b.Floors, "floors %d", tt.floors)
	}
}

func TestScore_FuelSources(t *testing.T) {
	s := DefaultScorer()
	r := model.RegistryRecord{SmartMetered: true, Usage: model.Usage{Gas: 1, Liquid: 2, Solid: 3, Renewable: 9, Other: 9}}
	assert.Equal(t, 15, s.Explain(r, true).FuelSources)

	r.Usage.Liquid = 0
	assert.Equal(t, 10, s.Explain(r, true).FuelSources)
}

func TestScore_OccupancyKeywordsStack(t *testing.T) {
	s := DefaultScorer()
	tests := []struct {
		occ  string
		want int
	}{
		{"", 0},
		{"retail", 0},
		{"community health centre", 10},
		{"office", 5},
		{"school", 5},
		{"higher education office", 10},
		{"hospital office with health school", 20},
	}
	for _, tt := range tests {
		b := s.Explain(model.RegistryRecord{Occupancy: tt.occ, SmartMetered: true}, true)
		assert.Equal(t, tt.want, b.Occupancy, "occupancy %q", tt.occ)
	}
}

func TestScore_ClampedToHundred(t *testing.T) {
	s := DefaultScorer()
	r := model.RegistryRecord{
		Floors:    30,
		Usage:     model.Usage{Grid: 1, Gas: 1, Liquid: 1, Solid: 1},
		Occupancy: "hospital office school",
	}
	b := s.Explain(r, false)
	assert.Equal(t, 120, b.Total())
	assert.Equal(t, 100, s.Score(r, false))
}

func TestScore_NonComplianceDeltaIsFifty(t *testing.T) {
	s := DefaultScorer()
	rows := []model.RegistryRecord{
		{},
		{Floors: 3, SmartMetered: true},
		hospitalRow(),
		{Floors: 11, Usage: model.Usage{Grid: 1, Gas: 1}, Occupancy: "office"},
	}
	for i, r := range rows {
		non := s.Score(r, false)
		comp := s.Score(r, true)
		if non < model.MaxRiskScore {
			assert.Equal(t, 50, non-comp, "row %d", i)
		}
		assert.GreaterOrEqual(t, non, comp)
		assert.GreaterOrEqual(t, comp, 0)
		assert.LessOrEqual(t, non, 100)
	}
}

func TestNewScorer_CustomWeights(t *testing.T) {
	cfg := config.DefaultRiskConfig()
	cfg.NonCompliantPoints = 70
	cfg.Occupancy = []config.OccupancyRule{{Keywords: []string{"Warehouse"}, Points: 4}}

	s := NewScorer(cfg)
	b := s.Explain(model.RegistryRecord{Occupancy: "cold warehouse", SmartMetered: true}, false)
	require.Equal(t, 70, b.NonCompliant)
	assert.Equal(t, 4, b.Occupancy)
}
