package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/model"
)

func provinceRecords(province string, total, compliant int) []model.ScoredRecord {
	out := make([]model.ScoredRecord, total)
	for i := range out {
		out[i] = scored("", "", province, 10, i < compliant)
	}
	return out
}

func TestGroupRates_ExactRate(t *testing.T) {
	records := provinceRecords("gauteng", 10, 7)
	groups := GroupRates(records, DimProvince)
	require.Len(t, groups, 1)
	assert.Equal(t, GroupRate{Name: "gauteng", Total: 10, Compliant: 7, NonCompliant: 3, Rate: 0.7}, groups[0])
	assert.InDelta(t, 70.0, groups[0].Percent(), 1e-9)
}

func TestGroupRates_FirstEncounteredOrder(t *testing.T) {
	var records []model.ScoredRecord
	records = append(records, provinceRecords("limpopo", 2, 1)...)
	records = append(records, provinceRecords("gauteng", 4, 4)...)
	records = append(records, provinceRecords("limpopo", 2, 0)...)

	groups := GroupRates(records, DimProvince)
	require.Len(t, groups, 2)
	assert.Equal(t, "limpopo", groups[0].Name)
	assert.Equal(t, 4, groups[0].Total)
	assert.Equal(t, 1, groups[0].Compliant)
	assert.Equal(t, "gauteng", groups[1].Name)
}

func TestGroupRates_Empty(t *testing.T) {
	assert.Nil(t, GroupRates(nil, DimOccupancy))
}

func TestWorst_TieGoesToFirst(t *testing.T) {
	groups := []GroupRate{
		{Name: "a", Rate: 0.8},
		{Name: "b", Rate: 0.25},
		{Name: "c", Rate: 0.25},
	}
	w, ok := Worst(groups)
	require.True(t, ok)
	assert.Equal(t, "b", w.Name)

	_, ok = Worst(nil)
	assert.False(t, ok)
}

func TestSortByRate(t *testing.T) {
	groups := []GroupRate{{Name: "a", Rate: 0.1}, {Name: "b", Rate: 0.9}, {Name: "c", Rate: 0.1}}
	sorted := SortByRate(groups)
	assert.Equal(t, "b", sorted[0].Name)
	assert.Equal(t, "a", sorted[1].Name)
	assert.Equal(t, "c", sorted[2].Name)
	assert.Equal(t, "a", groups[0].Name)
}

func TestSummarize(t *testing.T) {
	records := fixtureRecords()
	records[1].SmartMetered = true

	s := Summarize(records)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 2, s.Compliant)
	assert.Equal(t, 3, s.NonCompliant)
	assert.InDelta(t, 0.4, s.ComplianceRate, 1e-9)
	assert.InDelta(t, 0.2, s.SmartMeterRate, 1e-9)
	assert.Equal(t, 2, s.ByCategory[model.RiskHigh])
	assert.Equal(t, 2, s.ByCategory[model.RiskMedium])
	assert.Equal(t, 1, s.ByCategory[model.RiskLow])
	assert.Equal(t, 3, s.ByStatus[model.LabelNonCompliant])

	empty := Summarize(nil)
	assert.Equal(t, 0, empty.Total)
	assert.Zero(t, empty.ComplianceRate)
}

func TestParseDimension(t *testing.T) {
	d, ok := ParseDimension("occupancy")
	assert.True(t, ok)
	assert.Equal(t, DimOccupancy, d)
	assert.Equal(t, model.ColOccupancy, d.Title())

	_, ok = ParseDimension("city")
	assert.False(t, ok)
}

func TestRecommendations(t *testing.T) {
	records := fixtureRecords()
	records[0].Occupancy = "hospital"
	records[1].Occupancy = "office"
	records[2].Occupancy = "office"
	records[3].Occupancy = "hospital"
	records[4].Occupancy = "school"
	records[2].SmartMetered = true

	recs := Recommendations(records)
	require.Len(t, recs, 4)
	assert.Equal(t, "Increase inspections in 'kwazulu-natal' (compliance rate: 0.0%).", recs[0])
	assert.Equal(t, "Prioritize audits for HIGH risk buildings: 2 flagged.", recs[1])
	assert.Equal(t, "Promote smart metering rollout (current smart-meter rate: 20.0%).", recs[2])
	assert.Equal(t, "Target enforcement for 'hospital' buildings (compliance rate: 0.0%).", recs[3])
}

func TestRecommendations_Empty(t *testing.T) {
	assert.Empty(t, Recommendations(nil))
	assert.Empty(t, Recommendations([]model.ScoredRecord{}))
}
