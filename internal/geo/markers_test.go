package geo

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/model"
)

func records(province string, n int, category model.RiskCategory) []model.ScoredRecord {
	out := make([]model.ScoredRecord, n)
	for i := range out {
		out[i] = model.ScoredRecord{
			RegistryRecord: model.RegistryRecord{Key: fmt.Sprintf("%s-%d", province, i), Province: province},
			Category:       category,
			Label:          model.LabelNonCompliant,
		}
	}
	return out
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeBuildings, m)

	m, err = ParseMode("high-risk")
	require.NoError(t, err)
	assert.Equal(t, ModeHighRisk, m)

	_, err = ParseMode("heat")
	assert.Error(t, err)
}

func TestMarkers_Buildings(t *testing.T) {
	var recs []model.ScoredRecord
	recs = append(recs, records("western cape", 100, model.RiskLow)...)
	recs = append(recs, records("gauteng", 2000, model.RiskHigh)...)
	recs = append(recs, records("atlantis", 5, model.RiskHigh)...)

	markers := DefaultProvinces().Markers(recs, ModeBuildings)
	require.Len(t, markers, 2)

	assert.Equal(t, "gauteng", markers[0].Province)
	assert.Equal(t, 2000, markers[0].Count)
	assert.Equal(t, 30.0, markers[0].Radius)
	assert.Equal(t, "Gauteng | Buildings: 2000", markers[0].Popup)

	assert.Equal(t, "western cape", markers[1].Province)
	assert.InDelta(t, 7.0, markers[1].Radius, 1e-9)
	assert.Equal(t, "Western Cape | Buildings: 100", markers[1].Popup)
}

func TestMarkers_HighRisk(t *testing.T) {
	var recs []model.ScoredRecord
	recs = append(recs, records("limpopo", 10, model.RiskLow)...)
	recs = append(recs, records("free state", 15, model.RiskHigh)...)

	markers := DefaultProvinces().Markers(recs, ModeHighRisk)
	require.Len(t, markers, 1)
	assert.Equal(t, "free state", markers[0].Province)
	assert.Equal(t, 15, markers[0].Count)
	assert.InDelta(t, 5.5, markers[0].Radius, 1e-9)
	assert.Equal(t, "Free State | HIGH Risk: 15", markers[0].Popup)
}

func TestMarkers_Empty(t *testing.T) {
	assert.Empty(t, DefaultProvinces().Markers(nil, ModeBuildings))
}

func TestGeoJSON(t *testing.T) {
	p := DefaultProvinces()
	data, err := p.GeoJSON(records("limpopo", 3, model.RiskHigh), ModeBuildings)
	require.NoError(t, err)

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Type     string `json:"type"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 1)

	f := doc.Features[0]
	assert.Equal(t, "Point", f.Geometry.Type)
	assert.InDeltaSlice(t, []float64{29.4179, -23.4013}, f.Geometry.Coordinates, 1e-9)
	assert.Equal(t, "limpopo", f.Properties["province"])
	assert.Equal(t, 3.0, f.Properties["count"])
}
