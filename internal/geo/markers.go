package geo

import (
	"fmt"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/compliance-cli/internal/compliance"
	"github.com/sells-group/compliance-cli/internal/model"
)

// Mode selects what the map counts per province.
type Mode string

const (
	ModeBuildings Mode = "buildings"
	ModeHighRisk  Mode = "high-risk"
)

// ParseMode returns the mode named s. An empty string selects ModeBuildings.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeBuildings:
		return ModeBuildings, nil
	case ModeHighRisk:
		return ModeHighRisk, nil
	}
	return "", eris.Errorf("geo: unknown map mode %q", s)
}

// Marker is one province circle on the map.
type Marker struct {
	Province string  `json:"province"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Count    int     `json:"count"`
	Radius   float64 `json:"radius"`
	Popup    string  `json:"popup"`
}

const maxRadius = 30

var titleCaser = cases.Title(language.English)

// Markers counts records per province for mode, largest count first.
// Provinces missing from the table are left off the map.
func (p *Provinces) Markers(records []model.ScoredRecord, mode Mode) []Marker {
	divisor, label := 50.0, "Buildings"
	if mode == ModeHighRisk {
		divisor, label = 30.0, "HIGH Risk"
		high := compliance.Filter{Risk: string(model.RiskHigh), Status: compliance.All}
		records = high.Apply(records)
	}

	groups := compliance.GroupRates(records, compliance.DimProvince)
	slices.SortStableFunc(groups, func(a, b compliance.GroupRate) int {
		return b.Total - a.Total
	})

	var markers []Marker
	for _, g := range groups {
		prov, ok := p.Lookup(g.Name)
		if !ok {
			continue
		}
		markers = append(markers, Marker{
			Province: prov.Name,
			Lat:      prov.Lat,
			Lon:      prov.Lon,
			Count:    g.Total,
			Radius:   min(maxRadius, 5+float64(g.Total)/divisor),
			Popup:    fmt.Sprintf("%s | %s: %d", titleCaser.String(prov.Name), label, g.Total),
		})
	}
	return markers
}

// FeatureCollection encodes markers as GeoJSON points, one feature per
// province.
func (p *Provinces) FeatureCollection(markers []Marker) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(markers))}
	for _, m := range markers {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       m.Province,
			Geometry: geom.NewPointFlat(geom.XY, []float64{m.Lon, m.Lat}).SetSRID(4326),
			Properties: map[string]any{
				"province": m.Province,
				"count":    m.Count,
				"radius":   m.Radius,
				"popup":    m.Popup,
			},
		})
	}
	return fc
}

// GeoJSON renders the map for mode as an encoded FeatureCollection.
func (p *Provinces) GeoJSON(records []model.ScoredRecord, mode Mode) ([]byte, error) {
	data, err := p.FeatureCollection(p.Markers(records, mode)).MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode geojson")
	}
	return data, nil
}
