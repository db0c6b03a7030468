package compliance

import (
	"slices"

	"github.com/sells-group/compliance-cli/internal/model"
)

// Dimension names a registry attribute that compliance is grouped by.
type Dimension string

const (
	DimProvince  Dimension = "province"
	DimOccupancy Dimension = "occupancy"
	DimOwnership Dimension = "ownership"
	DimEntity    Dimension = "entity"
)

// Dimensions lists every supported grouping, in report order.
var Dimensions = []Dimension{DimProvince, DimOccupancy, DimOwnership, DimEntity}

// ParseDimension returns the dimension named s.
func ParseDimension(s string) (Dimension, bool) {
	d := Dimension(s)
	return d, slices.Contains(Dimensions, d)
}

// Title returns the column heading used in reports.
func (d Dimension) Title() string {
	switch d {
	case DimProvince:
		return model.ColProvince
	case DimOccupancy:
		return model.ColOccupancy
	case DimOwnership:
		return model.ColOwnershipType
	case DimEntity:
		return model.ColEntityType
	}
	return string(d)
}

func (d Dimension) value(r model.ScoredRecord) string {
	switch d {
	case DimProvince:
		return r.Province
	case DimOccupancy:
		return r.Occupancy
	case DimOwnership:
		return r.OwnershipType
	case DimEntity:
		return r.EntityType
	}
	return ""
}

// GroupRate is the compliance tally for one value of a dimension.
type GroupRate struct {
	Name         string  `json:"name"`
	Total        int     `json:"total_buildings"`
	Compliant    int     `json:"compliant_buildings"`
	NonCompliant int     `json:"non_compliant_buildings"`
	Rate         float64 `json:"compliance_rate"`
}

// Percent returns Rate scaled to 0..100.
func (g GroupRate) Percent() float64 {
	return g.Rate * 100
}

// GroupRates tallies compliance per distinct dimension value. Groups appear
// in the order their first row was encountered.
func GroupRates(records []model.ScoredRecord, dim Dimension) []GroupRate {
	if len(records) == 0 {
		return nil
	}

	index := make(map[string]int)
	var groups []GroupRate
	for _, r := range records {
		name := dim.value(r)
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, GroupRate{Name: name})
		}
		groups[i].Total++
		if r.Compliant {
			groups[i].Compliant++
		}
	}

	for i := range groups {
		g := &groups[i]
		g.NonCompliant = g.Total - g.Compliant
		g.Rate = float64(g.Compliant) / float64(g.Total)
	}
	return groups
}

// Worst returns the group with the lowest rate. Ties go to the group
// encountered first.
func Worst(groups []GroupRate) (GroupRate, bool) {
	if len(groups) == 0 {
		return GroupRate{}, false
	}
	worst := groups[0]
	for _, g := range groups[1:] {
		if g.Rate < worst.Rate {
			worst = g
		}
	}
	return worst, true
}

// SortByRate returns a copy ordered by rate descending, for display.
func SortByRate(groups []GroupRate) []GroupRate {
	out := slices.Clone(groups)
	slices.SortStableFunc(out, func(a, b GroupRate) int {
		switch {
		case a.Rate > b.Rate:
			return -1
		case a.Rate < b.Rate:
			return 1
		}
		return 0
	})
	return out
}

// Summary holds the headline counts of an analysis.
type Summary struct {
	Total            int                           `json:"total_buildings"`
	Compliant        int                           `json:"compliant_buildings"`
	NonCompliant     int                           `json:"non_compliant_buildings"`
	ComplianceRate   float64                       `json:"compliance_rate"`
	SmartMeterRate   float64                       `json:"smart_meter_rate"`
	ByCategory       map[model.RiskCategory]int    `json:"by_category"`
	ByStatus         map[model.ComplianceLabel]int `json:"by_status"`
	EPCIssued        int                           `json:"epc_issued"`
	EPCNotRegistered int                           `json:"epc_not_registered"`
}

// Summarize counts compliance, risk categories and smart meters. Rates are 0
// for an empty input.
func Summarize(records []model.ScoredRecord) Summary {
	s := Summary{
		Total: len(records),
		ByCategory: map[model.RiskCategory]int{
			model.RiskLow: 0, model.RiskMedium: 0, model.RiskHigh: 0,
		},
		ByStatus: map[model.ComplianceLabel]int{
			model.LabelCompliant: 0, model.LabelNonCompliant: 0,
		},
	}

	smart := 0
	for _, r := range records {
		if r.Compliant {
			s.Compliant++
		}
		if r.SmartMetered {
			smart++
		}
		s.ByCategory[r.Category]++
		s.ByStatus[r.Label]++
	}
	s.NonCompliant = s.Total - s.Compliant

	if s.Total > 0 {
		s.ComplianceRate = float64(s.Compliant) / float64(s.Total)
		s.SmartMeterRate = float64(smart) / float64(s.Total)
	}
	return s
}
