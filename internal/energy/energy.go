// Package energy holds the display arithmetic applied to analytics
// service responses: intensities, reductions, fallbacks and benchmarks.
package energy

import (
	"math"
	"sort"
	"strings"

	"github.com/sells-group/compliance-cli/pkg/analytics"
)

const (
	// NationalEUI is the national benchmark in kWh/m².
	NationalEUI = 120.0

	// NationalBaselineKWh is the national consumption baseline.
	NationalBaselineKWh = 300_000_000.0

	// NationalTargetShare is the share of the baseline targeted for savings.
	NationalTargetShare = 0.1

	// FallbackBand is the relative half-width used when no interval is known.
	FallbackBand = 0.1
)

// ProvinceEUI is the benchmark used when the service is unreachable.
var ProvinceEUI = map[string]float64{
	"Eastern Cape":  65,
	"Free State":    70,
	"Gauteng":       75,
	"KwaZulu-Natal": 72,
	"Limpopo":       68,
	"Mpumalanga":    73,
	"Northern Cape": 80,
	"North West":    69,
	"Western Cape":  60,
}

// EUI returns energy use intensity in kWh/m². A non-positive area yields 0.
func EUI(total, area float64) float64 {
	if area <= 0 {
		return 0
	}
	return total / area
}

// ReductionPercent returns the saving of improved relative to baseline.
func ReductionPercent(baseline, improved float64) float64 {
	if baseline <= 0 {
		return 0
	}
	return (1 - improved/baseline) * 100
}

// Band is a central estimate with bounds.
type Band struct {
	Central  float64 `json:"central"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
	Fallback bool    `json:"fallback"`
}

// ConfidenceBand returns the given interval, or ±10% of central when
// either bound is missing.
func ConfidenceBand(central float64, lower, upper *float64) Band {
	if lower == nil || upper == nil {
		return Band{
			Central:  central,
			Lower:    central * (1 - FallbackBand),
			Upper:    central * (1 + FallbackBand),
			Fallback: true,
		}
	}
	return Band{Central: central, Lower: *lower, Upper: *upper}
}

// BandFromCI converts a service interval, falling back to ±10% of central
// when ci is nil.
func BandFromCI(central float64, ci *analytics.PredictionCI) Band {
	if ci == nil {
		return ConfidenceBand(central, nil, nil)
	}
	return ConfidenceBand(ci.Prediction, &ci.Lower, &ci.Upper)
}

// CentralPrediction picks the headline estimate: the CI prediction, then the
// ensemble, XGBoost, random forest and linear models, then the measured
// total.
func CentralPrediction(ci *analytics.PredictionCI, p *analytics.Predictions, total float64) float64 {
	if ci != nil && ci.Prediction != 0 {
		return ci.Prediction
	}
	if p != nil {
		for _, m := range []*analytics.ModelPrediction{p.Ensemble, p.XGBoost, p.RandomForest, p.LinearRegression} {
			if m != nil && m.Prediction != 0 {
				return m.Prediction
			}
		}
	}
	return total
}

// Benchmark returns the EUI benchmark for province. The service table wins
// over the fallback table; unknown provinces get the national figure.
// Matching ignores case.
func Benchmark(province string, service map[string]float64) float64 {
	if v, ok := lookupFold(service, province); ok {
		return v
	}
	if v, ok := lookupFold(ProvinceEUI, province); ok {
		return v
	}
	return NationalEUI
}

func lookupFold(m map[string]float64, key string) (float64, bool) {
	key = strings.TrimSpace(key)
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return 0, false
}

// Share is one fuel's part of total consumption.
type Share struct {
	Fuel    string  `json:"fuel"`
	KWh     float64 `json:"kwh"`
	Percent float64 `json:"percent"`
}

// FuelShares splits consumption into grid, gas and renewable shares. Fuels
// with no consumption are omitted; the result is sorted by size.
func FuelShares(grid, gas, renewable float64) []Share {
	total := grid + gas + renewable
	if total <= 0 {
		return nil
	}
	var out []Share
	for _, s := range []Share{{Fuel: "Grid", KWh: grid}, {Fuel: "Gas", KWh: gas}, {Fuel: "Renewable", KWh: renewable}} {
		if s.KWh <= 0 {
			continue
		}
		s.Percent = s.KWh / total * 100
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].KWh > out[j].KWh })
	return out
}

// NationalSavingsPercent returns saved as a percentage of the national
// savings target.
func NationalSavingsPercent(saved float64) float64 {
	return saved / (NationalBaselineKWh * NationalTargetShare) * 100
}

// CostPerKWh returns cost per kWh saved, 0 when nothing was saved.
func CostPerKWh(cost, saved float64) float64 {
	if saved == 0 || math.IsNaN(saved) {
		return 0
	}
	return cost / saved
}
