// Package compliance cross-references the building registry against EPC
// issuance, scores non-compliance risk, and summarizes the result.
//
// Every function in this package is total: malformed or missing cells fall
// back to defaults and never produce an error.
package compliance

import (
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/compliance-cli/internal/model"
)

// smartMeterTokens are matched as substrings of the lowercased flag text.
// A bare "1" is accepted as an exact value only.
var smartMeterTokens = []string{"yes", "true"}

// numberCleaner strips thousands separators and embedded blanks.
var numberCleaner = strings.NewReplacer(",", "", " ", "", "\u00a0", "")

// CleanText trims and lowercases a text cell. Missing and falsy cells become "".
func CleanText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		if !x {
			return ""
		}
	case float64:
		if math.IsNaN(x) || x == 0 {
			return ""
		}
	case int:
		if x == 0 {
			return ""
		}
	}
	return strings.ToLower(strings.TrimSpace(model.FormatCell(v)))
}

// RegistrationKey trims a registration number without changing case.
func RegistrationKey(v any) string {
	return strings.TrimSpace(model.FormatCell(v))
}

// SafeNumber parses a numeric cell. Anything that is not a finite number
// becomes 0.
func SafeNumber(v any) float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case bool:
		return 0
	default:
		s := numberCleaner.Replace(strings.TrimSpace(model.FormatCell(v)))
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// SafeUsage is SafeNumber with negative readings clamped to 0.
func SafeUsage(v any) float64 {
	return math.Max(0, SafeNumber(v))
}

// SafeFloors parses a floor count, truncating fractions. Negative counts
// become 0.
func SafeFloors(v any) int {
	f := SafeNumber(v)
	if f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

// SmartMeterFlag reports whether the free-text flag reads as affirmative.
func SmartMeterFlag(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	s := strings.ToLower(strings.TrimSpace(model.FormatCell(v)))
	if s == "1" {
		return true
	}
	for _, tok := range smartMeterTokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

// NormalizeRegistryRow converts one raw registry row.
func NormalizeRegistryRow(raw model.RawRecord, columns []string) model.RegistryRecord {
	return model.RegistryRecord{
		Key:           RegistrationKey(raw.Get(model.ColRegistrationNumber)),
		City:          CleanText(raw.Get(model.ColCity)),
		Province:      CleanText(raw.Get(model.ColProvince)),
		Occupancy:     CleanText(raw.Get(model.ColOccupancy)),
		EntityType:    CleanText(raw.Get(model.ColEntityType)),
		OwnershipType: CleanText(raw.Get(model.ColOwnershipType)),
		Floors:        SafeFloors(raw.Get(model.ColFloors)),
		Usage: model.Usage{
			Grid:      SafeUsage(raw.Get(model.ColGridUsage)),
			Gas:       SafeUsage(raw.Get(model.ColGasUsage)),
			Liquid:    SafeUsage(raw.Get(model.ColLiquidFuelUsage)),
			Solid:     SafeUsage(raw.Get(model.ColSolidFuelUsage)),
			Renewable: SafeUsage(raw.Get(model.ColRenewableUsage)),
			Other:     SafeUsage(raw.Get(model.ColOtherUsage)),
		},
		SmartMetered: SmartMeterFlag(raw.Get(model.ColSmartMetered)),
		Source:       raw,
		Columns:      columns,
	}
}

// NormalizeRegistry converts every row of the registry upload.
func NormalizeRegistry(ds model.Dataset) []model.RegistryRecord {
	out := make([]model.RegistryRecord, len(ds.Rows))
	for i, raw := range ds.Rows {
		out[i] = NormalizeRegistryRow(raw, ds.Columns)
	}
	return out
}

// NormalizeEPC converts every row of the EPC issuance upload.
func NormalizeEPC(ds model.Dataset) []model.EPCRecord {
	out := make([]model.EPCRecord, len(ds.Rows))
	for i, raw := range ds.Rows {
		out[i] = model.EPCRecord{
			Key:       RegistrationKey(raw.Get(model.ColRegistrationNumber)),
			City:      CleanText(raw.Get(model.ColCity)),
			Province:  CleanText(raw.Get(model.ColProvince)),
			Occupancy: CleanText(raw.Get(model.ColOccupancy)),
			Source:    raw,
		}
	}
	return out
}
