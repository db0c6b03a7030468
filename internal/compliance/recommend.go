package compliance

import (
	"fmt"

	"github.com/sells-group/compliance-cli/internal/model"
)

// Recommendations returns the policy call-to-actions in fixed order: worst
// province, HIGH-risk count, smart-meter adoption, worst occupancy type.
// An empty input yields no recommendations.
func Recommendations(records []model.ScoredRecord) []string {
	if len(records) == 0 {
		return nil
	}

	var recs []string

	if wp, ok := Worst(GroupRates(records, DimProvince)); ok {
		recs = append(recs, fmt.Sprintf("Increase inspections in '%s' (compliance rate: %.1f%%).", wp.Name, wp.Percent()))
	}

	high := 0
	smart := 0
	for _, r := range records {
		if r.Category == model.RiskHigh {
			high++
		}
		if r.SmartMetered {
			smart++
		}
	}
	recs = append(recs, fmt.Sprintf("Prioritize audits for HIGH risk buildings: %d flagged.", high))

	smartRate := float64(smart) / float64(len(records)) * 100
	recs = append(recs, fmt.Sprintf("Promote smart metering rollout (current smart-meter rate: %.1f%%).", smartRate))

	if wo, ok := Worst(GroupRates(records, DimOccupancy)); ok {
		recs = append(recs, fmt.Sprintf("Target enforcement for '%s' buildings (compliance rate: %.1f%%).", wo.Name, wo.Percent()))
	}

	return recs
}
