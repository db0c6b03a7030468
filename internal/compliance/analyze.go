package compliance

import (
	"github.com/sells-group/compliance-cli/internal/model"
)

// Result is one complete analysis of a registry/EPC pair. It is never
// mutated after Analyze returns; a new upload produces a new Result.
type Result struct {
	Records         []model.ScoredRecord      `json:"records"`
	EPCOnly         []model.EPCRecord         `json:"epc_only"`
	Summary         Summary                   `json:"summary"`
	Groups          map[Dimension][]GroupRate `json:"groups"`
	Recommendations []string                  `json:"recommendations"`
}

// Analyze runs normalize, match, score and aggregate over a dataset pair.
func Analyze(registry, epc model.Dataset, scorer *Scorer) *Result {
	if scorer == nil {
		scorer = DefaultScorer()
	}

	regRows := NormalizeRegistry(registry)
	epcRows := NormalizeEPC(epc)

	keys := NewKeySet(epcRows)
	flags := Match(regRows, keys)

	records := make([]model.ScoredRecord, len(regRows))
	for i, r := range regRows {
		records[i] = scorer.Apply(r, flags[i])
	}

	res := &Result{
		Records:         records,
		EPCOnly:         EPCOnly(epcRows, regRows),
		Summary:         Summarize(records),
		Groups:          make(map[Dimension][]GroupRate, len(Dimensions)),
		Recommendations: Recommendations(records),
	}
	res.Summary.EPCIssued = keys.Len()
	res.Summary.EPCNotRegistered = len(res.EPCOnly)

	for _, d := range Dimensions {
		res.Groups[d] = GroupRates(records, d)
	}
	return res
}

// Filtered applies f to the analysed records.
func (r *Result) Filtered(f Filter) []model.ScoredRecord {
	return f.Apply(r.Records)
}
