package compliance

import (
	"slices"
	"strings"

	"github.com/sells-group/compliance-cli/internal/model"
)

// All disables a categorical filter.
const All = "ALL"

// Filter selects scored records. Active predicates are combined with AND.
// An empty Risk or Status behaves like All.
type Filter struct {
	Search string `json:"search,omitempty"`
	Risk   string `json:"risk,omitempty"`
	Status string `json:"status,omitempty"`
}

// Match reports whether r satisfies every active predicate.
func (f Filter) Match(r model.ScoredRecord) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(r.Key), q) &&
			!strings.Contains(r.City, q) &&
			!strings.Contains(r.Province, q) {
			return false
		}
	}
	if f.Risk != "" && f.Risk != All && string(r.Category) != f.Risk {
		return false
	}
	if f.Status != "" && f.Status != All && string(r.Label) != f.Status {
		return false
	}
	return true
}

// IsZero reports whether the filter selects everything.
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Search) == "" &&
		(f.Risk == "" || f.Risk == All) &&
		(f.Status == "" || f.Status == All)
}

// Apply returns the matching records in input order. The input is not modified.
func (f Filter) Apply(records []model.ScoredRecord) []model.ScoredRecord {
	out := make([]model.ScoredRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// SortByRisk returns a copy ordered by risk score descending. Equal scores
// keep their input order.
func SortByRisk(records []model.ScoredRecord) []model.ScoredRecord {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b model.ScoredRecord) int {
		return b.RiskScore - a.RiskScore
	})
	return out
}

// TopByRisk returns at most n records ordered by risk score descending.
// It is for display; exports use the full filtered set.
func TopByRisk(records []model.ScoredRecord, n int) []model.ScoredRecord {
	out := SortByRisk(records)
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
