package view

import (
	"github.com/sells-group/compliance-cli/internal/compliance"
	"github.com/sells-group/compliance-cli/internal/model"
)

// Page is a rendered result table.
type Page struct {
	State State `json:"state"`

	// Total is the number of analysed buildings; Matched counts the filtered set.
	Total   int `json:"total"`
	Matched int `json:"matched"`

	// Rows is the display window, highest risk first, at most State.TopN.
	Rows []model.ScoredRecord `json:"rows"`

	// Export is the full filtered set in upload order.
	Export []model.ScoredRecord `json:"-"`
}

// Render derives the page for s. It does not modify res.
func Render(s State, res *compliance.Result) Page {
	p := Page{State: s}
	if res == nil {
		return p
	}

	filtered := res.Filtered(s.Filter())
	topN := s.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	p.Total = len(res.Records)
	p.Matched = len(filtered)
	p.Rows = compliance.TopByRisk(filtered, topN)
	p.Export = filtered
	return p
}

// Truncated reports whether the display window hides matching rows.
func (p Page) Truncated() bool {
	return len(p.Rows) < p.Matched
}
