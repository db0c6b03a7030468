// Package view holds the result-table state as an immutable value and
// renders pages from it. State changes go through Reduce.
package view

import (
	"net/url"
	"strconv"

	"github.com/sells-group/compliance-cli/internal/compliance"
	"github.com/sells-group/compliance-cli/internal/model"
)

// Collapsible result sections.
const (
	SectionPredictions = "predictions"
	SectionBuilding    = "building"
	SectionCharts      = "charts"
	SectionMap         = "map"
	SectionExport      = "export"
)

// DefaultTopN bounds the display table when no size is configured.
const DefaultTopN = 100

// State is the table view state. Values are copied, never shared.
type State struct {
	Search   string `json:"search"`
	Risk     string `json:"risk"`
	Status   string `json:"status"`
	Expanded string `json:"expanded,omitempty"`
	TopN     int    `json:"top_n"`
}

// Default returns the initial state: no filters, first section open.
func Default() State {
	return State{
		Risk:     compliance.All,
		Status:   compliance.All,
		Expanded: SectionPredictions,
		TopN:     DefaultTopN,
	}
}

// WithTopN returns Default with a custom table size.
func WithTopN(n int) State {
	s := Default()
	if n > 0 {
		s.TopN = n
	}
	return s
}

// Filter returns the compliance filter the state describes.
func (s State) Filter() compliance.Filter {
	return compliance.Filter{Search: s.Search, Risk: s.Risk, Status: s.Status}
}

// Action is a state transition.
type Action interface {
	apply(State) State
}

// SetSearch replaces the free-text search.
type SetSearch struct{ Query string }

// SetRisk selects a risk category or compliance.All.
type SetRisk struct{ Category string }

// SetStatus selects a compliance label or compliance.All.
type SetStatus struct{ Label string }

// ToggleSection opens a section, or closes it if it is already open.
type ToggleSection struct{ Section string }

// SetTopN resizes the display table.
type SetTopN struct{ N int }

// Reset restores the default filters and keeps the table size.
type Reset struct{}

func (a SetSearch) apply(s State) State {
	s.Search = a.Query
	return s
}

func (a SetRisk) apply(s State) State {
	if a.Category == compliance.All {
		s.Risk = compliance.All
		return s
	}
	if c, ok := model.ParseCategory(a.Category); ok {
		s.Risk = string(c)
	}
	return s
}

func (a SetStatus) apply(s State) State {
	if a.Label == compliance.All {
		s.Status = compliance.All
		return s
	}
	if l, ok := model.ParseLabel(a.Label); ok {
		s.Status = string(l)
	}
	return s
}

func (a ToggleSection) apply(s State) State {
	if s.Expanded == a.Section {
		s.Expanded = ""
	} else {
		s.Expanded = a.Section
	}
	return s
}

func (a SetTopN) apply(s State) State {
	if a.N > 0 {
		s.TopN = a.N
	}
	return s
}

func (Reset) apply(s State) State {
	return WithTopN(s.TopN)
}

// Reduce returns the state after applying every action in order. Actions
// carrying unknown values leave the state unchanged.
func Reduce(s State, actions ...Action) State {
	for _, a := range actions {
		if a == nil {
			continue
		}
		s = a.apply(s)
	}
	return s
}

// FromQuery folds the search, risk, status, section and top query
// parameters into base.
func FromQuery(base State, q url.Values) State {
	var actions []Action
	if q.Has("search") {
		actions = append(actions, SetSearch{Query: q.Get("search")})
	}
	if v := q.Get("risk"); v != "" {
		actions = append(actions, SetRisk{Category: v})
	}
	if v := q.Get("status"); v != "" {
		actions = append(actions, SetStatus{Label: v})
	}
	if v := q.Get("section"); v != "" {
		actions = append(actions, ToggleSection{Section: v})
	}
	if v := q.Get("top"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			actions = append(actions, SetTopN{N: n})
		}
	}
	return Reduce(base, actions...)
}
