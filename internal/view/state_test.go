package view

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/compliance-cli/internal/compliance"
	"github.com/sells-group/compliance-cli/internal/model"
)

func TestDefault(t *testing.T) {
	s := Default()
	assert.Equal(t, "", s.Search)
	assert.Equal(t, compliance.All, s.Risk)
	assert.Equal(t, compliance.All, s.Status)
	assert.Equal(t, SectionPredictions, s.Expanded)
	assert.Equal(t, DefaultTopN, s.TopN)
	assert.True(t, s.Filter().IsZero())
}

func TestReduce(t *testing.T) {
	tests := []struct {
		name    string
		actions []Action
		want    State
	}{
		{
			name:    "search",
			actions: []Action{SetSearch{Query: "durban"}},
			want:    State{Search: "durban", Risk: "ALL", Status: "ALL", Expanded: SectionPredictions, TopN: 100},
		},
		{
			name:    "valid risk",
			actions: []Action{SetRisk{Category: "HIGH"}},
			want:    State{Risk: "HIGH", Status: "ALL", Expanded: SectionPredictions, TopN: 100},
		},
		{
			name:    "invalid risk ignored",
			actions: []Action{SetRisk{Category: "HIGH"}, SetRisk{Category: "SEVERE"}},
			want:    State{Risk: "HIGH", Status: "ALL", Expanded: SectionPredictions, TopN: 100},
		},
		{
			name:    "risk back to all",
			actions: []Action{SetRisk{Category: "LOW"}, SetRisk{Category: compliance.All}},
			want:    State{Risk: "ALL", Status: "ALL", Expanded: SectionPredictions, TopN: 100},
		},
		{
			name:    "status",
			actions: []Action{SetStatus{Label: string(model.LabelNonCompliant)}},
			want:    State{Risk: "ALL", Status: "NON-COMPLIANT (NO EPC)", Expanded: SectionPredictions, TopN: 100},
		},
		{
			name:    "invalid status ignored",
			actions: []Action{SetStatus{Label: "compliant"}},
			want:    Default(),
		},
		{
			name:    "toggle open section closes it",
			actions: []Action{ToggleSection{Section: SectionPredictions}},
			want:    State{Risk: "ALL", Status: "ALL", TopN: 100},
		},
		{
			name:    "toggle other section switches",
			actions: []Action{ToggleSection{Section: SectionMap}},
			want:    State{Risk: "ALL", Status: "ALL", Expanded: SectionMap, TopN: 100},
		},
		{
			name:    "top n",
			actions: []Action{SetTopN{N: 10}, SetTopN{N: 0}, SetTopN{N: -3}},
			want:    State{Risk: "ALL", Status: "ALL", Expanded: SectionPredictions, TopN: 10},
		},
		{
			name: "reset keeps top n",
			actions: []Action{
				SetSearch{Query: "x"}, SetRisk{Category: "LOW"}, SetTopN{N: 5},
				ToggleSection{Section: SectionCharts}, Reset{},
			},
			want: State{Risk: "ALL", Status: "ALL", Expanded: SectionPredictions, TopN: 5},
		},
		{
			name:    "nil action skipped",
			actions: []Action{nil},
			want:    Default(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reduce(Default(), tt.actions...))
		})
	}
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	s := Default()
	next := Reduce(s, SetSearch{Query: "cape"}, SetRisk{Category: "HIGH"})
	assert.Equal(t, Default(), s)
	assert.Equal(t, "cape", next.Search)
}

func TestWithTopN(t *testing.T) {
	assert.Equal(t, 25, WithTopN(25).TopN)
	assert.Equal(t, DefaultTopN, WithTopN(0).TopN)
}

func TestFromQuery(t *testing.T) {
	q := url.Values{}
	q.Set("search", "Cape")
	q.Set("risk", "MEDIUM")
	q.Set("status", "bogus")
	q.Set("top", "7")
	q.Set("section", SectionExport)

	s := FromQuery(Default(), q)
	assert.Equal(t, "Cape", s.Search)
	assert.Equal(t, "MEDIUM", s.Risk)
	assert.Equal(t, compliance.All, s.Status)
	assert.Equal(t, 7, s.TopN)
	assert.Equal(t, SectionExport, s.Expanded)
}

func TestFromQuery_BadTopIgnored(t *testing.T) {
	s := FromQuery(WithTopN(50), url.Values{"top": {"many"}})
	assert.Equal(t, 50, s.TopN)
}
