package view

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/compliance"
	"github.com/sells-group/compliance-cli/internal/model"
)

func testResult(n int) *compliance.Result {
	registry := model.Dataset{
		Columns: []string{model.ColRegistrationNumber, model.ColProvince, model.ColFloors},
	}
	epc := model.Dataset{}
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("REG%03d", i)
		registry.Rows = append(registry.Rows, model.RawRecord{
			model.ColRegistrationNumber: key,
			model.ColProvince:           "Gauteng",
			model.ColFloors:             i,
		})
		if i%2 == 0 {
			epc.Rows = append(epc.Rows, model.RawRecord{model.ColRegistrationNumber: key})
		}
	}
	return compliance.Analyze(registry, epc, nil)
}

func TestRender_Defaults(t *testing.T) {
	res := testResult(6)
	p := Render(Default(), res)

	assert.Equal(t, 6, p.Total)
	assert.Equal(t, 6, p.Matched)
	require.Len(t, p.Rows, 6)
	assert.Len(t, p.Export, 6)
	assert.False(t, p.Truncated())

	for i := 1; i < len(p.Rows); i++ {
		assert.GreaterOrEqual(t, p.Rows[i-1].RiskScore, p.Rows[i].RiskScore)
	}
	// Export keeps upload order.
	assert.Equal(t, "REG000", p.Export[0].Key)
}

func TestRender_TopNOnlyLimitsDisplay(t *testing.T) {
	res := testResult(20)
	p := Render(Reduce(Default(), SetTopN{N: 3}), res)

	assert.Len(t, p.Rows, 3)
	assert.Len(t, p.Export, 20)
	assert.Equal(t, 20, p.Matched)
	assert.True(t, p.Truncated())
}

func TestRender_StatusFilter(t *testing.T) {
	res := testResult(10)
	s := Reduce(Default(), SetStatus{Label: string(model.LabelNonCompliant)})
	p := Render(s, res)

	assert.Equal(t, 10, p.Total)
	assert.Equal(t, 5, p.Matched)
	for _, r := range p.Export {
		assert.False(t, r.Compliant)
	}
}

func TestRender_NilResult(t *testing.T) {
	p := Render(Default(), nil)
	assert.Zero(t, p.Total)
	assert.Empty(t, p.Rows)
}

func TestRender_DoesNotModifyResult(t *testing.T) {
	res := testResult(5)
	before := append([]model.ScoredRecord(nil), res.Records...)
	Render(Reduce(Default(), SetTopN{N: 2}), res)
	assert.Equal(t, before, res.Records)
}
