package model

import (
	"strconv"
)

// ComplianceLabel is the display form of the compliance flag.
type ComplianceLabel string

const (
	LabelCompliant    ComplianceLabel = "COMPLIANT (EPC ISSUED)"
	LabelNonCompliant ComplianceLabel = "NON-COMPLIANT (NO EPC)"
)

// LabelFor maps the compliance flag to its label.
func LabelFor(compliant bool) ComplianceLabel {
	if compliant {
		return LabelCompliant
	}
	return LabelNonCompliant
}

// ParseLabel returns the label matching s exactly.
func ParseLabel(s string) (ComplianceLabel, bool) {
	switch ComplianceLabel(s) {
	case LabelCompliant, LabelNonCompliant:
		return ComplianceLabel(s), true
	}
	return "", false
}

// RiskCategory buckets a risk score.
type RiskCategory string

const (
	RiskLow    RiskCategory = "LOW"
	RiskMedium RiskCategory = "MEDIUM"
	RiskHigh   RiskCategory = "HIGH"
)

// Category breakpoints. Scores below MediumRiskFloor are LOW, below
// HighRiskFloor are MEDIUM, anything else is HIGH.
const (
	MediumRiskFloor = 30
	HighRiskFloor   = 60

	MinRiskScore = 0
	MaxRiskScore = 100
)

// RiskCategories lists the categories from lowest to highest.
var RiskCategories = []RiskCategory{RiskLow, RiskMedium, RiskHigh}

// CategoryFor maps a score to its category.
func CategoryFor(score int) RiskCategory {
	switch {
	case score < MediumRiskFloor:
		return RiskLow
	case score < HighRiskFloor:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ParseCategory returns the category matching s exactly.
func ParseCategory(s string) (RiskCategory, bool) {
	switch RiskCategory(s) {
	case RiskLow, RiskMedium, RiskHigh:
		return RiskCategory(s), true
	}
	return "", false
}

// ScoredRecord is a registry row after matching and scoring.
type ScoredRecord struct {
	RegistryRecord
	Compliant bool            `json:"has_epc"`
	Label     ComplianceLabel `json:"compliance_status"`
	RiskScore int             `json:"risk_score"`
	Category  RiskCategory    `json:"risk_category"`
}

// Derived export columns appended after the uploaded ones.
const (
	FieldRegKey       = "reg_key"
	FieldHasEPC       = "has_epc"
	FieldStatus       = "compliance_status"
	FieldFloorsNum    = "floors_num"
	FieldSmartMetered = "smart_metered_flag"
	FieldRiskScore    = "risk_score_rule"
	FieldRiskCategory = "risk_category_rule"
)

// Field is one named export cell.
type Field struct {
	Name  string
	Value string
}

// Fields returns the export cells: the uploaded columns in header order,
// followed by the derived columns. Derived names win over uploaded columns of
// the same name.
func (r ScoredRecord) Fields() []Field {
	derived := []Field{
		{FieldRegKey, r.Key},
		{FieldHasEPC, strconv.FormatBool(r.Compliant)},
		{FieldStatus, string(r.Label)},
		{FieldFloorsNum, strconv.Itoa(r.Floors)},
		{FieldSmartMetered, strconv.FormatBool(r.SmartMetered)},
		{FieldRiskScore, strconv.Itoa(r.RiskScore)},
		{FieldRiskCategory, string(r.Category)},
	}
	taken := make(map[string]bool, len(derived))
	for _, f := range derived {
		taken[f.Name] = true
	}

	out := make([]Field, 0, len(r.Columns)+len(derived))
	for _, col := range r.Columns {
		if taken[col] {
			continue
		}
		out = append(out, Field{Name: col, Value: FormatCell(r.Source.Get(col))})
	}
	return append(out, derived...)
}
