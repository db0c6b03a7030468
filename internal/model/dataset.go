// Package model defines the records that flow through the compliance pipeline.
package model

// Registry and EPC column names, as they appear in the uploaded sheets.
const (
	ColRegistrationNumber = "Registration Number"
	ColCity               = "City"
	ColProvince           = "Province"
	ColOccupancy          = "Occupancy Classification"
	ColEntityType         = "Entity Type"
	ColOwnershipType      = "Ownership Type"
	ColFloors             = "No. of Floors"
	ColGridUsage          = "Grid Usage"
	ColGasUsage           = "Gas Usage"
	ColLiquidFuelUsage    = "Liquid Fuel Usage"
	ColSolidFuelUsage     = "Solid Fuel Usage"
	ColRenewableUsage     = "Renewable Usage"
	ColOtherUsage         = "Other Usage"
	ColSmartMetered       = "Is Smart Metered?"
)

// RawRecord is one uploaded row: field name to untyped cell value.
// A missing key means the column was absent for that row.
type RawRecord map[string]any

// Get returns the value stored under col, or nil when the column is absent.
func (r RawRecord) Get(col string) any {
	if r == nil {
		return nil
	}
	return r[col]
}

// Dataset is a parsed upload. Columns keep the header order of the source.
type Dataset struct {
	Name    string      `json:"name"`
	Columns []string    `json:"columns"`
	Rows    []RawRecord `json:"rows"`
}

// Len returns the number of data rows.
func (d Dataset) Len() int {
	return len(d.Rows)
}

// HasColumn reports whether the header contains col.
func (d Dataset) HasColumn(col string) bool {
	for _, c := range d.Columns {
		if c == col {
			return true
		}
	}
	return false
}
