package model

// Usage holds per-fuel-source consumption for a building. Values are never
// negative after normalization; unparseable cells become 0.
type Usage struct {
	Grid      float64 `json:"grid"`
	Gas       float64 `json:"gas"`
	Liquid    float64 `json:"liquid"`
	Solid     float64 `json:"solid"`
	Renewable float64 `json:"renewable"`
	Other     float64 `json:"other"`
}

// Total returns the sum of every source.
func (u Usage) Total() float64 {
	return u.Grid + u.Gas + u.Liquid + u.Solid + u.Renewable + u.Other
}

// RegistryRecord is a normalized building row from the national registry upload.
type RegistryRecord struct {
	Key           string `json:"reg_key"`
	City          string `json:"city"`
	Province      string `json:"province"`
	Occupancy     string `json:"occupancy"`
	EntityType    string `json:"entity_type"`
	OwnershipType string `json:"ownership_type"`
	Floors        int    `json:"floors"`
	Usage         Usage  `json:"usage"`
	SmartMetered  bool   `json:"smart_metered"`

	// Source is the row as uploaded; Columns is the dataset header, shared
	// between all records of one upload and never mutated.
	Source  RawRecord `json:"-"`
	Columns []string  `json:"-"`
}

// EPCRecord is a normalized row from the EPC issuance upload. Only Key takes
// part in matching; the location fields feed the EPC-only report.
type EPCRecord struct {
	Key       string    `json:"reg_key"`
	City      string    `json:"city"`
	Province  string    `json:"province"`
	Occupancy string    `json:"occupancy"`
	Source    RawRecord `json:"-"`
}
