package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/compliance-cli/internal/compliance"
	"github.com/sells-group/compliance-cli/internal/model"
)

// Workbook sheet names.
const (
	SheetBuildings       = "Compliance_Buildings"
	SheetRecommendations = "Recommendations"
	SheetEPCOnly         = "EPC_Only_Not_Registered"
)

// summarySheets maps each grouping to its sheet.
var summarySheets = []struct {
	dim   compliance.Dimension
	sheet string
}{
	{compliance.DimProvince, "Province_Summary"},
	{compliance.DimOccupancy, "Occupancy_Summary"},
	{compliance.DimOwnership, "Ownership_Summary"},
	{compliance.DimEntity, "Entity_Summary"},
}

var summaryHeader = []string{"total_buildings", "compliant_buildings", "non_compliant_buildings", "compliance_rate_%"}

// SheetNames lists the sheets WriteWorkbook produces for res, in order.
// A summary sheet is only present when the upload carried its column.
func SheetNames(res *compliance.Result) []string {
	names := []string{SheetBuildings}
	for _, s := range summarySheets {
		if hasColumn(res, s.dim.Title()) {
			names = append(names, s.sheet)
		}
	}
	return append(names, SheetRecommendations, SheetEPCOnly)
}

// WriteWorkbook writes the full multi-sheet report for res.
func WriteWorkbook(w io.Writer, res *compliance.Result) error {
	if res == nil {
		return eris.New("export: nil result")
	}

	f := xlsx.NewFile()

	if err := addBuildings(f, compliance.SortByRisk(res.Records)); err != nil {
		return err
	}

	for _, s := range summarySheets {
		if !hasColumn(res, s.dim.Title()) {
			continue
		}
		if err := addSummary(f, s.sheet, s.dim, res.Groups[s.dim]); err != nil {
			return err
		}
	}

	sheet, err := f.AddSheet(SheetRecommendations)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", SheetRecommendations)
	}
	addStringRow(sheet, []string{"Policy Recommendations"})
	for _, rec := range res.Recommendations {
		addStringRow(sheet, []string{rec})
	}

	sheet, err = f.AddSheet(SheetEPCOnly)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", SheetEPCOnly)
	}
	addStringRow(sheet, []string{model.FieldRegKey, "city", "province", "occupancy"})
	for _, e := range res.EPCOnly {
		addStringRow(sheet, []string{e.Key, e.City, e.Province, e.Occupancy})
	}

	return eris.Wrap(f.Write(w), "export: write workbook")
}

func addBuildings(f *xlsx.File, records []model.ScoredRecord) error {
	sheet, err := f.AddSheet(SheetBuildings)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", SheetBuildings)
	}
	if len(records) == 0 {
		return nil
	}

	header := records[0].Fields()
	names := make([]string, len(header))
	for i, fl := range header {
		names[i] = fl.Name
	}
	addStringRow(sheet, names)

	for _, r := range records {
		row := sheet.AddRow()
		for _, fl := range r.Fields() {
			cell := row.AddCell()
			switch fl.Name {
			case model.FieldRiskScore:
				cell.SetInt(r.RiskScore)
			case model.FieldFloorsNum:
				cell.SetInt(r.Floors)
			case model.FieldHasEPC:
				cell.SetBool(r.Compliant)
			case model.FieldSmartMetered:
				cell.SetBool(r.SmartMetered)
			default:
				cell.SetString(fl.Value)
			}
		}
	}
	return nil
}

// addSummary writes one group table, highest compliance rate first.
func addSummary(f *xlsx.File, name string, dim compliance.Dimension, groups []compliance.GroupRate) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", name)
	}
	addStringRow(sheet, append([]string{dim.Title()}, summaryHeader...))

	for _, g := range compliance.SortByRate(groups) {
		row := sheet.AddRow()
		row.AddCell().SetString(g.Name)
		row.AddCell().SetInt(g.Total)
		row.AddCell().SetInt(g.Compliant)
		row.AddCell().SetInt(g.NonCompliant)
		row.AddCell().SetFloat(g.Percent())
	}
	return nil
}

func addStringRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func hasColumn(res *compliance.Result, col string) bool {
	if res == nil || len(res.Records) == 0 {
		return false
	}
	for _, c := range res.Records[0].Columns {
		if c == col {
			return true
		}
	}
	return false
}
