// Package dataset turns registry and EPC sheets from disk, HTTP, FTP or an
// upload into model.Dataset values.
package dataset

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/compliance-cli/internal/fetcher"
	"github.com/sells-group/compliance-cli/internal/model"
)

// Format is a sheet encoding.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
	FormatZIP  Format = "zip"
)

// ParseFormat validates a format name. Empty means "infer".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); f {
	case "", FormatCSV, FormatXLSX, FormatJSON, FormatZIP:
		return f, nil
	default:
		return "", eris.Errorf("dataset: unsupported format %q", s)
	}
}

// FormatFromName infers the format from a file name or URL path.
func FormatFromName(name string) (Format, error) {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return "", eris.Errorf("dataset: cannot infer format of %q", name)
	}
	f, err := ParseFormat(ext)
	if err != nil {
		return "", err
	}
	return f, nil
}

// Parse decodes an in-memory sheet. An empty format is inferred from name.
func Parse(ctx context.Context, name string, format Format, data []byte) (model.Dataset, error) {
	if format == "" {
		var err error
		if format, err = FormatFromName(name); err != nil {
			return model.Dataset{}, err
		}
	}

	switch format {
	case FormatCSV:
		t, err := fetcher.ReadCSV(ctx, bytes.NewReader(data))
		if err != nil {
			return model.Dataset{}, eris.Wrapf(err, "dataset: parse %s", name)
		}
		return FromTable(name, t), nil

	case FormatXLSX:
		t, err := fetcher.ReadXLSXBytes(data, fetcher.XLSXOptions{})
		if err != nil {
			return model.Dataset{}, eris.Wrapf(err, "dataset: parse %s", name)
		}
		return FromTable(name, t), nil

	case FormatJSON:
		recs, err := fetcher.DecodeJSONRecords(ctx, bytes.NewReader(data))
		if err != nil {
			return model.Dataset{}, eris.Wrapf(err, "dataset: parse %s", name)
		}
		return FromRecords(name, recs), nil

	case FormatZIP:
		m, err := fetcher.ExtractZIPSheet(data, 0)
		if err != nil {
			return model.Dataset{}, eris.Wrapf(err, "dataset: parse %s", name)
		}
		inner, err := FormatFromName(m.Name)
		if err != nil {
			return model.Dataset{}, err
		}
		ds, err := Parse(ctx, m.Name, inner, m.Data)
		if err != nil {
			return model.Dataset{}, err
		}
		ds.Name = name
		return ds, nil
	}
	return model.Dataset{}, eris.Errorf("dataset: unsupported format %q", format)
}

// FromTable maps a header plus string rows onto a dataset. Header names are
// made unique; short rows leave trailing columns missing and extra cells
// are dropped.
func FromTable(name string, t *fetcher.Table) model.Dataset {
	cols := uniqueColumns(t.Header)
	ds := model.Dataset{Name: name, Columns: cols, Rows: make([]model.RawRecord, 0, len(t.Rows))}
	for _, row := range t.Rows {
		rec := make(model.RawRecord, len(cols))
		for i, col := range cols {
			if i >= len(row) {
				break
			}
			rec[col] = row[i]
		}
		ds.Rows = append(ds.Rows, rec)
	}
	return ds
}

// FromRecords maps decoded JSON objects onto a dataset. Keys are trimmed
// like sheet headers.
func FromRecords(name string, recs *fetcher.Records) model.Dataset {
	cols := make([]string, 0, len(recs.Columns))
	seen := make(map[string]bool, len(recs.Columns))
	for _, c := range recs.Columns {
		c = strings.TrimSpace(c)
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}

	ds := model.Dataset{Name: name, Columns: cols, Rows: make([]model.RawRecord, 0, len(recs.Rows))}
	for _, row := range recs.Rows {
		rec := make(model.RawRecord, len(row))
		for k, v := range row {
			rec[strings.TrimSpace(k)] = v
		}
		ds.Rows = append(ds.Rows, rec)
	}
	return ds
}

// uniqueColumns names blank headers "Unnamed: i" and suffixes repeats with
// ".1", ".2" and so on, the way spreadsheet tools export them.
func uniqueColumns(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		name := h
		for n := 1; used[name]; n++ {
			name = fmt.Sprintf("%s.%d", h, n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}
