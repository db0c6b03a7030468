// Package export writes analysed records to CSV and XLSX.
package export

import (
	"bufio"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/compliance-cli/internal/model"
)

var quoteEscaper = strings.NewReplacer(`"`, `""`)

// WriteCSV writes records as CSV. The header comes from the first record's
// fields and every value is double-quoted. Nothing is written for an empty
// slice.
func WriteCSV(w io.Writer, records []model.ScoredRecord) error {
	if len(records) == 0 {
		return nil
	}

	bw := bufio.NewWriter(w)
	header := records[0].Fields()
	names := make([]string, len(header))
	for i, f := range header {
		names[i] = f.Name
	}
	if err := writeQuotedLine(bw, names); err != nil {
		return err
	}

	values := make([]string, 0, len(names))
	for _, r := range records {
		values = values[:0]
		for _, f := range r.Fields() {
			values = append(values, f.Value)
		}
		if err := writeQuotedLine(bw, values); err != nil {
			return err
		}
	}

	return eris.Wrap(bw.Flush(), "export: flush csv")
}

func writeQuotedLine(w *bufio.Writer, values []string) error {
	for i, v := range values {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return eris.Wrap(err, "export: write csv")
			}
		}
		if _, err := w.WriteString(`"` + quoteEscaper.Replace(v) + `"`); err != nil {
			return eris.Wrap(err, "export: write csv")
		}
	}
	_, err := w.WriteString("\n")
	return eris.Wrap(err, "export: write csv")
}
