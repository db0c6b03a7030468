package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/compliance"
	"github.com/sells-group/compliance-cli/internal/dataset"
	"github.com/sells-group/compliance-cli/internal/export"
	"github.com/sells-group/compliance-cli/internal/geo"
	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/monitoring"
	"github.com/sells-group/compliance-cli/internal/view"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a registry against issued EPCs",
	Long:  "Loads the registry and EPC sheets (path or http/ftp URL), scores every registered building, and prints the summary, the riskiest buildings and policy recommendations.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		registrySrc, _ := cmd.Flags().GetString("registry")
		epcSrc, _ := cmd.Flags().GetString("epc")
		formatName, _ := cmd.Flags().GetString("format")

		format, err := dataset.ParseFormat(formatName)
		if err != nil {
			return err
		}
		var opts []dataset.LoaderOption
		if format != "" {
			opts = append(opts, dataset.WithFormat(format))
		}

		state, err := stateFromFlags(cmd)
		if err != nil {
			return err
		}

		reg, epc, err := dataset.NewLoader(cfg.Loader, opts...).LoadPair(ctx, registrySrc, epcSrc)
		if err != nil {
			return err
		}

		res := compliance.Analyze(reg, epc, compliance.NewScorer(cfg.Risk))
		page := view.Render(state, res)

		zap.L().Info("analysis complete",
			zap.Int("buildings", res.Summary.Total),
			zap.Int("matched", page.Matched),
			zap.Int("epc_only", len(res.EPCOnly)),
		)

		if alerter := monitoring.NewAlerter(cfg.Monitoring); alerter.Enabled() {
			alerter.Notify(ctx, reg.Name, res.Summary)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(map[string]any{
				"summary":         res.Summary,
				"page":            page,
				"recommendations": res.Recommendations,
			}); err != nil {
				return eris.Wrap(err, "analyze: encode json")
			}
		} else {
			formatSummary(os.Stdout, res.Summary)
			fmt.Println()
			formatPage(os.Stdout, page)
			fmt.Println()
			formatRecommendations(os.Stdout, res.Recommendations)
		}

		return writeOutputs(cmd, res, page)
	},
}

// stateFromFlags folds the filter flags into a view state. Unlike query
// parameters, unknown values are errors here.
func stateFromFlags(cmd *cobra.Command) (view.State, error) {
	search, _ := cmd.Flags().GetString("search")
	risk, _ := cmd.Flags().GetString("risk")
	status, _ := cmd.Flags().GetString("status")
	top, _ := cmd.Flags().GetInt("top")
	if top <= 0 {
		top = cfg.View.TopN
	}

	risk = strings.ToUpper(strings.TrimSpace(risk))
	if risk != compliance.All {
		if _, ok := model.ParseCategory(risk); !ok {
			return view.State{}, eris.Errorf("analyze: unknown risk category %q", risk)
		}
	}

	label, err := parseStatus(status)
	if err != nil {
		return view.State{}, err
	}

	return view.Reduce(view.WithTopN(top),
		view.SetSearch{Query: search},
		view.SetRisk{Category: risk},
		view.SetStatus{Label: label},
	), nil
}

// parseStatus accepts a full label or the short forms "compliant" and
// "non-compliant".
func parseStatus(s string) (string, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "all":
		return compliance.All, nil
	case "compliant":
		return string(model.LabelCompliant), nil
	case "non-compliant", "noncompliant":
		return string(model.LabelNonCompliant), nil
	}
	if l, ok := model.ParseLabel(strings.ToUpper(s)); ok {
		return string(l), nil
	}
	return "", eris.Errorf("analyze: unknown compliance status %q", s)
}

func writeOutputs(cmd *cobra.Command, res *compliance.Result, page view.Page) error {
	if path, _ := cmd.Flags().GetString("csv"); path != "" {
		if err := writeFile(path, func(w io.Writer) error { return export.WriteCSV(w, page.Export) }); err != nil {
			return err
		}
		zap.L().Info("wrote csv", zap.String("path", path), zap.Int("rows", len(page.Export)))
	}

	if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
		if err := writeFile(path, func(w io.Writer) error { return export.WriteWorkbook(w, res) }); err != nil {
			return err
		}
		zap.L().Info("wrote workbook", zap.String("path", path), zap.Strings("sheets", export.SheetNames(res)))
	}

	if path, _ := cmd.Flags().GetString("geojson"); path != "" {
		modeName, _ := cmd.Flags().GetString("map-mode")
		mode, err := geo.ParseMode(modeName)
		if err != nil {
			return err
		}
		provinces, err := geo.LoadProvinces(cfg.Geo.ProvincesFile)
		if err != nil {
			return err
		}
		data, err := provinces.GeoJSON(res.Records, mode)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return eris.Wrapf(err, "analyze: write %s", path)
		}
		zap.L().Info("wrote map", zap.String("path", path), zap.String("mode", string(mode)))
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "analyze: create %s", path)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "analyze: close %s", path)
	}
	return nil
}

// formatSummary writes the headline metrics to w.
func formatSummary(out io.Writer, s compliance.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total buildings:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Compliant:\t%d\n", s.Compliant)
	_, _ = fmt.Fprintf(w, "Non-compliant:\t%d\n", s.NonCompliant)
	_, _ = fmt.Fprintf(w, "Compliance rate:\t%.1f%%\n", s.ComplianceRate*100)
	_, _ = fmt.Fprintf(w, "Smart-meter rate:\t%.1f%%\n", s.SmartMeterRate*100)
	_, _ = fmt.Fprintf(w, "Risk LOW/MEDIUM/HIGH:\t%d / %d / %d\n",
		s.ByCategory[model.RiskLow], s.ByCategory[model.RiskMedium], s.ByCategory[model.RiskHigh])
	_, _ = fmt.Fprintf(w, "EPCs issued:\t%d\n", s.EPCIssued)
	_, _ = fmt.Fprintf(w, "EPC-only (not registered):\t%d\n", s.EPCNotRegistered)
	_ = w.Flush()
}

// formatPage writes the display window as a table.
func formatPage(out io.Writer, p view.Page) {
	_, _ = fmt.Fprintf(out, "Showing %d of %d matching buildings (%d total).\n", len(p.Rows), p.Matched, p.Total)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "REG_KEY\tCITY\tPROVINCE\tOCCUPANCY\tSTATUS\tSCORE\tRISK")
	_, _ = fmt.Fprintln(w, "-------\t----\t--------\t---------\t------\t-----\t----")
	for _, r := range p.Rows {
		status := "non-compliant"
		if r.Compliant {
			status = "compliant"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.Key, truncate(r.City, 20), r.Province, truncate(r.Occupancy, 24), status, r.RiskScore, r.Category)
	}
	_ = w.Flush()
}

func formatRecommendations(out io.Writer, recs []string) {
	_, _ = fmt.Fprintln(out, "Recommendations:")
	if len(recs) == 0 {
		_, _ = fmt.Fprintln(out, "  (none)")
		return
	}
	for i, r := range recs {
		_, _ = fmt.Fprintf(out, "  %d. %s\n", i+1, r)
	}
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}

func init() {
	analyzeCmd.Flags().String("registry", "", "registry sheet: path or http(s)/ftp URL")
	analyzeCmd.Flags().String("epc", "", "issued EPC sheet: path or http(s)/ftp URL")
	analyzeCmd.Flags().String("format", "", "force input format (csv, xlsx, json, zip)")
	analyzeCmd.Flags().String("search", "", "substring match on registration number, city or province")
	analyzeCmd.Flags().String("risk", compliance.All, "risk category filter (ALL, LOW, MEDIUM, HIGH)")
	analyzeCmd.Flags().String("status", compliance.All, "compliance filter (ALL, compliant, non-compliant)")
	analyzeCmd.Flags().Int("top", 0, "rows to display (default from config)")
	analyzeCmd.Flags().String("csv", "", "write the filtered buildings to this CSV file")
	analyzeCmd.Flags().String("xlsx", "", "write the full workbook report to this file")
	analyzeCmd.Flags().String("geojson", "", "write the province map to this GeoJSON file")
	analyzeCmd.Flags().String("map-mode", string(geo.ModeBuildings), "map markers (buildings, high-risk)")
	analyzeCmd.Flags().Bool("json", false, "print the result as JSON")
	_ = analyzeCmd.MarkFlagRequired("registry")
	_ = analyzeCmd.MarkFlagRequired("epc")
	rootCmd.AddCommand(analyzeCmd)
}
