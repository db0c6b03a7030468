package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/compliance-cli/internal/energy"
	"github.com/sells-group/compliance-cli/pkg/analytics"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Query the remote energy prediction service",
	Long:  "Calls the prediction service for a single building and prints the derived metrics.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("analytics")
	},
}

func newAnalyticsClient() analytics.Client {
	return analytics.FromConfig(cfg.Analytics)
}

// buildingFlags registers the consumption flags shared by the predictors.
func buildingFlags(c *cobra.Command) {
	c.Flags().Float64("size", 0, "floor area in m²")
	c.Flags().Float64("floors", 1, "number of floors")
	c.Flags().Float64("grid", 0, "grid electricity, kWh")
	c.Flags().Float64("gas", 0, "gas, kWh")
	c.Flags().Float64("renewable", 0, "renewable energy, kWh")
	c.Flags().String("province", "", "province name")
}

func featuresFromFlags(cmd *cobra.Command) analytics.Features {
	var f analytics.Features
	f.SizeM2, _ = cmd.Flags().GetFloat64("size")
	f.Floors, _ = cmd.Flags().GetFloat64("floors")
	f.Grid, _ = cmd.Flags().GetFloat64("grid")
	f.Gas, _ = cmd.Flags().GetFloat64("gas")
	f.Renewable, _ = cmd.Flags().GetFloat64("renewable")
	return f
}

// -- analytics predict --

type predictionReport struct {
	Total     float64
	EUI       float64
	Benchmark float64
	Band      energy.Band
	Models    *analytics.Predictions
	Shares    []energy.Share
}

// predictBuilding asks for model predictions, the confidence interval and
// the province benchmark concurrently. Only the model predictions are
// required; the others fall back to local figures.
func predictBuilding(ctx context.Context, c analytics.Client, f analytics.Features, province string) (*predictionReport, error) {
	var (
		preds *analytics.PredictResponse
		ci    *analytics.PredictionCI
		bench *analytics.ProvinceBenchmark
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		preds, err = c.Predict(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		if ci, err = c.PredictionCI(gctx, f); err != nil {
			zap.L().Warn("confidence interval unavailable, using ±10%", zap.Error(err))
			ci = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if bench, err = c.ProvinceBenchmark(gctx); err != nil {
			zap.L().Warn("province benchmark unavailable, using fallback table", zap.Error(err))
			bench = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := f.Total()
	central := energy.CentralPrediction(ci, &preds.Predictions, total)
	band := energy.BandFromCI(central, ci)

	var service map[string]float64
	if bench != nil {
		service = bench.Map()
	}

	return &predictionReport{
		Total:     total,
		EUI:       energy.EUI(total, f.SizeM2),
		Benchmark: energy.Benchmark(province, service),
		Band:      band,
		Models:    &preds.Predictions,
		Shares:    energy.FuelShares(f.Grid, f.Gas, f.Renewable),
	}, nil
}

func formatPrediction(out io.Writer, r *predictionReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Measured total:\t%.0f kWh\n", r.Total)
	_, _ = fmt.Fprintf(w, "EUI:\t%.1f kWh/m²\n", r.EUI)
	_, _ = fmt.Fprintf(w, "Province benchmark:\t%.1f kWh/m²\n", r.Benchmark)
	_, _ = fmt.Fprintf(w, "National benchmark:\t%.1f kWh/m²\n", energy.NationalEUI)
	band := ""
	if r.Band.Fallback {
		band = " (±10%)"
	}
	_, _ = fmt.Fprintf(w, "Predicted:\t%.0f kWh [%.0f - %.0f]%s\n", r.Band.Central, r.Band.Lower, r.Band.Upper, band)
	for _, m := range []struct {
		name string
		p    *analytics.ModelPrediction
	}{
		{"Ensemble", r.Models.Ensemble},
		{"XGBoost", r.Models.XGBoost},
		{"Random forest", r.Models.RandomForest},
		{"Linear regression", r.Models.LinearRegression},
	} {
		if m.p != nil {
			_, _ = fmt.Fprintf(w, "  %s:\t%.0f kWh\n", m.name, m.p.Prediction)
		}
	}
	for _, s := range r.Shares {
		_, _ = fmt.Fprintf(w, "%s share:\t%.1f%%\n", s.Fuel, s.Percent)
	}
	_ = w.Flush()
}

var analyticsPredictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict annual consumption with confidence interval and benchmark",
	RunE: func(cmd *cobra.Command, _ []string) error {
		province, _ := cmd.Flags().GetString("province")
		r, err := predictBuilding(cmd.Context(), newAnalyticsClient(), featuresFromFlags(cmd), province)
		if err != nil {
			return err
		}
		formatPrediction(os.Stdout, r)
		return nil
	},
}

// -- analytics classify --

var analyticsClassifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Predict the occupancy class of a building",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := featuresFromFlags(cmd)
		req := analytics.ClassifyRequest{
			Size: f.SizeM2, Floors: f.Floors, Grid: f.Grid, Gas: f.Gas, Renewable: f.Renewable,
		}
		req.Province, _ = cmd.Flags().GetString("province")
		req.EntityType, _ = cmd.Flags().GetString("entity-type")
		req.OwnershipType, _ = cmd.Flags().GetString("ownership-type")
		req.BillingType, _ = cmd.Flags().GetString("billing-type")
		req.MeteringType, _ = cmd.Flags().GetString("metering-type")
		req.Liquid, _ = cmd.Flags().GetFloat64("liquid")
		req.Solid, _ = cmd.Flags().GetFloat64("solid")
		req.Other, _ = cmd.Flags().GetFloat64("other")

		resp, err := newAnalyticsClient().Classify(cmd.Context(), req)
		if err != nil {
			return err
		}
		formatClassification(os.Stdout, resp)
		return nil
	},
}

func formatClassification(out io.Writer, r *analytics.ClassifyResponse) {
	_, _ = fmt.Fprintf(out, "Classification: %s (%.1f%%)\n", r.Classification, r.Confidence()*100)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, k := range sortedKeys(r.Probabilities) {
		_, _ = fmt.Fprintf(w, "  %s\t%.1f%%\n", k, r.Probabilities[k]*100)
	}
	_ = w.Flush()
}

// sortedKeys orders map keys by value, highest first, then by name.
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(m[b], m[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return keys
}

// -- analytics anomaly --

var analyticsAnomalyCmd = &cobra.Command{
	Use:   "anomaly",
	Short: "Check a building's intensities for anomalies",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := featuresFromFlags(cmd)
		req := analytics.AnomalyRequest{
			EnergyPerM2:          energy.EUI(f.Total(), f.SizeM2),
			FuelIntensity:        energy.EUI(f.Gas, f.SizeM2),
			ElectricityIntensity: energy.EUI(f.Grid, f.SizeM2),
		}
		resp, err := newAnalyticsClient().DetectAnomaly(cmd.Context(), req)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(os.Stdout, "Isolation forest: %s\nDBSCAN: %s\n", resp.IsolationForest, resp.DBSCAN)
		for _, r := range resp.Recommendations {
			_, _ = fmt.Fprintf(os.Stdout, "  - %s\n", r)
		}
		return nil
	},
}

// -- analytics epc --

var analyticsEPCCmd = &cobra.Command{
	Use:   "epc",
	Short: "Estimate savings from an efficiency improvement",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var req analytics.EPCRequest
		req.BaselineEnergy, _ = cmd.Flags().GetFloat64("baseline")
		req.EfficiencyImprovement, _ = cmd.Flags().GetFloat64("improvement")
		req.Tariff, _ = cmd.Flags().GetFloat64("tariff")
		req.EmissionFactor, _ = cmd.Flags().GetFloat64("emission-factor")

		resp, err := newAnalyticsClient().EPCSavings(cmd.Context(), req)
		if err != nil {
			return err
		}
		formatEPC(os.Stdout, resp)
		return nil
	},
}

func formatEPC(out io.Writer, r *analytics.EPCResponse) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Energy saved:\t%.0f kWh\n", r.EnergySaved)
	_, _ = fmt.Fprintf(w, "Cost savings:\tR %.2f\n", r.CostSavings)
	_, _ = fmt.Fprintf(w, "CO2 avoided:\t%.1f kg\n", r.CO2Avoided)
	_, _ = fmt.Fprintf(w, "Cost per kWh saved:\tR %.2f\n", energy.CostPerKWh(r.CostSavings, r.EnergySaved))
	_, _ = fmt.Fprintf(w, "Share of national target:\t%.4f%%\n", energy.NationalSavingsPercent(r.EnergySaved))
	_ = w.Flush()
	if r.Interpretation != "" {
		_, _ = fmt.Fprintln(out, r.Interpretation)
	}
}

// -- analytics efficiency --

var analyticsEfficiencyCmd = &cobra.Command{
	Use:   "efficiency",
	Short: "Model consumption across EPC rating levels",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var req analytics.EfficiencyRequest
		req.FloorArea, _ = cmd.Flags().GetFloat64("size")
		req.YearBuilt, _ = cmd.Flags().GetInt("year-built")
		req.Floors, _ = cmd.Flags().GetInt("floors")
		req.EPCRating, _ = cmd.Flags().GetInt("epc-rating")
		req.InsulationLevel, _ = cmd.Flags().GetFloat64("insulation")
		req.HVACEfficiency, _ = cmd.Flags().GetFloat64("hvac")

		resp, err := newAnalyticsClient().EnergyEfficiency(cmd.Context(), req)
		if err != nil {
			return err
		}
		formatEfficiency(os.Stdout, resp)
		return nil
	},
}

func formatEfficiency(out io.Writer, r *analytics.EfficiencyResponse) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Baseline:\t%.0f kWh\n", r.BaselineEnergy)
	_, _ = fmt.Fprintf(w, "Improved:\t%.0f kWh\n", r.ImprovedEnergy)
	_, _ = fmt.Fprintf(w, "Reduction:\t%.1f%%\n", energy.ReductionPercent(r.BaselineEnergy, r.ImprovedEnergy))
	_, _ = fmt.Fprintf(w, "Cost saved:\tR %.2f\n", r.CostSaved)
	_, _ = fmt.Fprintf(w, "Carbon saved:\t%.1f kg\n", r.CarbonSaved)
	for i, lvl := range r.EPCLevels {
		if i < len(r.Predictions) {
			_, _ = fmt.Fprintf(w, "  EPC level %d:\t%.0f kWh\n", lvl, r.Predictions[i])
		}
	}
	_ = w.Flush()
	if r.Interpretation != "" {
		_, _ = fmt.Fprintln(out, r.Interpretation)
	}
}

// -- analytics solar --

var analyticsSolarCmd = &cobra.Command{
	Use:   "solar",
	Short: "Screen a building for rooftop solar",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := featuresFromFlags(cmd)
		req := analytics.RenewableRequest{
			Size:                   f.SizeM2,
			TotalEnergyConsumption: f.Total(),
			GridUsage:              f.Grid,
			RenewableUsage:         f.Renewable,
		}
		req.Province, _ = cmd.Flags().GetString("province")

		resp, err := newAnalyticsClient().RenewablePotential(cmd.Context(), req)
		if err != nil {
			return err
		}
		formatSolar(os.Stdout, resp)
		return nil
	},
}

func formatSolar(out io.Writer, r *analytics.RenewableResponse) {
	verdict := "not a solar candidate"
	if r.Prediction.IsCandidate {
		verdict = "solar candidate"
	}
	_, _ = fmt.Fprintf(out, "Verdict: %s\n", verdict)

	a := r.Analysis
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Irradiance:\t%.2f kWh/m²/day\n", a.IrradianceKWhM2Day)
	_, _ = fmt.Fprintf(w, "Roof area:\t%.0f m²\n", a.RoofAreaM2)
	_, _ = fmt.Fprintf(w, "Potential:\t%.0f kWh/year\n", a.PotentialKWhYear)
	_, _ = fmt.Fprintf(w, "System size:\t%.1f kW\n", a.EstimatedSystemKW)
	_, _ = fmt.Fprintf(w, "Installation:\tR %.0f\n", a.InstallationCostZAR)
	_, _ = fmt.Fprintf(w, "Annual savings:\tR %.0f\n", a.AnnualSavingsZAR)
	_, _ = fmt.Fprintf(w, "Payback:\t%.1f years\n", a.PaybackYears)
	_, _ = fmt.Fprintf(w, "Grid dependency:\t%.1f%%\n", a.GridDependencyRatio*100)
	_ = w.Flush()

	if r.Prediction.Recommendation != "" {
		_, _ = fmt.Fprintln(out, r.Prediction.Recommendation)
	}
	if len(r.Prediction.Reasons) > 0 {
		_, _ = fmt.Fprintf(out, "Reasons: %s\n", strings.Join(r.Prediction.Reasons, "; "))
	}
}

// -- analytics benchmark --

var analyticsBenchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "List the province EUI benchmarks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		table := energy.ProvinceEUI
		bench, err := newAnalyticsClient().ProvinceBenchmark(cmd.Context())
		if err != nil {
			zap.L().Warn("province benchmark unavailable, using fallback table", zap.Error(err))
		} else {
			table = bench.Map()
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "PROVINCE\tEUI_KWH_M2\tVS_NATIONAL")
		for _, p := range sortedKeys(table) {
			_, _ = fmt.Fprintf(w, "%s\t%.1f\t%+.1f%%\n", p, table[p], (table[p]/energy.NationalEUI-1)*100)
		}
		return w.Flush()
	},
}

func init() {
	for _, c := range []*cobra.Command{analyticsPredictCmd, analyticsClassifyCmd, analyticsAnomalyCmd, analyticsSolarCmd} {
		buildingFlags(c)
	}

	analyticsClassifyCmd.Flags().String("entity-type", "", "entity type")
	analyticsClassifyCmd.Flags().String("ownership-type", "", "ownership type")
	analyticsClassifyCmd.Flags().String("billing-type", "", "billing type")
	analyticsClassifyCmd.Flags().String("metering-type", "", "metering type")
	analyticsClassifyCmd.Flags().Float64("liquid", 0, "liquid fuel, kWh")
	analyticsClassifyCmd.Flags().Float64("solid", 0, "solid fuel, kWh")
	analyticsClassifyCmd.Flags().Float64("other", 0, "other energy, kWh")

	analyticsEPCCmd.Flags().Float64("baseline", 0, "baseline consumption, kWh")
	analyticsEPCCmd.Flags().Float64("improvement", 0.1, "efficiency improvement as a fraction")
	analyticsEPCCmd.Flags().Float64("tariff", 2.5, "tariff, R/kWh")
	analyticsEPCCmd.Flags().Float64("emission-factor", 0.95, "kg CO2 per kWh")

	analyticsEfficiencyCmd.Flags().Float64("size", 0, "floor area in m²")
	analyticsEfficiencyCmd.Flags().Int("year-built", 2000, "year of construction")
	analyticsEfficiencyCmd.Flags().Int("floors", 1, "number of floors")
	analyticsEfficiencyCmd.Flags().Int("epc-rating", 4, "current EPC rating level")
	analyticsEfficiencyCmd.Flags().Float64("insulation", 0.5, "insulation level, 0-1")
	analyticsEfficiencyCmd.Flags().Float64("hvac", 0.7, "HVAC efficiency, 0-1")

	analyticsCmd.AddCommand(analyticsPredictCmd)
	analyticsCmd.AddCommand(analyticsClassifyCmd)
	analyticsCmd.AddCommand(analyticsAnomalyCmd)
	analyticsCmd.AddCommand(analyticsEPCCmd)
	analyticsCmd.AddCommand(analyticsEfficiencyCmd)
	analyticsCmd.AddCommand(analyticsSolarCmd)
	analyticsCmd.AddCommand(analyticsBenchmarkCmd)
	rootCmd.AddCommand(analyticsCmd)
}
