package analytics

// ClassifyRequest describes a building for occupancy classification.
type ClassifyRequest struct {
	EntityType    string  `json:"entity_type"`
	OwnershipType string  `json:"ownership_type"`
	BillingType   string  `json:"billing_type"`
	MeteringType  string  `json:"metering_type"`
	Province      string  `json:"province"`
	Size          float64 `json:"size"`
	Floors        float64 `json:"floors"`
	Grid          float64 `json:"grid"`
	Gas           float64 `json:"gas"`
	Renewable     float64 `json:"renewable"`
	Liquid        float64 `json:"liquid"`
	Solid         float64 `json:"solid"`
	Other         float64 `json:"other"`
}

// ClassifyResponse is the predicted occupancy class and per-class
// probabilities.
type ClassifyResponse struct {
	Classification string             `json:"classification"`
	Probabilities  map[string]float64 `json:"probabilities"`
}

// Confidence returns the probability of the predicted class.
func (r *ClassifyResponse) Confidence() float64 {
	return r.Probabilities[r.Classification]
}

// Features is the model input vector: size, floors, grid, gas and
// renewable consumption, in that order.
type Features struct {
	SizeM2    float64
	Floors    float64
	Grid      float64
	Gas       float64
	Renewable float64
}

// Vector returns the features in model order.
func (f Features) Vector() []float64 {
	return []float64{f.SizeM2, f.Floors, f.Grid, f.Gas, f.Renewable}
}

// Total returns the summed consumption.
func (f Features) Total() float64 {
	return f.Grid + f.Gas + f.Renewable
}

// ModelAll asks the service for every model's prediction.
const ModelAll = "all"

type predictRequest struct {
	Features []float64 `json:"features"`
	Model    string    `json:"model,omitempty"`
}

// ModelPrediction is one model's estimate in kWh.
type ModelPrediction struct {
	Prediction float64 `json:"prediction"`
}

// Predictions holds the per-model estimates. Missing models are nil.
type Predictions struct {
	Ensemble         *ModelPrediction `json:"ensemble_average,omitempty"`
	RandomForest     *ModelPrediction `json:"random_forest,omitempty"`
	XGBoost          *ModelPrediction `json:"xgboost,omitempty"`
	LinearRegression *ModelPrediction `json:"linear_regression,omitempty"`
}

// PredictResponse wraps the model estimates.
type PredictResponse struct {
	Predictions Predictions `json:"predictions"`
}

// PredictionCI is a central estimate with its confidence interval.
type PredictionCI struct {
	Success    bool    `json:"success"`
	Prediction float64 `json:"prediction_kwh"`
	Lower      float64 `json:"ci_lower_kwh"`
	Upper      float64 `json:"ci_upper_kwh"`
}

// ProvinceBenchmark lists energy use intensity per province. Provinces and
// EUI are index-aligned.
type ProvinceBenchmark struct {
	Success   bool      `json:"success"`
	Provinces []string  `json:"provinces"`
	EUI       []float64 `json:"eui_kwh_m2"`
}

// Map returns the benchmark keyed by province name.
func (b *ProvinceBenchmark) Map() map[string]float64 {
	out := make(map[string]float64, len(b.Provinces))
	for i, p := range b.Provinces {
		if i < len(b.EUI) {
			out[p] = b.EUI[i]
		}
	}
	return out
}

// AnomalyRequest holds the intensities checked for anomalies, all in kWh/m².
type AnomalyRequest struct {
	EnergyPerM2          float64 `json:"energy_per_m2"`
	FuelIntensity        float64 `json:"fuel_intensity"`
	ElectricityIntensity float64 `json:"electricity_intensity"`
}

// AnomalyResponse carries the verdicts of both detectors.
type AnomalyResponse struct {
	IsolationForest string         `json:"isolation_forest_result"`
	DBSCAN          string         `json:"dbscan_result"`
	Recommendations []string       `json:"recommendations"`
	Input           AnomalyRequest `json:"input"`
}

// IsAnomaly reports the isolation forest verdict.
func (r *AnomalyResponse) IsAnomaly() bool {
	return r.IsolationForest == "Anomaly"
}

// EPCRequest describes an efficiency intervention.
type EPCRequest struct {
	BaselineEnergy        float64 `json:"baseline_energy"`
	EfficiencyImprovement float64 `json:"efficiency_improvement"`
	Tariff                float64 `json:"tariff"`
	EmissionFactor        float64 `json:"emission_factor"`
}

// EPCResponse is the saving an intervention yields.
type EPCResponse struct {
	EnergySaved    float64 `json:"energy_saved"`
	CostSavings    float64 `json:"cost_savings"`
	CO2Avoided     float64 `json:"co2_avoided"`
	Interpretation string  `json:"interpretation"`
}

// EfficiencyRequest describes a building for the efficiency model.
type EfficiencyRequest struct {
	FloorArea       float64 `json:"floor_area"`
	YearBuilt       int     `json:"year_built"`
	Floors          int     `json:"no_floors"`
	EPCRating       int     `json:"epc_rating"`
	InsulationLevel float64 `json:"insulation_level"`
	HVACEfficiency  float64 `json:"hvac_efficiency"`
}

// EfficiencyResponse is the baseline and improved consumption plus the
// curve across EPC levels.
type EfficiencyResponse struct {
	BaselineEnergy float64   `json:"baseline_energy"`
	ImprovedEnergy float64   `json:"improved_energy"`
	EnergySaved    float64   `json:"energy_saved"`
	CostSaved      float64   `json:"cost_saved"`
	CarbonSaved    float64   `json:"carbon_saved"`
	Interpretation string    `json:"interpretation"`
	EPCLevels      []int     `json:"epc_levels"`
	Predictions    []float64 `json:"predictions"`
}

// RenewableRequest describes a building for the solar screen.
type RenewableRequest struct {
	Size                   float64 `json:"size"`
	TotalEnergyConsumption float64 `json:"total_energy_consumption"`
	GridUsage              float64 `json:"grid_usage"`
	RenewableUsage         float64 `json:"renewable_usage"`
	Province               string  `json:"province"`
}

// SolarAnalysis is the site assessment.
type SolarAnalysis struct {
	IrradianceKWhM2Day  float64 `json:"solar_irradiance_kwh_m2_day"`
	RoofAreaM2          float64 `json:"roof_area_m2"`
	PotentialKWhYear    float64 `json:"solar_potential_kwh_year"`
	EstimatedSystemKW   float64 `json:"estimated_system_kw"`
	InstallationCostZAR float64 `json:"installation_cost_zar"`
	AnnualSavingsZAR    float64 `json:"annual_savings_zar"`
	PaybackYears        float64 `json:"payback_years"`
	GridDependencyRatio float64 `json:"grid_dependency_ratio"`
	RenewableGapKWh     float64 `json:"renewable_gap_kwh"`
}

// SolarVerdict is the candidate decision with its reasons.
type SolarVerdict struct {
	IsCandidate    bool     `json:"is_solar_candidate"`
	Recommendation string   `json:"recommendation"`
	Reasons        []string `json:"reasons"`
}

// RenewableResponse is the solar screening result.
type RenewableResponse struct {
	Analysis   SolarAnalysis `json:"solar_analysis"`
	Prediction SolarVerdict  `json:"prediction"`
}
