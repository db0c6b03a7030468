package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/config"
	"github.com/sells-group/compliance-cli/internal/resilience"
)

func fastRetry(attempts int) resilience.RetryPolicy {
	return resilience.RetryPolicy{Attempts: attempts, Initial: time.Millisecond, Max: 2 * time.Millisecond}
}

func allAt(url string) Endpoints {
	return Endpoints{
		Classify: url, Predict: url, Benchmark: url, Anomaly: url,
		EPC: url, Efficiency: url, Renewable: url,
	}
}

func TestClassify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/classify", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req ClassifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gauteng", req.Province)
		assert.Equal(t, 1200.0, req.Size)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"classification":"Office","probabilities":{"Office":0.8,"School":0.2}}`))
	}))
	defer srv.Close()

	c := NewClient(allAt(srv.URL), WithKey("secret"))
	resp, err := c.Classify(context.Background(), ClassifyRequest{Province: "gauteng", Size: 1200})
	require.NoError(t, err)
	assert.Equal(t, "Office", resp.Classification)
	assert.InDelta(t, 0.8, resp.Confidence(), 1e-9)
}

func TestPredict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/predict", r.URL.Path)
		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []float64{500, 3, 1000, 200, 50}, req.Features)
		assert.Equal(t, ModelAll, req.Model)
		w.Write([]byte(`{"predictions":{"ensemble_average":{"prediction":1234.5},"xgboost":{"prediction":1200}}}`))
	}))
	defer srv.Close()

	c := NewClient(allAt(srv.URL))
	resp, err := c.Predict(context.Background(), Features{SizeM2: 500, Floors: 3, Grid: 1000, Gas: 200, Renewable: 50})
	require.NoError(t, err)
	require.NotNil(t, resp.Predictions.Ensemble)
	assert.Equal(t, 1234.5, resp.Predictions.Ensemble.Prediction)
	assert.Nil(t, resp.Predictions.RandomForest)
}

func TestPredictionCI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/prediction-ci", r.URL.Path)
		w.Write([]byte(`{"success":true,"prediction_kwh":1000,"ci_lower_kwh":900,"ci_upper_kwh":1150}`))
	}))
	defer srv.Close()

	c := NewClient(Endpoints{Benchmark: srv.URL})
	resp, err := c.PredictionCI(context.Background(), Features{SizeM2: 100})
	require.NoError(t, err)
	assert.Equal(t, 900.0, resp.Lower)
	assert.Equal(t, 1150.0, resp.Upper)
}

func TestPredictionCI_NotSuccessful(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"success":false}`))
	}))
	defer srv.Close()

	_, err := NewClient(allAt(srv.URL)).PredictionCI(context.Background(), Features{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service reported failure")
}

func TestProvinceBenchmark(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/province-benchmark", r.URL.Path)
		w.Write([]byte(`{"success":true,"provinces":["Gauteng","Limpopo","Extra"],"eui_kwh_m2":[75.5,68]}`))
	}))
	defer srv.Close()

	resp, err := NewClient(allAt(srv.URL + "/")).ProvinceBenchmark(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Gauteng": 75.5, "Limpopo": 68}, resp.Map())
}

func TestDetectAnomaly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"isolation_forest_result":"Anomaly","dbscan_result":"Normal","recommendations":["Audit HVAC"]}`))
	}))
	defer srv.Close()

	resp, err := NewClient(allAt(srv.URL)).DetectAnomaly(context.Background(), AnomalyRequest{EnergyPerM2: 400})
	require.NoError(t, err)
	assert.True(t, resp.IsAnomaly())
	assert.Equal(t, []string{"Audit HVAC"}, resp.Recommendations)
}

func TestEPCSavingsAndEfficiency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/epc-analysis":
			w.Write([]byte(`{"energy_saved":100,"cost_savings":250,"co2_avoided":95,"interpretation":"ok"}`))
		case "/api/energy-efficiency":
			var req EfficiencyRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, 4, req.Floors)
			w.Write([]byte(`{"baseline_energy":1000,"improved_energy":800,"epc_levels":[1,2],"predictions":[900,800]}`))
		case "/api/renewable-energy-potential":
			w.Write([]byte(`{"solar_analysis":{"payback_years":6.5},"prediction":{"is_solar_candidate":true,"reasons":["sunny"]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(allAt(srv.URL))
	ctx := context.Background()

	epc, err := c.EPCSavings(ctx, EPCRequest{BaselineEnergy: 1000})
	require.NoError(t, err)
	assert.Equal(t, 250.0, epc.CostSavings)

	eff, err := c.EnergyEfficiency(ctx, EfficiencyRequest{Floors: 4})
	require.NoError(t, err)
	assert.Equal(t, 800.0, eff.ImprovedEnergy)
	assert.Equal(t, []int{1, 2}, eff.EPCLevels)

	ren, err := c.RenewablePotential(ctx, RenewableRequest{Province: "limpopo"})
	require.NoError(t, err)
	assert.True(t, ren.Prediction.IsCandidate)
	assert.Equal(t, 6.5, ren.Analysis.PaybackYears)
}

func TestServiceErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"features must have 5 values"}`))
	}))
	defer srv.Close()

	_, err := NewClient(allAt(srv.URL)).Predict(context.Background(), Features{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
	assert.Contains(t, err.Error(), "features must have 5 values")
	assert.False(t, resilience.IsTransient(err))
}

func TestErrorInSuccessfulBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer srv.Close()

	_, err := NewClient(allAt(srv.URL)).EPCSavings(context.Background(), EPCRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"classification":"School","probabilities":{"School":1}}`))
	}))
	defer srv.Close()

	c := NewClient(allAt(srv.URL), WithRetryPolicy(fastRetry(3)))
	resp, err := c.Classify(context.Background(), ClassifyRequest{})
	require.NoError(t, err)
	assert.Equal(t, "School", resp.Classification)
	assert.Equal(t, int32(3), calls.Load())
}

func TestBreakerOpensPerFeature(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/anomaly-detect" {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"energy_saved":1}`))
	}))
	defer srv.Close()

	breakers := resilience.NewBreakers(resilience.BreakerConfig{Threshold: 2, Cooldown: time.Hour})
	c := NewClient(allAt(srv.URL), WithRetryPolicy(fastRetry(1)), WithBreakers(breakers))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.DetectAnomaly(ctx, AnomalyRequest{})
		require.Error(t, err)
	}
	_, err := c.DetectAnomaly(ctx, AnomalyRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrOpen)
	assert.Equal(t, int32(2), calls.Load())

	// Other features are unaffected.
	_, err = c.EPCSavings(ctx, EPCRequest{})
	assert.NoError(t, err)
	assert.Equal(t, resilience.Open, breakers.States()[FeatureAnomaly])
}

func TestMissingEndpoint(t *testing.T) {
	_, err := NewClient(Endpoints{}).Classify(context.Background(), ClassifyRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no base URL configured")
}

func TestRateLimitOption(t *testing.T) {
	c := NewClient(Endpoints{}, WithRateLimit(0.5)).(*httpClient)
	require.NotNil(t, c.limiter)
	assert.Equal(t, 1, c.limiter.Burst())

	c = NewClient(Endpoints{}, WithRateLimit(0)).(*httpClient)
	assert.Nil(t, c.limiter)
}

func TestFromConfig(t *testing.T) {
	cfg := config.AnalyticsConfig{
		Key:          "k",
		TimeoutSecs:  5,
		RatePerSec:   4,
		PredictURL:   "http://predict",
		BenchmarkURL: "http://bench",
		MaxRetries:   7,
	}
	c := FromConfig(cfg).(*httpClient)
	assert.Equal(t, "k", c.key)
	assert.Equal(t, 5*time.Second, c.http.Timeout)
	assert.Equal(t, 7, c.retry.Attempts)
	assert.Equal(t, "http://predict", c.endpoints.Predict)
	assert.Equal(t, "http://bench", c.endpoints.Benchmark)
	require.NotNil(t, c.limiter)
}
