// Package analytics is a client for the remote energy prediction service.
// Its features are deployed on separate hosts, so every call is routed to a
// per-feature base URL and guarded by its own circuit breaker.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/compliance-cli/internal/config"
	"github.com/sells-group/compliance-cli/internal/resilience"
)

// Feature names, also used as breaker names.
const (
	FeatureClassify   = "classify"
	FeaturePredict    = "predict"
	FeatureCI         = "prediction-ci"
	FeatureBenchmark  = "province-benchmark"
	FeatureAnomaly    = "anomaly-detect"
	FeatureEPC        = "epc-analysis"
	FeatureEfficiency = "energy-efficiency"
	FeatureRenewable  = "renewable-energy-potential"
)

// Client calls the prediction service.
type Client interface {
	Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error)
	Predict(ctx context.Context, f Features) (*PredictResponse, error)
	PredictionCI(ctx context.Context, f Features) (*PredictionCI, error)
	ProvinceBenchmark(ctx context.Context) (*ProvinceBenchmark, error)
	DetectAnomaly(ctx context.Context, req AnomalyRequest) (*AnomalyResponse, error)
	EPCSavings(ctx context.Context, req EPCRequest) (*EPCResponse, error)
	EnergyEfficiency(ctx context.Context, req EfficiencyRequest) (*EfficiencyResponse, error)
	RenewablePotential(ctx context.Context, req RenewableRequest) (*RenewableResponse, error)
}

// Endpoints holds the base URL of each feature. The CI and benchmark
// endpoints share a host.
type Endpoints struct {
	Classify   string
	Predict    string
	Benchmark  string
	Anomaly    string
	EPC        string
	Efficiency string
	Renewable  string
}

// EndpointsFromConfig maps the analytics config section onto Endpoints.
func EndpointsFromConfig(cfg config.AnalyticsConfig) Endpoints {
	return Endpoints{
		Classify:   cfg.ClassifyURL,
		Predict:    cfg.PredictURL,
		Benchmark:  cfg.BenchmarkURL,
		Anomaly:    cfg.AnomalyURL,
		EPC:        cfg.EPCURL,
		Efficiency: cfg.EfficiencyURL,
		Renewable:  cfg.RenewableURL,
	}
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithKey sends the key as a bearer token.
func WithKey(key string) Option {
	return func(c *httpClient) {
		c.key = key
	}
}

// WithRateLimit caps outgoing requests per second across all features.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p resilience.RetryPolicy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

// WithBreakers shares a breaker registry, e.g. to report states.
func WithBreakers(b *resilience.Breakers) Option {
	return func(c *httpClient) {
		c.breakers = b
	}
}

type httpClient struct {
	endpoints Endpoints
	key       string
	http      *http.Client
	limiter   *rate.Limiter
	retry     resilience.RetryPolicy
	breakers  *resilience.Breakers
}

// NewClient creates a prediction service client.
func NewClient(endpoints Endpoints, opts ...Option) Client {
	c := &httpClient{
		endpoints: endpoints,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry:    resilience.DefaultRetryPolicy(),
		breakers: resilience.NewBreakers(resilience.DefaultBreakerConfig()),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FromConfig builds a client from the analytics config section.
func FromConfig(cfg config.AnalyticsConfig, opts ...Option) Client {
	policy, breaker := resilience.FromAnalytics(cfg)
	base := []Option{
		WithKey(cfg.Key),
		WithRateLimit(cfg.RatePerSec),
		WithRetryPolicy(policy),
		WithBreakers(resilience.NewBreakers(breaker)),
	}
	if cfg.TimeoutSecs > 0 {
		base = append(base, WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second}))
	}
	return NewClient(EndpointsFromConfig(cfg), append(base, opts...)...)
}

func (c *httpClient) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error) {
	var out ClassifyResponse
	if err := c.call(ctx, FeatureClassify, http.MethodPost, c.endpoints.Classify, "/api/classify", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) Predict(ctx context.Context, f Features) (*PredictResponse, error) {
	var out PredictResponse
	body := predictRequest{Features: f.Vector(), Model: ModelAll}
	if err := c.call(ctx, FeaturePredict, http.MethodPost, c.endpoints.Predict, "/api/predict", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) PredictionCI(ctx context.Context, f Features) (*PredictionCI, error) {
	var out PredictionCI
	body := predictRequest{Features: f.Vector()}
	if err := c.call(ctx, FeatureCI, http.MethodPost, c.endpoints.Benchmark, "/api/prediction-ci", body, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, eris.New("analytics: prediction-ci: service reported failure")
	}
	return &out, nil
}

func (c *httpClient) ProvinceBenchmark(ctx context.Context) (*ProvinceBenchmark, error) {
	var out ProvinceBenchmark
	if err := c.call(ctx, FeatureBenchmark, http.MethodGet, c.endpoints.Benchmark, "/api/province-benchmark", nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, eris.New("analytics: province-benchmark: service reported failure")
	}
	return &out, nil
}

func (c *httpClient) DetectAnomaly(ctx context.Context, req AnomalyRequest) (*AnomalyResponse, error) {
	var out AnomalyResponse
	if err := c.call(ctx, FeatureAnomaly, http.MethodPost, c.endpoints.Anomaly, "/api/anomaly-detect", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) EPCSavings(ctx context.Context, req EPCRequest) (*EPCResponse, error) {
	var out EPCResponse
	if err := c.call(ctx, FeatureEPC, http.MethodPost, c.endpoints.EPC, "/api/epc-analysis", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) EnergyEfficiency(ctx context.Context, req EfficiencyRequest) (*EfficiencyResponse, error) {
	var out EfficiencyResponse
	if err := c.call(ctx, FeatureEfficiency, http.MethodPost, c.endpoints.Efficiency, "/api/energy-efficiency", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) RenewablePotential(ctx context.Context, req RenewableRequest) (*RenewableResponse, error) {
	var out RenewableResponse
	if err := c.call(ctx, FeatureRenewable, http.MethodPost, c.endpoints.Renewable, "/api/renewable-energy-potential", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call runs one request through the feature's breaker, retrying transient
// failures, and decodes the JSON response into out.
func (c *httpClient) call(ctx context.Context, feature, method, base, path string, in, out any) error {
	if base == "" {
		return eris.Errorf("analytics: %s: no base URL configured", feature)
	}
	url := strings.TrimRight(base, "/") + path

	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return eris.Wrapf(err, "analytics: %s: marshal request", feature)
		}
	}

	policy := c.retry
	if policy.OnRetry == nil {
		policy.OnRetry = resilience.LogRetry(feature)
	}
	breaker := c.breakers.Get(feature)

	data, err := resilience.Retry(ctx, policy, func(ctx context.Context) ([]byte, error) {
		return resilience.Call(ctx, breaker, func(ctx context.Context) ([]byte, error) {
			return c.do(ctx, feature, method, url, body)
		})
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrapf(err, "analytics: %s: decode response", feature)
	}
	return nil
}

func (c *httpClient) do(ctx context.Context, feature, method, url string, body []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrapf(err, "analytics: %s: rate limit", feature)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, eris.Wrapf(err, "analytics: %s: create request", feature)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "analytics: %s: send request", feature)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "analytics: %s: read response", feature)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := eris.Errorf("analytics: %s: unexpected status %d: %s", feature, resp.StatusCode, serviceMessage(data))
		if resilience.IsTransientStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	// The service sometimes reports failures in a 200 body.
	if msg := errorField(data); msg != "" {
		return nil, eris.Errorf("analytics: %s: %s", feature, msg)
	}
	return data, nil
}

// serviceMessage prefers the service's "error" field over the raw body.
func serviceMessage(data []byte) string {
	if msg := errorField(data); msg != "" {
		return msg
	}
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func errorField(data []byte) string {
	var e struct {
		Error any `json:"error"`
	}
	if json.Unmarshal(data, &e) != nil || e.Error == nil {
		return ""
	}
	switch v := e.Error.(type) {
	case string:
		return v
	case bool:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
