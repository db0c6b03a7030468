// Package server exposes compliance analyses over HTTP. Uploaded datasets
// and their results live in process memory only.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/compliance-cli/internal/compliance"
	"github.com/sells-group/compliance-cli/internal/config"
	"github.com/sells-group/compliance-cli/internal/dataset"
	"github.com/sells-group/compliance-cli/internal/export"
	"github.com/sells-group/compliance-cli/internal/geo"
	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/monitoring"
	"github.com/sells-group/compliance-cli/internal/view"
)

// Download file names.
const (
	CSVFileName  = "Compliance_Buildings_Output.csv"
	XLSXFileName = "Energy_Compliance_Engine_Output.xlsx"
)

// Server serves the compliance API.
type Server struct {
	cfg       config.ServerConfig
	store     *Store
	scorer    *compliance.Scorer
	provinces *geo.Provinces
	topN      int
	alerter   *monitoring.Alerter
	router    chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithAlerter sends threshold alerts after every analysis.
func WithAlerter(a *monitoring.Alerter) Option {
	return func(s *Server) { s.alerter = a }
}

// New builds a server. A nil scorer or provinces table uses the defaults.
func New(cfg config.ServerConfig, scorer *compliance.Scorer, provinces *geo.Provinces, topN int, opts ...Option) *Server {
	if scorer == nil {
		scorer = compliance.DefaultScorer()
	}
	if provinces == nil {
		provinces = geo.DefaultProvinces()
	}
	if topN <= 0 {
		topN = view.DefaultTopN
	}
	s := &Server{
		cfg:       cfg,
		store:     NewStore(cfg.MaxAnalyses),
		scorer:    scorer,
		provinces: provinces,
		topN:      topN,
	}
	for _, o := range opts {
		o(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Store returns the analysis store.
func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/compliance/analyses", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handlePage)
			r.Put("/", s.handleReplace)
			r.Delete("/", s.handleDelete)
			r.Get("/recommendations", s.handleRecommendations)
			r.Get("/summary", s.handleSummary)
			r.Get("/summary/{dimension}", s.handleDimension)
			r.Get("/export.csv", s.handleCSV)
			r.Get("/export.xlsx", s.handleXLSX)
			r.Get("/map", s.handleMap)
		})
	})
	return r
}

// ListenAndServe serves on port until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

type createResponse struct {
	*Analysis
	Summary         compliance.Summary `json:"summary"`
	Recommendations []string           `json:"recommendations"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	reg, epc, err := s.readUploads(w, r)
	if err != nil {
		writeError(w, uploadStatus(err), err)
		return
	}

	res := compliance.Analyze(reg, epc, s.scorer)
	a := s.store.Add(reg.Name, epc.Name, res)

	zap.L().Info("analysis created",
		zap.String("id", a.ID),
		zap.Int("buildings", res.Summary.Total),
		zap.Int("compliant", res.Summary.Compliant),
	)
	s.notify(r, a)
	writeJSON(w, http.StatusCreated, createResponse{Analysis: a, Summary: res.Summary, Recommendations: res.Recommendations})
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.store.Get(id); !ok {
		writeError(w, http.StatusNotFound, eris.Errorf("analysis %s not found", id))
		return
	}

	reg, epc, err := s.readUploads(w, r)
	if err != nil {
		writeError(w, uploadStatus(err), err)
		return
	}

	res := compliance.Analyze(reg, epc, s.scorer)
	a, ok := s.store.Replace(id, reg.Name, epc.Name, res)
	if !ok {
		writeError(w, http.StatusNotFound, eris.Errorf("analysis %s not found", id))
		return
	}
	s.notify(r, a)
	writeJSON(w, http.StatusOK, createResponse{Analysis: a, Summary: res.Summary, Recommendations: res.Recommendations})
}

// notify sends threshold alerts for a in the background.
func (s *Server) notify(r *http.Request, a *Analysis) {
	if !s.alerter.Enabled() {
		return
	}
	ctx := context.WithoutCancel(r.Context())
	go s.alerter.Notify(ctx, a.ID, a.Result.Summary)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.store.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, eris.New("analysis not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pageResponse struct {
	view.Page
	Truncated bool `json:"truncated"`
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	a, ok := s.analysis(w, r)
	if !ok {
		return
	}
	page := view.Render(s.state(r), a.Result)
	writeJSON(w, http.StatusOK, pageResponse{Page: page, Truncated: page.Truncated()})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	a, ok := s.analysis(w, r)
	if !ok {
		return
	}
	recs := a.Result.Recommendations
	if recs == nil {
		recs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"recommendations": recs})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	a, ok := s.analysis(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.Result.Summary)
}

type groupRow struct {
	Value        string  `json:"value"`
	Total        int     `json:"total_buildings"`
	Compliant    int     `json:"compliant_buildings"`
	NonCompliant int     `json:"non_compliant_buildings"`
	RatePercent  float64 `json:"compliance_rate_pct"`
}

func (s *Server) handleDimension(w http.ResponseWriter, r *http.Request) {
	a, ok := s.analysis(w, r)
	if !ok {
		return
	}
	dim, ok := compliance.ParseDimension(chi.URLParam(r, "dimension"))
	if !ok {
		writeError(w, http.StatusBadRequest, eris.Errorf("unknown dimension %q", chi.URLParam(r, "dimension")))
		return
	}

	all := a.Result.Groups[dim]
	groups := all
	if r.URL.Query().Get("sort") == "rate" {
		groups = compliance.SortByRate(groups)
	}
	rows := make([]groupRow, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, groupRow{
			Value:        g.Name,
			Total:        g.Total,
			Compliant:    g.Compliant,
			NonCompliant: g.NonCompliant,
			RatePercent:  g.Percent(),
		})
	}

	resp := map[string]any{"dimension": dim, "column": dim.Title(), "groups": rows}
	if worst, ok := compliance.Worst(all); ok {
		resp["worst"] = worst.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCSV(w http.ResponseWriter, r *http.Request) {
	a, ok := s.analysis(w, r)
	if !ok {
		return
	}
	page := view.Render(s.state(r), a.Result)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(CSVFileName))
	if err := export.WriteCSV(w, page.Export); err != nil {
		zap.L().Error("csv export failed", zap.String("id", a.ID), zap.Error(err))
	}
}

func (s *Server) handleXLSX(w http.ResponseWriter, r *http.Request) {
	a, ok := s.analysis(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", attachment(XLSXFileName))
	if err := export.WriteWorkbook(w, a.Result); err != nil {
		zap.L().Error("xlsx export failed", zap.String("id", a.ID), zap.Error(err))
	}
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	a, ok := s.analysis(w, r)
	if !ok {
		return
	}
	mode, err := geo.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	data, err := s.provinces.GeoJSON(a.Result.Records, mode)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

func (s *Server) analysis(w http.ResponseWriter, r *http.Request) (*Analysis, bool) {
	id := chi.URLParam(r, "id")
	a, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, eris.Errorf("analysis %s not found", id))
	}
	return a, ok
}

func (s *Server) state(r *http.Request) view.State {
	return view.FromQuery(view.WithTopN(s.topN), r.URL.Query())
}

// uploadStatus maps an upload error to 413 when the body hit the size
// limit and 400 otherwise.
func uploadStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// readUploads parses the "registry" and "epc" multipart files concurrently.
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request) (model.Dataset, model.Dataset, error) {
	limit := int64(s.cfg.MaxUploadMB) << 20
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return model.Dataset{}, model.Dataset{}, eris.Wrap(err, "server: parse upload")
	}

	var reg, epc model.Dataset
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		ds, err := readUpload(ctx, r.MultipartForm, "registry")
		reg = ds
		return err
	})
	g.Go(func() error {
		ds, err := readUpload(ctx, r.MultipartForm, "epc")
		epc = ds
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Dataset{}, model.Dataset{}, err
	}
	return reg, epc, nil
}

func readUpload(ctx context.Context, form *multipart.Form, field string) (model.Dataset, error) {
	files := form.File[field]
	if len(files) == 0 {
		return model.Dataset{}, eris.Errorf("server: missing %s file", field)
	}
	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return model.Dataset{}, eris.Wrapf(err, "server: open %s upload", field)
	}
	defer f.Close() //nolint:errcheck

	data, err := io.ReadAll(f)
	if err != nil {
		return model.Dataset{}, eris.Wrapf(err, "server: read %s upload", field)
	}

	var format dataset.Format
	if v := form.Value[field+"_format"]; len(v) > 0 {
		if format, err = dataset.ParseFormat(v[0]); err != nil {
			return model.Dataset{}, err
		}
	}
	ds, err := dataset.Parse(ctx, fh.Filename, format, data)
	if err != nil {
		return model.Dataset{}, eris.Wrapf(err, "server: %s", field)
	}
	return ds, nil
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
