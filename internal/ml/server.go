package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"placement-predictor/internal/artifact"
	"placement-predictor/internal/features"
	"placement-predictor/internal/storage"
)

const maxRequestBody = 1 << 20

// PredictionRecorder persists served predictions.
type PredictionRecorder interface {
	StorePrediction(record storage.PredictionRecord) error
}

// RequestObserver counts HTTP responses.
type RequestObserver interface {
	ObserveRequest(handler string, code int)
}

// ModelServer provides HTTP API for model predictions
type ModelServer struct {
	predictor    PredictorInterface
	server       *http.Server
	timeout      time.Duration
	recorder     PredictionRecorder
	observer     RequestObserver
	gatherer     prometheus.Gatherer
	requireReady atomic.Bool
}

// ServerOption configures a ModelServer.
type ServerOption func(*ModelServer)

// WithRecorder logs every successful prediction to r.
func WithRecorder(r PredictionRecorder) ServerOption {
	return func(ms *ModelServer) { ms.recorder = r }
}

// WithRequestObserver counts responses per handler.
func WithRequestObserver(o RequestObserver) ServerOption {
	return func(ms *ModelServer) { ms.observer = o }
}

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(ms *ModelServer) { ms.gatherer = g }
}

// WithRequestTimeout bounds each prediction.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(ms *ModelServer) { ms.timeout = d }
}

// PredictionResponse is the body returned by /predict.
type PredictionResponse struct {
	Label       int              `json:"label"`
	Probability float64          `json:"probability"`
	RequestID   string           `json:"request_id,omitempty"`
	Report      *features.Report `json:"report,omitempty"`
}

// ModelInfo is the body returned by /model/info.
type ModelInfo struct {
	State    string            `json:"state"`
	Manifest artifact.Manifest `json:"manifest"`
	Schema   features.Schema   `json:"schema"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewModelServer creates a new HTTP server for model serving
func NewModelServer(predictor PredictorInterface, port int, opts ...ServerOption) *ModelServer {
	ms := &ModelServer{
		predictor: predictor,
		timeout:   5 * time.Second,
		gatherer:  prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(ms)
	}

	ms.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           ms.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return ms
}

// Handler returns the routing for the server's endpoints.
func (ms *ModelServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", ms.handlePredict)
	mux.HandleFunc("/health", ms.handleHealth)
	mux.HandleFunc("/model/info", ms.handleModelInfo)
	mux.Handle("/metrics", promhttp.HandlerFor(ms.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// RequireReady makes /health report 503 until the bundle is loaded. Used when
// warm-up failed at startup.
func (ms *ModelServer) RequireReady(v bool) {
	ms.requireReady.Store(v)
}

// Start begins serving HTTP requests
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Msg("starting model server")
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ms.writeError(w, "predict", http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	var record features.Record
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.UseNumber()
	if err := dec.Decode(&record); err != nil {
		ms.writeError(w, "predict", http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	if record == nil {
		ms.writeError(w, "predict", http.StatusBadRequest, errors.New("invalid request: body must be a JSON object"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), ms.timeout)
	defer cancel()

	res, report, err := ms.predictor.PredictWithReport(ctx, record)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case IsArtifactError(err):
			status = http.StatusServiceUnavailable
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		}
		log.Error().Err(err).Str("request_id", requestID).Msg("prediction failed")
		ms.writeError(w, "predict", status, err)
		return
	}

	if ms.recorder != nil {
		ms.record(requestID, record, res, report)
	}

	resp := PredictionResponse{
		Label:       res.Label,
		Probability: res.Probability,
		RequestID:   requestID,
	}
	if report.Defaulted() || len(report.Ignored) > 0 {
		resp.Report = &report
	}
	ms.writeJSON(w, "predict", http.StatusOK, resp)
}

func (ms *ModelServer) record(requestID string, record features.Record, res Result, report features.Report) {
	var runID string
	if b := ms.predictor.Bundle(); b != nil {
		runID = b.Manifest.RunID
	}
	err := ms.recorder.StorePrediction(storage.PredictionRecord{
		ID:          requestID,
		Timestamp:   time.Now(),
		RunID:       runID,
		Input:       record,
		Label:       res.Label,
		Probability: res.Probability,
		Missing:     report.Missing,
		Invalid:     report.Invalid,
	})
	if err != nil {
		log.Warn().Err(err).Str("request_id", requestID).Msg("failed to record prediction")
	}
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := ms.predictor.State()
	body := map[string]any{"state": state.String()}

	if state != StateReady && ms.requireReady.Load() {
		ctx, cancel := context.WithTimeout(r.Context(), ms.timeout)
		defer cancel()
		if err := ms.predictor.Warmup(ctx); err != nil {
			body["error"] = err.Error()
			ms.writeJSON(w, "health", http.StatusServiceUnavailable, body)
			return
		}
		body["state"] = ms.predictor.State().String()
	}

	ms.writeJSON(w, "health", http.StatusOK, body)
}

func (ms *ModelServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	b := ms.predictor.Bundle()
	if b == nil {
		ms.writeError(w, "model_info", http.StatusServiceUnavailable, errors.New("artifact bundle not loaded"))
		return
	}
	ms.writeJSON(w, "model_info", http.StatusOK, ModelInfo{
		State:    ms.predictor.State().String(),
		Manifest: b.Manifest,
		Schema:   b.Schema,
	})
}

func (ms *ModelServer) writeError(w http.ResponseWriter, handler string, status int, err error) {
	ms.writeJSON(w, handler, status, errorResponse{Error: err.Error()})
}

func (ms *ModelServer) writeJSON(w http.ResponseWriter, handler string, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if ms.observer != nil {
		ms.observer.ObserveRequest(handler, status)
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Str("handler", handler).Msg("failed to write response")
	}
}
