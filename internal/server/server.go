// Package server exposes the prediction engine over HTTP: CSV upload
// prediction, health and model info, and Prometheus metrics.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"avalanche-predictor/internal/dataset"
	"avalanche-predictor/internal/features"
	"avalanche-predictor/internal/ml"
)

// maxUploadBytes bounds the CSV accepted by /predict.
const maxUploadBytes = 32 << 20

// Server serves predictions from an engine.
type Server struct {
	engine     *ml.Engine
	httpServer *http.Server
}

// RowPrediction is the response entry for one uploaded row. Exactly one of
// Label or Error is set.
type RowPrediction struct {
	Row        int         `json:"row"`
	Region     int         `json:"region"`
	RegionName string      `json:"region_name,omitempty"`
	Date       string      `json:"date"`
	Label      *ml.Label   `json:"label,omitempty"`
	Scores     *[2]float64 `json:"scores,omitempty"`
	Clamped    []string    `json:"clamped,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// PredictResponse is the body returned by /predict.
type PredictResponse struct {
	ModelID     string          `json:"model_id"`
	Rows        int             `json:"rows"`
	Failed      int             `json:"failed"`
	Avalanches  int             `json:"avalanches"`
	Predictions []RowPrediction `json:"predictions"`
}

// ModelInfo is the body returned by /model/info.
type ModelInfo struct {
	ID          string                 `json:"id"`
	CreatedAt   time.Time              `json:"created_at"`
	Features    []string               `json:"features"`
	Scaler      ml.ScalerParams        `json:"scaler"`
	Diagnostics ml.TrainingDiagnostics `json:"diagnostics"`
}

// New returns a server listening on addr. Metrics are served from gatherer,
// or the default registry when it is nil.
func New(addr string, engine *ml.Engine, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	s := &Server{
		engine: engine,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}

	mux.HandleFunc("POST /predict", s.handlePredict)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /model/info", s.handleModelInfo)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("starting prediction server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	artifact := s.engine.Current()
	if !artifact.Loaded() {
		writeError(w, http.StatusServiceUnavailable, "no model loaded")
		return
	}

	body, err := uploadedCSV(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := dataset.LoadCSV(body)
	if err != nil {
		var encErr *features.EncodingError
		if errors.As(err, &encErr) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid CSV: %v", err))
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusBadRequest, "CSV has no rows")
		return
	}

	results := s.engine.PredictEachWith(artifact, records)
	resp := PredictResponse{
		ModelID:     artifact.ID,
		Rows:        len(records),
		Predictions: make([]RowPrediction, len(results)),
	}
	for i, res := range results {
		rec := records[res.Index]
		row := RowPrediction{
			Row:        res.Index,
			Region:     rec.Region,
			RegionName: features.RegionName(rec.Region),
			Date:       rec.Date.Format("2006-01-02"),
		}
		if res.Err != nil {
			row.Error = res.Err.Error()
			resp.Failed++
		} else {
			label := res.Prediction.Label
			scores := res.Prediction.Scores
			row.Label = &label
			row.Scores = &scores
			row.Clamped = res.Prediction.Clamped
			if label == ml.Avalanche {
				resp.Avalanches++
			}
		}
		resp.Predictions[i] = row
	}

	log.Info().
		Str("model_id", resp.ModelID).
		Int("rows", resp.Rows).
		Int("failed", resp.Failed).
		Int("avalanches", resp.Avalanches).
		Msg("prediction request served")

	writeJSON(w, http.StatusOK, resp)
}

// uploadedCSV returns the CSV carried by r, either as the multipart field
// "file" or as the raw body.
func uploadedCSV(w http.ResponseWriter, r *http.Request) (io.Reader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, fmt.Errorf("invalid multipart form: %w", err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing file field: %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		return bytes.NewReader(data), nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty request body")
	}
	return bytes.NewReader(data), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := s.engine.Health()

	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleModelInfo(w http.ResponseWriter, _ *http.Request) {
	a := s.engine.Current()
	if !a.Loaded() {
		writeError(w, http.StatusServiceUnavailable, "no model loaded")
		return
	}

	writeJSON(w, http.StatusOK, ModelInfo{
		ID:          a.ID,
		CreatedAt:   a.CreatedAt,
		Features:    a.Features,
		Scaler:      a.Scaler,
		Diagnostics: a.Diagnostics,
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
