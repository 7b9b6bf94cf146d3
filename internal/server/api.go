package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/afroash/env-monitor/internal/models"
	"github.com/afroash/env-monitor/internal/monitor"
	"github.com/afroash/env-monitor/internal/storage"
)

// Error codes returned in ErrorMessage.Code
const (
	CodeEmptyHistory     = "empty_history"
	CodeInvalidLimit     = "invalid_limit"
	CodeUnknownLimitKind = "unknown_limit_kind"
	CodeInvalidCount     = "invalid_count"
	CodeInvalidUnit      = "invalid_unit"
	CodeInvalidRequest   = "invalid_request"
	CodeNotFound         = "not_found"
	CodeStorageError     = "storage_error"
	CodeNoData           = "no_data"
	CodeCancelled        = "cancelled"
)

const defaultRecentLimit = 50

// APIHandler handles HTTP API requests for the dashboard
type APIHandler struct {
	monitor   Monitor
	admin     AdminStore
	log       *OutcomeLog
	hub       *Hub
	retention RetentionReporter
	maxBatch  int
	logger    zerolog.Logger
}

// NewAPIHandler creates a new API handler. admin may be nil, in which case
// the storage endpoints answer 404.
func NewAPIHandler(m Monitor, admin AdminStore, log *OutcomeLog, maxBatch int, logger zerolog.Logger) *APIHandler {
	if maxBatch < 1 {
		maxBatch = 1
	}
	return &APIHandler{
		monitor:  m,
		admin:    admin,
		log:      log,
		maxBatch: maxBatch,
		logger:   logger,
	}
}

// SetHub lets limit changes be pushed to connected dashboards
func (api *APIHandler) SetHub(hub *Hub) {
	api.hub = hub
}

// SetRetention adds the cleaner's counters to GET /api/storage/stats
func (api *APIHandler) SetRetention(r RetentionReporter) {
	api.retention = r
}

// Routes registers every API endpoint on mux
func (api *APIHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sample", api.HandleSample)
	mux.HandleFunc("GET /api/current", api.HandleCurrent)
	mux.HandleFunc("GET /api/recent", api.HandleRecent)
	mux.HandleFunc("GET /api/metrics", api.HandleMetrics)
	mux.HandleFunc("GET /api/limits", api.HandleLimits)
	mux.HandleFunc("PUT /api/limits/{kind}", api.HandleSetLimit)
	mux.HandleFunc("DELETE /api/limits", api.HandleResetLimits)
	mux.HandleFunc("GET /api/history/temperature", api.HandleTemperatureHistory)
	mux.HandleFunc("GET /api/history/humidity", api.HandleHumidityHistory)
	mux.HandleFunc("GET /api/storage/stats", api.HandleStorageStats)
	mux.HandleFunc("GET /api/dump", api.HandleDump)
	mux.HandleFunc("DELETE /api/records/temperature/{id}", api.HandleDeleteTemperature)
	mux.HandleFunc("DELETE /api/records/humidity/{id}", api.HandleDeleteHumidity)
}

// SampleResponse is returned by POST /api/sample. Error is set when a
// multi-sample request stopped early; Outcomes then holds what completed.
type SampleResponse struct {
	Outcomes []models.SampleOutcome `json:"outcomes"`
	Error    *models.ErrorMessage   `json:"error,omitempty"`
}

// HandleSample triggers n sampling cycles (default 1)
func (api *APIHandler) HandleSample(w http.ResponseWriter, r *http.Request) {
	n := 1
	if s := r.URL.Query().Get("n"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil {
			api.writeError(w, http.StatusBadRequest, CodeInvalidCount, fmt.Sprintf("n must be an integer, got %q", s))
			return
		}
		n = parsed
	}
	if n > api.maxBatch {
		api.writeError(w, http.StatusBadRequest, CodeInvalidCount, fmt.Sprintf("n must be at most %d", api.maxBatch))
		return
	}

	outcomes, err := api.monitor.SampleMany(r.Context(), n)
	if err != nil {
		if errors.Is(err, monitor.ErrInvalidCount) {
			api.writeError(w, http.StatusBadRequest, CodeInvalidCount, err.Error())
			return
		}
		status, code := api.classify(err)
		if r.Context().Err() != nil {
			status, code = http.StatusRequestTimeout, CodeCancelled
		}
		api.writeJSON(w, status, SampleResponse{
			Outcomes: nonNil(outcomes),
			Error:    &models.ErrorMessage{Code: code, Message: err.Error()},
		})
		return
	}

	api.writeJSON(w, http.StatusOK, SampleResponse{Outcomes: outcomes})
}

// HandleCurrent returns the most recent outcome
func (api *APIHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	latest := api.log.Latest()
	if latest == nil {
		api.writeError(w, http.StatusNotFound, CodeNoData, "no samples taken yet")
		return
	}
	api.writeJSON(w, http.StatusOK, latest)
}

// HandleRecent returns recent outcomes, newest first
func (api *APIHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	api.writeJSON(w, http.StatusOK, api.log.Recent(limit))
}

// HandleMetrics returns summary metrics over the whole history
func (api *APIHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := api.monitor.ComputeMetrics(r.Context())
	if err != nil {
		api.writeClassified(w, err)
		return
	}
	api.writeJSON(w, http.StatusOK, m)
}

// HandleLimits returns the current thresholds
func (api *APIHandler) HandleLimits(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(w, http.StatusOK, api.monitor.Limits())
}

// SetLimitRequest is the body of PUT /api/limits/{kind}
type SetLimitRequest struct {
	Value *float64 `json:"value"`
}

// HandleSetLimit replaces one threshold
func (api *APIHandler) HandleSetLimit(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseLimitKind(r.PathValue("kind"))
	if err != nil {
		api.writeError(w, http.StatusBadRequest, CodeUnknownLimitKind, err.Error())
		return
	}

	var req SetLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Value == nil {
		api.writeError(w, http.StatusBadRequest, CodeInvalidRequest, "missing value")
		return
	}

	if err := api.monitor.SetLimit(kind, *req.Value); err != nil {
		api.writeClassified(w, err)
		return
	}

	limits := api.monitor.Limits()
	if api.hub != nil {
		api.hub.BroadcastLimits(limits)
	}
	api.writeJSON(w, http.StatusOK, limits)
}

// HandleResetLimits restores the startup thresholds
func (api *APIHandler) HandleResetLimits(w http.ResponseWriter, r *http.Request) {
	api.monitor.ResetLimits()
	limits := api.monitor.Limits()
	if api.hub != nil {
		api.hub.BroadcastLimits(limits)
	}
	api.writeJSON(w, http.StatusOK, limits)
}

// HandleTemperatureHistory returns the full temperature series (unit f or c)
func (api *APIHandler) HandleTemperatureHistory(w http.ResponseWriter, r *http.Request) {
	unit := storage.Fahrenheit
	if u := r.URL.Query().Get("unit"); u != "" {
		unit = storage.Unit(u)
	}

	series, err := api.monitor.TemperatureHistory(r.Context(), unit)
	if err != nil {
		api.writeClassified(w, err)
		return
	}
	api.writeJSON(w, http.StatusOK, series)
}

// HandleHumidityHistory returns the full humidity series
func (api *APIHandler) HandleHumidityHistory(w http.ResponseWriter, r *http.Request) {
	series, err := api.monitor.HumidityHistory(r.Context())
	if err != nil {
		api.writeClassified(w, err)
		return
	}
	api.writeJSON(w, http.StatusOK, series)
}

// StorageStatsResponse combines database and in-memory counters. Retention
// is omitted when no cleaner is running.
type StorageStatsResponse struct {
	Database  *storage.StorageStats          `json:"database"`
	Session   OutcomeLogStats                `json:"session"`
	Retention *storage.RetentionCleanerStats `json:"retention,omitempty"`
}

// HandleStorageStats returns database statistics
func (api *APIHandler) HandleStorageStats(w http.ResponseWriter, r *http.Request) {
	if api.admin == nil {
		http.NotFound(w, r)
		return
	}
	stats, err := api.admin.Stats(r.Context())
	if err != nil {
		api.writeClassified(w, err)
		return
	}
	resp := StorageStatsResponse{Database: stats, Session: api.log.Stats()}
	if api.retention != nil {
		rs := api.retention.Stats()
		resp.Retention = &rs
	}
	api.writeJSON(w, http.StatusOK, resp)
}

// HandleDump returns every stored record
func (api *APIHandler) HandleDump(w http.ResponseWriter, r *http.Request) {
	if api.admin == nil {
		http.NotFound(w, r)
		return
	}
	dump, err := api.admin.Dump(r.Context())
	if err != nil {
		api.writeClassified(w, err)
		return
	}
	api.writeJSON(w, http.StatusOK, dump)
}

// HandleDeleteTemperature removes one temperature record by id
func (api *APIHandler) HandleDeleteTemperature(w http.ResponseWriter, r *http.Request) {
	api.handleDelete(w, r, "temperature", func(id int64) error { return api.admin.DeleteTemperature(r.Context(), id) })
}

// HandleDeleteHumidity removes one humidity record by id
func (api *APIHandler) HandleDeleteHumidity(w http.ResponseWriter, r *http.Request) {
	api.handleDelete(w, r, "humidity", func(id int64) error { return api.admin.DeleteHumidity(r.Context(), id) })
}

func (api *APIHandler) handleDelete(w http.ResponseWriter, r *http.Request, table string, del func(int64) error) {
	if api.admin == nil {
		http.NotFound(w, r)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		api.writeError(w, http.StatusBadRequest, CodeInvalidRequest, "id must be a positive integer")
		return
	}
	if err := del(id); err != nil {
		api.writeClassified(w, err)
		return
	}
	api.logger.Info().Str("table", table).Int64("id", id).Msg("Record deleted via API")
	w.WriteHeader(http.StatusNoContent)
}

// classify maps core errors to an HTTP status and error code
func (api *APIHandler) classify(err error) (int, string) {
	var limitErr *monitor.InvalidLimitError
	switch {
	case errors.Is(err, monitor.ErrEmptyHistory):
		return http.StatusNotFound, CodeEmptyHistory
	case errors.As(err, &limitErr):
		return http.StatusBadRequest, CodeInvalidLimit
	case errors.Is(err, models.ErrUnknownLimitKind):
		return http.StatusBadRequest, CodeUnknownLimitKind
	case errors.Is(err, storage.ErrInvalidUnit):
		return http.StatusBadRequest, CodeInvalidUnit
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case storage.IsStorageError(err):
		return http.StatusServiceUnavailable, CodeStorageError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, CodeCancelled
	default:
		return http.StatusServiceUnavailable, CodeStorageError
	}
}

func (api *APIHandler) writeClassified(w http.ResponseWriter, err error) {
	status, code := api.classify(err)
	if status >= http.StatusInternalServerError {
		api.logger.Error().Err(err).Msg("API request failed")
	}
	api.writeError(w, status, code, err.Error())
}

func (api *APIHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	api.writeJSON(w, status, models.ErrorMessage{Code: code, Message: message})
}

func (api *APIHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Warn().Err(err).Msg("Failed to encode response")
	}
}

func nonNil(outcomes []models.SampleOutcome) []models.SampleOutcome {
	if outcomes == nil {
		return []models.SampleOutcome{}
	}
	return outcomes
}
