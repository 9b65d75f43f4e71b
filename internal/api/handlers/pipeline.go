package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wonny/demandcast/internal/contracts"
	"github.com/wonny/demandcast/internal/ingest"
	"github.com/wonny/demandcast/internal/pipeline"
	"github.com/wonny/demandcast/internal/report"
	"github.com/wonny/demandcast/pkg/config"
	"github.com/wonny/demandcast/pkg/logger"
)

// PipelineHandler exposes the pipeline stages over HTTP, one endpoint per
// stage. Sessions are identified by the id path segment.
type PipelineHandler struct {
	orch     *pipeline.Orchestrator
	loader   *ingest.Loader
	validate *validator.Validate
	defaults config.PipelineConfig
	log      *logger.Logger
}

// NewPipelineHandler creates a PipelineHandler.
func NewPipelineHandler(orch *pipeline.Orchestrator, loader *ingest.Loader, cfg *config.Config, log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{
		orch:     orch,
		loader:   loader,
		validate: validator.New(),
		defaults: cfg.Pipeline,
		log:      log.WithComponent("api"),
	}
}

// CreateSession mints a fresh session id.
func (h *PipelineHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusCreated, map[string]string{
		"session_id": uuid.NewString(),
	})
}

// ListSessions lists session ids with stored artifacts.
func (h *PipelineHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := h.orch.Sessions(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": ids})
}

// Status reports stage completion for a session.
func (h *PipelineHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.orch.Status(r.Context(), sessionID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// UploadDataset accepts a multipart file upload ("file" field, CSV or Excel)
// or a JSON body with a records array, and replaces the session dataset.
func (h *PipelineHandler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	records, source, err := h.readUpload(r)
	if err != nil {
		respondError(w, err)
		return
	}

	ds, err := h.orch.UploadDataset(r.Context(), sessionID(r), source, records)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": ds.SessionID,
		"records":    len(ds.Records),
		"version":    ds.Version,
		"source":     ds.Source,
	})
}

func (h *PipelineHandler) readUpload(r *http.Request) ([]contracts.RawRecord, string, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(64 << 20); err != nil {
			return nil, "", contracts.Validationf("dataset", "malformed multipart body: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", contracts.Validationf("dataset", "missing file field")
		}
		defer file.Close()

		var records []contracts.RawRecord
		switch strings.ToLower(filepath.Ext(header.Filename)) {
		case ".xlsx", ".xlsm":
			records, err = h.loader.LoadExcel(file)
		default:
			records, err = h.loader.LoadCSV(file)
		}
		if err != nil {
			return nil, "", err
		}
		return records, header.Filename, nil
	}

	var body struct {
		Records []contracts.RawRecord `json:"records" validate:"required,min=1,dive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, "", contracts.Validationf("dataset", "malformed JSON body: %v", err)
	}
	if err := h.validate.Struct(body); err != nil {
		return nil, "", contracts.Validationf("dataset", "invalid records: %v", err)
	}
	return body.Records, "json", nil
}

type preprocessRequest struct {
	MinRows        *int     `json:"min_rows" validate:"omitempty,min=1"`
	IQRMultiplier  *float64 `json:"iqr_multiplier" validate:"omitempty,gt=0"`
	DropOutliers   *bool    `json:"drop_outliers"`
	ScaleNumeric   *bool    `json:"scale_numeric"`
	AggregateDaily *bool    `json:"aggregate_daily"`
}

// Preprocess cleans the active dataset.
func (h *PipelineHandler) Preprocess(w http.ResponseWriter, r *http.Request) {
	var req preprocessRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}

	opts := contracts.DefaultCleanOptions()
	opts.MinRows = h.defaults.MinRows
	overrideInt(&opts.MinRows, req.MinRows)
	overrideFloat(&opts.IQRMultiplier, req.IQRMultiplier)
	overrideBool(&opts.DropOutliers, req.DropOutliers)
	overrideBool(&opts.ScaleNumeric, req.ScaleNumeric)
	overrideBool(&opts.AggregateDaily, req.AggregateDaily)

	cleaned, err := h.orch.Preprocess(r.Context(), sessionID(r), opts)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rows":           len(cleaned.Rows),
		"dropped_rows":   cleaned.DroppedRows,
		"imputed_values": cleaned.ImputedValues,
		"version":        cleaned.Version,
	})
}

type featuresRequest struct {
	Lags     []int `json:"lags" validate:"omitempty,dive,min=1"`
	Windows  []int `json:"windows" validate:"omitempty,dive,min=2"`
	Calendar *bool `json:"calendar"`
	Seasonal *bool `json:"seasonal"`
	Trend    *bool `json:"trend"`
	Holidays *bool `json:"holidays"`
	Weather  *bool `json:"weather"`
}

// BuildFeatures derives the feature table.
func (h *PipelineHandler) BuildFeatures(w http.ResponseWriter, r *http.Request) {
	var req featuresRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}

	opts := contracts.DefaultFeatureOptions()
	opts.Lags = h.defaults.Lags
	opts.Windows = h.defaults.Windows
	if len(req.Lags) > 0 {
		opts.Lags = req.Lags
	}
	if len(req.Windows) > 0 {
		opts.Windows = req.Windows
	}
	overrideBool(&opts.Calendar, req.Calendar)
	overrideBool(&opts.Seasonal, req.Seasonal)
	overrideBool(&opts.Trend, req.Trend)
	overrideBool(&opts.Holidays, req.Holidays)
	overrideBool(&opts.Weather, req.Weather)

	ft, err := h.orch.BuildFeatures(r.Context(), sessionID(r), opts)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rows":         len(ft.Rows),
		"columns":      ft.Columns,
		"dropped_rows": ft.DroppedRows,
		"version":      ft.Version,
	})
}

type trainRequest struct {
	Kinds        []string `json:"kinds" validate:"omitempty,dive,oneof=linear tree_ensemble boosted_ensemble classical_time_series"`
	TestFraction *float64 `json:"test_fraction" validate:"omitempty,gt=0,lt=1"`
	MinTrainRows *int     `json:"min_train_rows" validate:"omitempty,min=2"`
	Seed         *int64   `json:"seed"`
}

// Train fits the requested model kinds.
func (h *PipelineHandler) Train(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}

	opts := contracts.DefaultTrainOptions()
	opts.TestFraction = h.defaults.TestFraction
	opts.MinTrainRows = h.defaults.MinTrainRows
	if len(req.Kinds) > 0 {
		opts.Kinds = nil
		for _, k := range req.Kinds {
			opts.Kinds = append(opts.Kinds, contracts.ModelKind(k))
		}
	}
	overrideFloat(&opts.TestFraction, req.TestFraction)
	overrideInt(&opts.MinTrainRows, req.MinTrainRows)
	if req.Seed != nil {
		opts.Seed = *req.Seed
	}

	rep, err := h.orch.Train(r.Context(), sessionID(r), opts)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

type forecastRequest struct {
	Horizon    *int     `json:"horizon" validate:"omitempty,min=1,max=365"`
	Confidence *float64 `json:"confidence" validate:"omitempty,gt=0,lt=1"`
	Kind       string   `json:"kind" validate:"omitempty,oneof=linear tree_ensemble boosted_ensemble classical_time_series"`
}

// Forecast projects demand over the horizon.
func (h *PipelineHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	var req forecastRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}

	opts := contracts.DefaultForecastOptions()
	opts.Horizon = h.defaults.Horizon
	opts.Confidence = h.defaults.Confidence
	overrideInt(&opts.Horizon, req.Horizon)
	overrideFloat(&opts.Confidence, req.Confidence)
	opts.Kind = contracts.ModelKind(req.Kind)

	fc, err := h.orch.ForecastDemand(r.Context(), sessionID(r), opts)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, fc)
}

// Evaluate compares trained models.
func (h *PipelineHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	result, err := h.orch.Evaluate(r.Context(), sessionID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type insightsRequest struct {
	LeadTimeDays *int     `json:"lead_time_days" validate:"omitempty,min=1"`
	ServiceLevel *float64 `json:"service_level" validate:"omitempty,gt=0,lt=1"`
	OrderCost    *float64 `json:"order_cost" validate:"omitempty,gt=0"`
	HoldingCost  *float64 `json:"holding_cost" validate:"omitempty,gt=0"`
}

// Insights derives inventory guidance.
func (h *PipelineHandler) Insights(w http.ResponseWriter, r *http.Request) {
	var req insightsRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}

	opts := contracts.DefaultInsightOptions()
	opts.LeadTimeDays = h.defaults.LeadTimeDays
	opts.ServiceLevel = h.defaults.ServiceLevel
	opts.OrderCost = h.defaults.OrderCost
	opts.HoldingCost = h.defaults.HoldingCost
	overrideInt(&opts.LeadTimeDays, req.LeadTimeDays)
	overrideFloat(&opts.ServiceLevel, req.ServiceLevel)
	overrideFloat(&opts.OrderCost, req.OrderCost)
	overrideFloat(&opts.HoldingCost, req.HoldingCost)

	set, err := h.orch.Insights(r.Context(), sessionID(r), opts)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, set)
}

// Artifact returns one stored stage artifact verbatim.
func (h *PipelineHandler) Artifact(w http.ResponseWriter, r *http.Request) {
	stage := contracts.Stage(mux.Vars(r)["stage"])

	var raw json.RawMessage
	if err := h.orch.Artifact(r.Context(), sessionID(r), stage, &raw); err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

// Report renders the flat text summary of everything the session produced.
func (h *PipelineHandler) Report(w http.ResponseWriter, r *http.Request) {
	artifacts, err := report.Collect(r.Context(), h.orch, sessionID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, report.Render(artifacts))
}

func sessionID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

// decode reads an optional JSON body into dst and validates it. An empty
// body leaves dst zero so defaults apply.
func (h *PipelineHandler) decode(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	err := json.NewDecoder(r.Body).Decode(dst)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return contracts.Validationf("request", "malformed JSON body: %v", err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return contracts.Validationf("request", "invalid options: %v", err)
	}
	return nil
}

func overrideInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func overrideFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func overrideBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
