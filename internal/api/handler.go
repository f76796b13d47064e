package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caiatech/tunelab/internal/metrics"
	"github.com/caiatech/tunelab/internal/models"
	"github.com/caiatech/tunelab/internal/workspace"
)

type HandlerDeps struct {
	DB             *sql.DB // optional datalab database to import from
	Logger         *log.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	MaxUploadBytes int64
	NewID          func() string
}

type Handler struct {
	db             *sql.DB
	logger         *log.Logger
	metrics        *metrics.Metrics
	gatherer       prometheus.Gatherer
	maxUploadBytes int64
	newID          func() string
}

func NewHandler(deps HandlerDeps) *Handler {
	h := &Handler{
		db:             deps.DB,
		logger:         deps.Logger,
		metrics:        deps.Metrics,
		gatherer:       deps.Gatherer,
		maxUploadBytes: deps.MaxUploadBytes,
		newID:          deps.NewID,
	}
	if h.logger == nil {
		h.logger = log.Default()
	}
	if h.maxUploadBytes <= 0 {
		h.maxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	if h.newID == nil {
		h.newID = uuid.NewString
	}
	return h
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.handleHealthz)

	mux.HandleFunc("POST /api/v1/import", h.route("import", h.handleImport))
	mux.HandleFunc("POST /api/v1/export", h.route("export", h.handleExport))
	mux.HandleFunc("POST /api/v1/clone", h.route("clone", h.handleClone))
	mux.HandleFunc("GET /api/v1/datalab/datasets/{name}/import", h.route("datalab_import", h.handleDatalabImport))

	// preflight
	mux.HandleFunc("OPTIONS /api/v1/", h.withCORS(func(w http.ResponseWriter, r *http.Request) {}))

	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}

func (h *Handler) route(name string, next http.HandlerFunc) http.HandlerFunc {
	return h.withCORS(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next(w, r)
		h.metrics.ObserveRequest(name, started)
		h.logger.Debug("request", "route", name, "method", r.Method, "elapsed", time.Since(started).Round(time.Millisecond))
	})
}

func (h *Handler) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Type,Content-Disposition")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ts": time.Now().UTC().Format(time.RFC3339)})
}

// ----------------------------
// Import
// ----------------------------

const (
	variantDatasets = "datasets" // positional ids, the editor's default
	variantLines    = "lines"    // ids are source line indexes
	variantExports  = "exports"  // raw per-line records
)

type skippedLine struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

type importResponse struct {
	Items             any           `json:"items"`
	SystemInstruction string        `json:"system_instruction,omitempty"`
	Tools             []models.Tool `json:"tools"`
	Skipped           []skippedLine `json:"skipped"`
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	variant := strings.TrimSpace(r.URL.Query().Get("variant"))
	if variant == "" {
		variant = variantDatasets
	}
	if !validVariant(variant) {
		writeJSONError(w, http.StatusBadRequest, "invalid variant")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	body, closeBody, err := uploadBody(r)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}
	defer closeBody()

	im := &models.Importer{Logger: h.logger}
	report, err := im.Import(r.Context(), models.ReaderSource(body))
	if err != nil {
		h.metrics.ObserveImportFailure("upload")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.metrics.ObserveImport("upload", report)

	writeJSON(w, http.StatusOK, buildImportResponse(report, variant))
}

func (h *Handler) handleDatalabImport(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "datalab database not configured")
		return
	}
	variant := strings.TrimSpace(r.URL.Query().Get("variant"))
	if variant == "" {
		variant = variantDatasets
	}
	if !validVariant(variant) {
		writeJSONError(w, http.StatusBadRequest, "invalid variant")
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 0)
	if limit < 0 {
		limit = 0
	}

	im := &models.Importer{Logger: h.logger}
	report, err := models.ImportDatalabItems(r.Context(), h.db, im, models.DatalabItemsParams{
		Dataset: r.PathValue("name"),
		Limit:   limit,
	})
	if err != nil {
		h.metrics.ObserveImportFailure("datalab")
		switch {
		case errors.Is(err, models.ErrNotFound):
			writeJSONError(w, http.StatusNotFound, "dataset not found")
		case errors.Is(err, models.ErrInvalidInput):
			writeJSONError(w, http.StatusBadRequest, "invalid dataset name")
		default:
			h.logger.Error("datalab import", "err", err)
			writeJSONError(w, http.StatusInternalServerError, "datalab import failed")
		}
		return
	}
	h.metrics.ObserveImport("datalab", report)

	writeJSON(w, http.StatusOK, buildImportResponse(report, variant))
}

func buildImportResponse(report models.ImportReport, variant string) importResponse {
	si, tools := workspace.SharedSettings(report.Records)
	if tools == nil {
		tools = []models.Tool{}
	}
	resp := importResponse{
		SystemInstruction: si,
		Tools:             tools,
		Skipped:           []skippedLine{},
	}
	for _, s := range report.Skipped {
		resp.Skipped = append(resp.Skipped, skippedLine{Line: s.Line, Error: s.Err.Error()})
	}

	switch variant {
	case variantExports:
		resp.Items = report.Records
	case variantLines:
		resp.Items = report.LineDatasets()
	default:
		resp.Items = report.Datasets()
	}
	return resp
}

func validVariant(v string) bool {
	switch v {
	case variantDatasets, variantLines, variantExports:
		return true
	default:
		return false
	}
}

// uploadBody returns the uploaded file: the "file" field of a multipart form,
// or the raw request body otherwise.
func uploadBody(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, func() {}, nil
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func (h *Handler) writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	writeJSONError(w, http.StatusBadRequest, "missing file")
}

// ----------------------------
// Export
// ----------------------------

type exportRequest struct {
	Datasets          []models.Dataset `json:"datasets"`
	SystemInstruction *string          `json:"system_instruction"`
	Tools             []models.Tool    `json:"tools"`
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var req exportRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := models.ValidateTools(req.Tools); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	si := ""
	if req.SystemInstruction != nil {
		si = *req.SystemInstruction
	}

	target := &attachmentTarget{w: w}
	if err := models.DownloadJSONL(r.Context(), target, req.Datasets, si, req.Tools); err != nil {
		h.logger.Error("export", "err", err)
		if !target.opened {
			writeJSONError(w, http.StatusInternalServerError, "export failed")
		}
		return
	}
	h.metrics.ObserveExport(len(req.Datasets))
}

// attachmentTarget turns the response into a file download.
type attachmentTarget struct {
	w      http.ResponseWriter
	opened bool
}

func (t *attachmentTarget) Open(name, mediaType string) (io.WriteCloser, error) {
	t.opened = true
	t.w.Header().Set("Content-Type", mediaType)
	t.w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	t.w.WriteHeader(http.StatusOK)
	return responseCloser{t.w}, nil
}

type responseCloser struct {
	http.ResponseWriter
}

func (c responseCloser) Close() error {
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// ----------------------------
// Clone
// ----------------------------

func (h *Handler) handleClone(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var d models.Dataset
	if err := decodeJSON(r.Body, &d); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	out := models.CloneDataset(d)
	if parseBoolDefault(r.URL.Query().Get("new_id"), false) {
		out.ID = h.newID()
	}
	writeJSON(w, http.StatusOK, out)
}

// ----------------------------
// Helpers
// ----------------------------

func parseIntDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return i
}

func parseBoolDefault(s string, fallback bool) bool {
	if s == "" {
		return fallback
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "y" {
		return true
	}
	if s == "0" || s == "false" || s == "no" || s == "n" {
		return false
	}
	return fallback
}

func decodeJSON(body io.Reader, dst any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}
