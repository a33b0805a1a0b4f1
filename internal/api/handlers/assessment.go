package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Harshitk-cp/wellspring/internal/domain"
	"github.com/Harshitk-cp/wellspring/internal/export"
	"github.com/Harshitk-cp/wellspring/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AssessmentHandler struct {
	svc    *service.AssessmentService
	logger *zap.Logger
}

func NewAssessmentHandler(svc *service.AssessmentService, logger *zap.Logger) *AssessmentHandler {
	return &AssessmentHandler{svc: svc, logger: logger}
}

// Create assesses contamination risk for one field observation.
func (h *AssessmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var obs domain.Observation
	if err := decodeJSON(w, r, &obs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.AssessContamination(r.Context(), obs)
	if err != nil {
		writeServiceError(w, err, "failed to assess contamination")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Pump assesses pump failure risk. The age category comes from the pump_age
// query parameter or the request body.
func (h *AssessmentHandler) Pump(w http.ResponseWriter, r *http.Request) {
	var obs domain.Observation
	if err := decodeJSON(w, r, &obs); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if s := r.URL.Query().Get("pump_age"); s != "" {
		age, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid pump_age")
			return
		}
		obs.PumpAge = &age
	}
	if obs.PumpAge == nil {
		writeError(w, http.StatusBadRequest, "pump_age is required")
		return
	}

	res, err := h.svc.AssessPump(r.Context(), *obs.PumpAge, obs)
	if err != nil {
		writeServiceError(w, err, "failed to assess pump")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *AssessmentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid assessment id")
		return
	}

	a, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to get assessment")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type listAssessmentsResponse struct {
	Assessments []domain.Assessment `json:"assessments"`
	Count       int                 `json:"count"`
}

func (h *AssessmentHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.svc.History(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list assessments", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list assessments")
		return
	}
	writeJSON(w, http.StatusOK, listAssessmentsResponse{Assessments: items, Count: len(items)})
}

func (h *AssessmentHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Clear(r.Context())
	if err != nil {
		h.logger.Error("failed to clear assessments", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear assessments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// Export downloads the history as CSV or XLSX.
func (h *AssessmentHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// render first so a failure can still be reported as JSON
	var buf bytes.Buffer
	if err := h.svc.Export(r.Context(), opts, format, &buf); err != nil {
		h.logger.Error("failed to export assessments", zap.String("format", string(format)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to export assessments")
		return
	}

	filename := fmt.Sprintf("assessments-%s.%s", time.Now().UTC().Format("20060102-150405"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func parseListOpts(r *http.Request) (domain.ListOpts, error) {
	q := r.URL.Query()
	var opts domain.ListOpts

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return opts, errors.New("invalid limit")
		}
		opts.Limit = n
	}
	switch kind := domain.AssessmentKind(q.Get("kind")); kind {
	case "":
	case domain.AssessmentContamination, domain.AssessmentPump:
		opts.Kind = kind
	default:
		return opts, fmt.Errorf("invalid kind %q", kind)
	}
	if s := q.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return opts, errors.New("invalid since: expected RFC 3339 timestamp")
		}
		opts.Since = t
	}
	return opts, nil
}
