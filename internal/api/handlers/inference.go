package handlers

import (
	"errors"
	"net/http"

	"github.com/Harshitk-cp/wellspring/internal/bayes"
	"github.com/Harshitk-cp/wellspring/internal/netdef"
	"github.com/Harshitk-cp/wellspring/internal/service"
	"go.uber.org/zap"
)

type InferenceHandler struct {
	svc    *service.InferenceService
	logger *zap.Logger
}

func NewInferenceHandler(svc *service.InferenceService, logger *zap.Logger) *InferenceHandler {
	return &InferenceHandler{svc: svc, logger: logger}
}

func (h *InferenceHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req service.QueryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Targets) == 0 {
		writeError(w, http.StatusBadRequest, "targets is required")
		return
	}

	res, err := h.svc.Query(r.Context(), req)
	if err != nil {
		h.logFailure("query", err)
		writeServiceError(w, err, "failed to run query")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *InferenceHandler) Sensitivity(w http.ResponseWriter, r *http.Request) {
	var req service.SensitivityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}

	res, err := h.svc.Sensitivity(r.Context(), req)
	if err != nil {
		h.logFailure("sensitivity", err)
		writeServiceError(w, err, "failed to run sensitivity analysis")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *InferenceHandler) Scenario(w http.ResponseWriter, r *http.Request) {
	var req service.ScenarioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if mode := r.URL.Query().Get("mode"); mode != "" {
		req.Mode = mode
	}

	res, err := h.svc.Scenario(r.Context(), req)
	if err != nil {
		h.logFailure("scenario", err)
		writeServiceError(w, err, "failed to estimate scenario")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *InferenceHandler) logFailure(op string, err error) {
	if statusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("inference failed", zap.String("op", op), zap.Error(err))
	}
}

type ModelHandler struct {
	svc    *service.InferenceService
	models *service.ModelService
	logger *zap.Logger
}

func NewModelHandler(svc *service.InferenceService, models *service.ModelService, logger *zap.Logger) *ModelHandler {
	return &ModelHandler{svc: svc, models: models, logger: logger}
}

func (h *ModelHandler) Variables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Model())
}

func (h *ModelHandler) Structure(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Structure())
}

// Reload rebuilds the network from its definition file. A definition that
// fails validation leaves the running model untouched.
func (h *ModelHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if _, err := h.models.Reload(); err != nil {
		switch status := reloadStatus(err); status {
		case http.StatusInternalServerError:
			h.logger.Error("model reload failed", zap.Error(err))
			writeError(w, status, "failed to reload model")
		default:
			h.logger.Warn("model reload rejected", zap.Error(err))
			writeError(w, status, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Model())
}

// reloadStatus maps a reload failure to 409 for an embedded model, 422 for a
// definition the caller must fix, and 500 for anything on the server side.
func reloadStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrNoModelSource):
		return http.StatusConflict
	case errors.Is(err, netdef.ErrInvalidDefinition),
		errors.Is(err, netdef.ErrUnsupportedFormat),
		bayes.IsConfigError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
