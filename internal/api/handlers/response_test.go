package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Harshitk-cp/wellspring/internal/bayes"
	"github.com/Harshitk-cp/wellspring/internal/service"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", fmt.Errorf("%w: target is required", service.ErrInvalidInput), http.StatusBadRequest},
		{"no observations", service.ErrNoObservations, http.StatusBadRequest},
		{"unknown variable", fmt.Errorf("%w: Fluoride", bayes.ErrUnknownVariable), http.StatusBadRequest},
		{"state range", bayes.ErrStateRange, http.StatusBadRequest},
		{"unknown mode", bayes.ErrUnknownMode, http.StatusBadRequest},
		{"not found", service.ErrAssessmentNotFound, http.StatusNotFound},
		{"embedded model", service.ErrNoModelSource, http.StatusConflict},
		{"cycle", &bayes.CycleError{Variables: []string{"A", "B"}}, http.StatusUnprocessableEntity},
		{"normalization", bayes.ErrNormalization, http.StatusUnprocessableEntity},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable},
		{"degenerate", bayes.ErrDegenerateFactor, http.StatusInternalServerError},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestWriteServiceErrorHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, errors.New("pq: password authentication failed"), "failed to run query")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"failed to run query"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	writeServiceError(rec, service.ErrNoObservations, "failed")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least one observation")
}
