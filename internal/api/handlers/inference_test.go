package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Harshitk-cp/wellspring/internal/bayes"
	"github.com/Harshitk-cp/wellspring/internal/netdef"
	"github.com/Harshitk-cp/wellspring/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReloadStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"embedded model", service.ErrNoModelSource, http.StatusConflict},
		{"bad definition", fmt.Errorf("%w: name is required", netdef.ErrInvalidDefinition), http.StatusUnprocessableEntity},
		{"bad extension", fmt.Errorf("%w: model.toml", netdef.ErrUnsupportedFormat), http.StatusUnprocessableEntity},
		{"cpd shape", fmt.Errorf("%w: %w", netdef.ErrInvalidDefinition, bayes.ErrCPDShape), http.StatusUnprocessableEntity},
		{"bare config error", bayes.ErrMissingCPD, http.StatusUnprocessableEntity},
		{"missing file", fmt.Errorf("stat model: %w", os.ErrNotExist), http.StatusInternalServerError},
		{"io failure", errors.New("read definition: input/output error"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reloadStatus(tt.err))
		})
	}
}

func newReloadHandler(t *testing.T, path string) *ModelHandler {
	t.Helper()
	models, err := service.NewModelService(path, bayes.MinNeighbors, zap.NewNop())
	require.NoError(t, err)
	return NewModelHandler(service.NewInferenceService(models, zap.NewNop()), models, zap.NewNop())
}

func TestModelHandler_ReloadMissingFileIsServerError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, netdef.DefaultSource(), 0o600))
	h := newReloadHandler(t, path)

	require.NoError(t, os.Remove(path))
	rec := httptest.NewRecorder()
	h.Reload(rec, httptest.NewRequest(http.MethodPost, "/v1/model/reload", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"failed to reload model"}`, rec.Body.String())
}

func TestModelHandler_ReloadRaggedTableIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, netdef.DefaultSource(), 0o600))
	h := newReloadHandler(t, path)

	ragged := `
name: ragged
variables: [{name: A, cardinality: 2}, {name: B, cardinality: 2}]
edges: [{parent: A, child: B}]
cpds:
  - {variable: A, table: [[0.5], [0.5]]}
  - {variable: B, parents: [A], table: [[0.9, 0.1, 0.1], [0.9]]}
`
	require.NoError(t, os.WriteFile(path, []byte(ragged), 0o600))
	rec := httptest.NewRecorder()
	h.Reload(rec, httptest.NewRequest(http.MethodPost, "/v1/model/reload", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "cpd shape mismatch")
}
