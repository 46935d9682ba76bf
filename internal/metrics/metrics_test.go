package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rendis/flowgraph/internal/binder"
	"github.com/rendis/flowgraph/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveBind(t *testing.T) {
	m := New()
	m.ObserveBind(binder.Summary{WorkflowStatus: schema.WorkflowStatusRunning, Unmatched: 2})
	m.ObserveBind(binder.Summary{WorkflowStatus: schema.WorkflowStatusRunning, Swapped: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BindsTotal.WithLabelValues("RUNNING", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BindsTotal.WithLabelValues("RUNNING", "true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.UnmatchedTotal))
}

func TestObserveBuild(t *testing.T) {
	m := New()
	m.ObserveBuild(6, 1)
	m.ObserveBuild(8, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BuildsTotal))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.TreeNodes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconciliationsTotal))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveBuild(3, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "flowgraph_tree_nodes 3")
}
