package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorsAreScraped(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg, reg)
	m.IndexBuildsTotal.WithLabelValues("success").Inc()
	m.IndexDocuments.Set(42)
	m.IndexTerms.WithLabelValues("terms").Set(1200)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("success")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.IndexDocuments))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "docindex_index_documents 42")
	assert.Contains(t, rec.Body.String(), `docindex_index_terms{table="terms"} 1200`)
}
