package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()

	m.ChunksIngested(3)
	m.ChunksIngested(2)
	m.Answered("answered")
	m.Answered("fallback")
	m.Answered("fallback")
	m.ObserveRequest("/api/chat", "POST", "200", 0.2)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.ingestedChunks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.answers.WithLabelValues("answered")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.answers.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/chat", "POST", "200")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "docqa_ingested_chunks_total 5")
	assert.Contains(t, string(body), `docqa_answers_total{outcome="fallback"} 2`)
}
