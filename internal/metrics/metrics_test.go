package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/registration-api/internal/types"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveSubmission(true)
	m.ObserveSubmission(false)
	m.ObserveSubmission(false)
	m.ObserveNext(types.PhasePersonal, true)
	m.ObserveNext(types.PhaseBackground, false)
	m.IncrementDraftFailures("save")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Submissions.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PhaseAdvances.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PhaseRejections.WithLabelValues("3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DraftFailures.WithLabelValues("save")))
}

func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetOpen(true)
	m.IncrementSessionsStarted()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "registration_open 1")
	assert.Contains(t, string(body), "registration_sessions_started_total 1")
}
