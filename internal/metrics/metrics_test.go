package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.RecordsRegistered.WithLabelValues("creative").Inc()
	m.Settlements.WithLabelValues(ResultOK).Add(2)

	require.Equal(t, float64(2), testutil.ToFloat64(m.Settlements.WithLabelValues(ResultOK)))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.True(t, strings.Contains(body, `metaads_records_registered_total{kind="creative"} 1`))
	require.True(t, strings.Contains(body, `metaads_settlements_total{result="ok"} 2`))
}
