package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRouteLabel_CollapsesIDs(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/analyses/0b8f7c1e-3c1a-4d8e-9a77-5f0e2d7c9b11", nil)
	assert.Equal(t, "/api/analyses/{id}", routeLabel(r))

	r.Pattern = "GET /api/analyses/{id}"
	assert.Equal(t, "GET /api/analyses/{id}", routeLabel(r))
}

func TestMiddleware_RecordsStatus(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/api/analyses", "202"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyses", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/api/analyses", "202"))
	assert.Equal(t, before+1, after)
}

func TestJobHelpers(t *testing.T) {
	before := testutil.ToFloat64(JobsTotal.WithLabelValues("dispatch_analysis", "failed"))
	JobFailed("dispatch_analysis")
	assert.Equal(t, before+1, testutil.ToFloat64(JobsTotal.WithLabelValues("dispatch_analysis", "failed")))

	cb := testutil.ToFloat64(CallbacksTotal.WithLabelValues(CallbackDuplicate))
	CallbackHandled(CallbackDuplicate)
	assert.Equal(t, cb+1, testutil.ToFloat64(CallbacksTotal.WithLabelValues(CallbackDuplicate)))
}
