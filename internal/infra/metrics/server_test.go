package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandlerReportsSourceState(t *testing.T) {
	decode := func(rec *httptest.ResponseRecorder) healthPayload {
		t.Helper()
		var payload healthPayload
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
		return payload
	}

	rec := httptest.NewRecorder()
	healthHandler(func() bool { return false })(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	payload := decode(rec)
	assert.Equal(t, "ok", payload.Status)
	assert.False(t, payload.VideoRegistered)

	rec = httptest.NewRecorder()
	healthHandler(func() bool { return true })(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.True(t, decode(rec).VideoRegistered)

	// nil check is valid and reports no source
	rec = httptest.NewRecorder()
	healthHandler(nil)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.False(t, decode(rec).VideoRegistered)
}
