package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quarterline/sportscrape/internal/runner"
)

type stubReporter struct {
	report  runner.RunReport
	running bool
}

func (s *stubReporter) Report() runner.RunReport { return s.report }
func (s *stubReporter) Running() bool            { return s.running }

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	srv := NewServer(&stubReporter{}, nil)
	rec := get(t, srv.Handler(), "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	srv := NewServer(&stubReporter{}, nil)
	rec := get(t, srv.Handler(), "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RunStatus(t *testing.T) {
	t.Parallel()

	reporter := &stubReporter{
		running: true,
		report: runner.RunReport{
			RunID:     "run-1",
			Attempted: 7,
			Complete:  5,
			Degraded:  1,
			Failed:    1,
		},
	}
	srv := NewServer(reporter, nil)
	rec := get(t, srv.Handler(), "/v1/run")

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Running bool             `json:"running"`
		Report  runner.RunReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Running)
	require.Equal(t, "run-1", body.Report.RunID)
	require.Equal(t, 7, body.Report.Attempted)
	require.Equal(t, 5, body.Report.Complete)
}

func TestServer_RunStatusWithoutCoordinator(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, nil)
	rec := get(t, srv.Handler(), "/v1/run")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_UnknownRouteIs404(t *testing.T) {
	t.Parallel()

	srv := NewServer(&stubReporter{}, nil)
	rec := get(t, srv.Handler(), "/v1/unknown")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
