package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_Lookup_Success(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		gotQuery map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/conditions", r.URL.Path)
		mu.Lock()
		gotQuery = map[string]string{
			"venue": r.URL.Query().Get("venue"),
			"at":    r.URL.Query().Get("at"),
			"key":   r.URL.Query().Get("key"),
		}
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"temperature_c":19.5,"humidity":64,"wind_speed_kmh":12,"precipitation_mm":0,"conditions":"clear"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "secret"})
	at := time.Date(2026, 8, 26, 18, 0, 0, 0, time.UTC)
	info, ok, err := client.Lookup(context.Background(), "Emirates Stadium", at)
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 19.5, info.TemperatureC, 1e-9)
	require.Equal(t, "clear", info.Conditions)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "Emirates Stadium", gotQuery["venue"])
	require.Equal(t, "2026-08-26T18:00:00Z", gotQuery["at"])
	require.Equal(t, "secret", gotQuery["key"])
}

func TestClient_Lookup_UnknownVenueIsAbsence(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, ok, err := client.Lookup(context.Background(), "Nowhere Park", time.Now())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClient_Lookup_EmptyPayloadIsAbsence(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, ok, err := client.Lookup(context.Background(), "Arena", time.Now())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClient_Lookup_ServerErrorSurfaces(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, _, err := client.Lookup(context.Background(), "Arena", time.Now())
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 502")
}

func TestClient_Lookup_EmptyVenueSkipsRequest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected for an empty venue")
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, ok, err := client.Lookup(context.Background(), "", time.Now())
	require.NoError(t, err)
	require.False(t, ok)
}
