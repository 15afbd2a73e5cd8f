package httpserver

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/feldman-vss-backend/api"
)

type pingRegistrar struct{}

func (pingRegistrar) RegisterRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("pong"))
	})
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(&api.HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		Log:                      slog.New(slog.NewTextHandler(io.Discard, nil)),
		DrainDuration:            time.Millisecond,
		GracefulShutdownDuration: time.Second,
	}, pingRegistrar{})
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, server *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_MountsHandlerRoutes(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.srv.Handler)
	defer ts.Close()

	status, body := get(t, ts, "/ping")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pong", body)

	status, _ = get(t, ts, "/livez")
	assert.Equal(t, http.StatusOK, status)
}

func TestServer_DrainCycle(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.srv.Handler)
	defer ts.Close()

	status, _ := get(t, ts, "/readyz")
	assert.Equal(t, http.StatusOK, status)

	status, body := get(t, ts, "/drain")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "draining")

	status, _ = get(t, ts, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = get(t, ts, "/undrain")
	assert.Equal(t, http.StatusOK, status)

	status, _ = get(t, ts, "/readyz")
	assert.Equal(t, http.StatusOK, status)
}
