package servers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/geodata-registry/api"
	"github.com/ruteri/geodata-registry/api/recordhandler"
	"github.com/ruteri/geodata-registry/recordstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, pprof bool, handlers ...RouteRegistrar) *Server {
	t.Helper()
	return New(&api.HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		EnablePprof:              pprof,
		Log:                      slog.New(slog.NewTextHandler(io.Discard, nil)),
		GracefulShutdownDuration: time.Second,
	}, nil, handlers...)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthAndDrain(t *testing.T) {
	router := newTestServer(t, false).Router()

	w := get(t, router, "/livez")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"alive"}`, w.Body.String())

	w = get(t, router, "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(t, router, "/drain")
	assert.JSONEq(t, `{"status":"draining"}`, w.Body.String())
	w = get(t, router, "/drain")
	assert.JSONEq(t, `{"status":"already draining"}`, w.Body.String())

	w = get(t, router, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = get(t, router, "/undrain")
	assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())
	w = get(t, router, "/undrain")
	assert.JSONEq(t, `{"status":"already ready"}`, w.Body.String())

	w = get(t, router, "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
}

type pingHandler struct{}

func (pingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("pong")) })
}

func TestMountsHandlers(t *testing.T) {
	records := recordhandler.NewHandler(recordstore.NewMemoryStore(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := newTestServer(t, false, pingHandler{}, records).Router()

	w := get(t, router, "/ping")
	assert.Equal(t, "pong", w.Body.String())

	w = get(t, router, "/api/blockchain/data")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data_ids":[],"count":0}`, w.Body.String())

	w = get(t, router, "/debug/pprof/")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPprof(t *testing.T) {
	router := newTestServer(t, true).Router()
	w := get(t, router, "/debug/pprof/")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestShutdownWithoutStart(t *testing.T) {
	srv := newTestServer(t, false)
	srv.Shutdown()
	assert.False(t, srv.isReady.Load())
}
