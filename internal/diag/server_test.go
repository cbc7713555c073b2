package diag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/metagraph/internal/metadata"
	"github.com/conduit-lang/metagraph/internal/process"
)

// countingProvider returns a valid item for every identifier
type countingProvider struct {
	calls int
}

func (p *countingProvider) ProvidesType() string { return "MID:X" }

func (p *countingProvider) Get(id string) (metadata.Item, error) {
	p.calls++
	item := metadata.NewBaseItem(id, true)
	return item, nil
}

func setupServer(t *testing.T) (*metadata.Service, *countingProvider, *Server) {
	t.Helper()
	svc, err := metadata.NewService()
	require.NoError(t, err)
	p := &countingProvider{}
	require.NoError(t, svc.RegisterProvider(p))
	require.NoError(t, svc.Dependencies().RegisterDependency("file:/a.java", "MID:X#a.Foo"))
	return svc, p, NewServer(svc, process.NewManager(nil), nil)
}

func get(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestServer_Stats(t *testing.T) {
	svc, _, s := setupServer(t)
	_, err := svc.Get("MID:X#a.Foo")
	require.NoError(t, err)
	_, err = svc.Get("MID:X#a.Foo")
	require.NoError(t, err)

	rec := get(t, s, http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint64(1), body.CacheHits)
	assert.Equal(t, uint64(1), body.CacheMisses)
	assert.InDelta(t, 50.0, body.HitRate, 0.001)
	assert.Equal(t, svc.String(), body.Summary)
}

func TestServer_Providers(t *testing.T) {
	_, _, s := setupServer(t)

	rec := get(t, s, http.MethodGet, "/providers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"providers":["MID:X"]}`, rec.Body.String())
}

func TestServer_Dependencies(t *testing.T) {
	_, _, s := setupServer(t)

	rec := get(t, s, http.MethodGet, "/dependencies?upstream=file:/a.java")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"upstream":"file:/a.java","downstream":["MID:X#a.Foo"]}`, rec.Body.String())

	rec = get(t, s, http.MethodGet, "/dependencies")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Edges(t *testing.T) {
	_, _, s := setupServer(t)

	rec := get(t, s, http.MethodGet, "/edges")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"edges":[{"upstream":"file:/a.java","downstream":"MID:X#a.Foo","static":false}]}`, rec.Body.String())
}

func TestServer_Notify(t *testing.T) {
	_, p, s := setupServer(t)

	rec := get(t, s, http.MethodPost, "/notify?upstream=file:/a.java")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, p.calls)

	var body StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint64(1), body.Notifications)

	rec = get(t, s, http.MethodPost, "/notify?upstream=MID:")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, s, http.MethodGet, "/notify?upstream=file:/a.java")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Rescans(t *testing.T) {
	svc, _, s := setupServer(t)
	require.NoError(t, svc.Notify("file:/a.java", "MID:X"))

	rec := get(t, s, http.MethodGet, "/rescans")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rescans":["MID:X"]}`, rec.Body.String())
}

func TestServer_ErrorBody(t *testing.T) {
	_, _, s := setupServer(t)

	rec := get(t, s, http.MethodGet, "/dependencies")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "BAD_REQUEST", body.Error.Code)
	assert.Equal(t, http.StatusBadRequest, body.Status)

	rec = get(t, s, http.MethodPost, "/notify?upstream=MID:")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_IDENTIFIER", body.Error.Code)
}
