package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entdecider/entdecider/internal/config"
	"github.com/entdecider/entdecider/internal/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	t.Cleanup(func() { tdb.Close() })

	srv, err := NewServer(tdb.Conn, config.Default(), tdb.Logger)
	require.NoError(t, err)
	return srv
}

func get(srv *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t)

	rec := get(srv, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRoutesWired(t *testing.T) {
	srv := newTestServer(t)

	// one route per mounted group
	paths := []string{
		"/",
		"/api/media/list",
		"/api/collection/list",
		"/static/style.css",
	}
	for _, path := range paths {
		rec := get(srv, path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestUnknownThumbnail(t *testing.T) {
	srv := newTestServer(t)

	rec := get(srv, "/thumbnail/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
