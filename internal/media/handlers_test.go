package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entdecider/entdecider/internal/testutil"
)

func newHandlerFixture(t *testing.T) (*Service, *echo.Echo, *testutil.TestDB) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	service := NewService(tdb.Conn, tdb.Logger)
	e := echo.New()
	NewHandlers(service).RegisterRoutes(e.Group("/api/media"))
	return service, e, tdb
}

func postForm(t *testing.T, e *echo.Echo, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestUpdateMarksClearEachOther(t *testing.T) {
	s, e, tdb := newHandlerFixture(t)
	defer tdb.Close()
	ctx := context.Background()

	elem := createElement(t, s, "https://example.org/video/marks", time.Now().Add(-time.Hour))
	require.NoError(t, s.SetIgnored(ctx, []int64{elem.ID}))

	path := "/api/media/" + strconv.FormatInt(elem.ID, 10)
	rec := postForm(t, e, path, url.Values{"watched": {"true"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	got, err := s.GetByID(ctx, elem.ID)
	require.NoError(t, err)
	assert.True(t, got.Watched)
	assert.False(t, got.Ignored)

	rec = postForm(t, e, path, url.Values{"ignored": {"true"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	got, err = s.GetByID(ctx, elem.ID)
	require.NoError(t, err)
	assert.False(t, got.Watched)
	assert.True(t, got.Ignored)
}

func TestUpdateRejectsUnknownKey(t *testing.T) {
	s, e, tdb := newHandlerFixture(t)
	defer tdb.Close()

	elem := createElement(t, s, "https://example.org/video/keys", time.Now().Add(-time.Hour))
	path := "/api/media/" + strconv.FormatInt(elem.ID, 10)
	rec := postForm(t, e, path, url.Values{"watchedd": {"true"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
