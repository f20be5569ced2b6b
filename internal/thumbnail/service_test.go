package thumbnail

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entdecider/entdecider/internal/testutil"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}

func TestFromURIIsIdempotent(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()
	svc := NewService(tdb.Conn, tdb.Logger)

	first, err := svc.FromURI(ctx, "https://example.org/a.png")
	require.NoError(t, err)
	second, err := svc.FromURI(ctx, "https://example.org/a.png")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := svc.FromURI(ctx, "https://example.org/b.png")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestReceiveDownloadsOnce(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(pngBytes)
	}))
	defer server.Close()

	svc := NewService(tdb.Conn, tdb.Logger)
	id, err := svc.FromURI(ctx, server.URL+"/thumb.png")
	require.NoError(t, err)

	before, err := svc.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, before.Downloaded())

	thumb, data, err := svc.Receive(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "image/png", thumb.MimeType)
	assert.Equal(t, pngBytes, data)
	assert.NotNil(t, thumb.LastAccessed)

	_, _, err = svc.Receive(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestReceiveRejectsNonImage(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>definitely not an image</html>"))
	}))
	defer server.Close()

	svc := NewService(tdb.Conn, tdb.Logger)
	id, err := svc.FromURI(ctx, server.URL+"/page")
	require.NoError(t, err)

	_, _, err = svc.Receive(ctx, id)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestReceiveMissing(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	svc := NewService(tdb.Conn, tdb.Logger)
	_, _, err := svc.Receive(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPrune(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	svc := NewService(tdb.Conn, tdb.Logger)
	orphan, err := svc.FromURI(ctx, "https://example.org/orphan.png")
	require.NoError(t, err)
	kept, err := svc.FromURI(ctx, "https://example.org/kept.png")
	require.NoError(t, err)

	// reference one thumbnail from an element
	_, err = tdb.Conn.ExecContext(ctx,
		`INSERT INTO media_element (uri, thumbnail_id) VALUES (?, ?)`,
		"https://example.org/v", kept)
	require.NoError(t, err)

	deleted, err := svc.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = svc.GetByID(ctx, orphan)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetByID(ctx, kept)
	assert.NoError(t, err)
}

func TestPruneExpiresStaleBlobs(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	svc := NewService(tdb.Conn, tdb.Logger)
	id, err := svc.FromURI(ctx, "https://example.org/stale.png")
	require.NoError(t, err)

	_, err = tdb.Conn.ExecContext(ctx,
		`INSERT INTO media_element (uri, thumbnail_id) VALUES (?, ?)`,
		"https://example.org/v", id)
	require.NoError(t, err)

	old := time.Now().Add(-48 * time.Hour)
	_, err = tdb.Conn.ExecContext(ctx,
		`UPDATE media_thumbnail SET data = ?, last_downloaded = ?, last_accessed = ? WHERE id = ?`,
		pngBytes, old, old, id)
	require.NoError(t, err)

	_, err = svc.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)

	thumb, err := svc.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, thumb.Downloaded())
}
