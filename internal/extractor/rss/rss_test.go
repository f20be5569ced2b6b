package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entdecider/entdecider/internal/config"
	"github.com/entdecider/entdecider/internal/extractor"
	"github.com/entdecider/entdecider/internal/testutil"
)

func newTestSource(t *testing.T) *Source {
	t.Helper()
	return New(config.Default().Extractors, testutil.NewTestLogger(t))
}

func TestSuitable(t *testing.T) {
	src := newTestSource(t)

	assert.Equal(t, extractor.SuitableAlways, src.Suitable("rss+https://example.org/feed.xml"))
	assert.Equal(t, extractor.SuitableFallback, src.Suitable("https://example.org/feed.xml"))
	assert.Equal(t, extractor.SuitableNo, src.Suitable("ftp://example.org/feed.xml"))
	assert.Equal(t, extractor.SuitableNo, src.Suitable("rss+ftp://example.org/feed.xml"))
}

func TestFetchCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssSample))
	}))
	defer server.Close()

	src := newTestSource(t)
	data, err := src.FetchCollection(context.Background(), "rss+"+server.URL)
	require.NoError(t, err)

	assert.Equal(t, "rss+"+server.URL, data.URI)
	assert.Equal(t, server.URL, data.Key)
	assert.Equal(t, "[rss] Weekly Show", data.Title)
	require.NotNil(t, data.WatchInOrder)
	assert.True(t, *data.WatchInOrder)
	assert.Equal(t, []string{server.URL}, data.ExtraURIs)

	require.Len(t, data.Episodes, 2)
	first := data.Episodes[0].Media
	assert.Equal(t, "Episode One", first.Title)
	assert.Equal(t, "https://example.org/ep1", first.URI)
	assert.Equal(t, "ep-1", first.Key)
	assert.Equal(t, "First episode", first.Description)
	assert.Equal(t, "https://example.org/ep1.jpg", first.ThumbnailURI)
	require.NotNil(t, first.ReleaseDate)
}

func TestFetchCollectionHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	src := newTestSource(t)
	_, err := src.FetchCollection(context.Background(), server.URL)
	assert.ErrorIs(t, err, extractor.ErrFetchFailed)
}
