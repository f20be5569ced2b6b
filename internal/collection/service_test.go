package collection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entdecider/entdecider/internal/media"
	"github.com/entdecider/entdecider/internal/testutil"
)

type fixture struct {
	collections *Service
	media       *media.Service
	tdb         *testutil.TestDB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	return &fixture{
		collections: NewService(tdb.Conn, tdb.Logger),
		media:       media.NewService(tdb.Conn, tdb.Logger),
		tdb:         tdb,
	}
}

func (f *fixture) createCollection(t *testing.T, uri string, watchInOrder bool) *Collection {
	t.Helper()
	coll, err := f.collections.Create(context.Background(), CreateInput{
		URI:          uri,
		Title:        "Collection " + uri,
		WatchInOrder: watchInOrder,
	})
	require.NoError(t, err)
	return coll
}

func (f *fixture) createEpisode(t *testing.T, coll *Collection, uri string, season, episode, length int, released time.Time) *media.Element {
	t.Helper()
	ctx := context.Background()
	elem, err := f.media.Create(ctx, media.CreateInput{
		URI:         uri,
		Title:       "Episode " + uri,
		ReleaseDate: &released,
		Length:      length,
	})
	require.NoError(t, err)
	_, err = f.collections.AddEpisode(ctx, coll.ID, elem.ID, season, episode)
	require.NoError(t, err)
	return elem
}

func TestCreateAndGet(t *testing.T) {
	f := newFixture(t)
	defer f.tdb.Close()
	ctx := context.Background()

	coll := f.createCollection(t, "https://example.org/show", true)
	got, err := f.collections.GetByID(ctx, coll.ID)
	require.NoError(t, err)
	assert.True(t, got.WatchInOrder)
	assert.True(t, got.WatchInOrderAuto)
	assert.True(t, got.IsRootCollection())

	byURI, err := f.collections.GetByURI(ctx, "https://example.org/show")
	require.NoError(t, err)
	assert.Equal(t, coll.ID, byURI.ID)
}

func TestEpisodeOrdering(t *testing.T) {
	f := newFixture(t)
	defer f.tdb.Close()
	ctx := context.Background()

	coll := f.createCollection(t, "https://example.org/show", true)
	now := time.Now()
	// Insert out of order on purpose.
	s2e1 := f.createEpisode(t, coll, "https://example.org/s02e01", 2, 1, 600, now.Add(-24*time.Hour))
	s1e2 := f.createEpisode(t, coll, "https://example.org/s01e02", 1, 2, 600, now.Add(-72*time.Hour))
	s1e1 := f.createEpisode(t, coll, "https://example.org/s01e01", 1, 1, 600, now.Add(-96*time.Hour))

	links, err := f.collections.Episodes(ctx, coll.ID)
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, s1e1.ID, links[0].Element.ID)
	assert.Equal(t, s1e2.ID, links[1].Element.ID)
	assert.Equal(t, s2e1.ID, links[2].Element.ID)

	first, err := f.collections.FirstEpisode(ctx, coll.ID)
	require.NoError(t, err)
	assert.Equal(t, s1e1.ID, first.Element.ID)

	last, err := f.collections.LastEpisode(ctx, coll.ID)
	require.NoError(t, err)
	assert.Equal(t, s2e1.ID, last.Element.ID)
}

func TestNextEpisodeSkipsMarked(t *testing.T) {
	f := newFixture(t)
	defer f.tdb.Close()
	ctx := context.Background()

	coll := f.createCollection(t, "https://example.org/show", true)
	now := time.Now()
	e1 := f.createEpisode(t, coll, "https://example.org/e1", 0, 0, 600, now.Add(-72*time.Hour))
	e2 := f.createEpisode(t, coll, "https://example.org/e2", 0, 0, 600, now.Add(-48*time.Hour))
	e3 := f.createEpisode(t, coll, "https://example.org/e3", 0, 0, 600, now.Add(-24*time.Hour))

	next, err := f.collections.NextEpisode(ctx, coll.ID)
	require.NoError(t, err)
	assert.Equal(t, e1.ID, next.Element.ID)

	require.NoError(t, f.media.SetWatched(ctx, []int64{e1.ID}))
	require.NoError(t, f.media.SetIgnored(ctx, []int64{e2.ID}))

	next, err = f.collections.NextEpisode(ctx, coll.ID)
	require.NoError(t, err)
	assert.Equal(t, e3.ID, next.Element.ID)

	require.NoError(t, f.media.SetWatched(ctx, []int64{e3.ID}))
	next, err = f.collections.NextEpisode(ctx, coll.ID)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestLookupCacheRebuild(t *testing.T) {
	f := newFixture(t)
	defer f.tdb.Close()
	ctx := context.Background()

	coll := f.createCollection(t, "https://example.org/show", true)
	now := time.Now()
	e1 := f.createEpisode(t, coll, "https://example.org/e1", 0, 0, 600, now.Add(-72*time.Hour))
	e2 := f.createEpisode(t, coll, "https://example.org/e2", 0, 0, 600, now.Add(-48*time.Hour))

	require.NoError(t, f.collections.RebuildLookupCache(ctx, coll.ID))

	considered, err := f.media.AreConsidered(ctx, []int64{e1.ID, e2.ID})
	require.NoError(t, err)
	assert.True(t, considered[e1.ID])
	assert.False(t, considered[e2.ID])

	// Turning the order requirement off frees all episodes.
	off := false
	require.NoError(t, f.collections.Update(ctx, coll.ID, UpdateInput{WatchInOrder: &off}))
	require.NoError(t, f.collections.RebuildLookupCache(ctx, coll.ID))

	considered, err = f.media.AreConsidered(ctx, []int64{e1.ID, e2.ID})
	require.NoError(t, err)
	assert.True(t, considered[e1.ID])
	assert.True(t, considered[e2.ID])
}

func TestWatchInOrderAutoRespectsManualSetting(t *testing.T) {
	f := newFixture(t)
	defer f.tdb.Close()
	ctx := context.Background()

	coll := f.createCollection(t, "https://example.org/show", true)

	// Automatic detection may flip the flag while untouched.
	require.NoError(t, f.collections.SetWatchInOrderAuto(ctx, coll.ID, false))
	got, err := f.collections.GetByID(ctx, coll.ID)
	require.NoError(t, err)
	assert.False(t, got.WatchInOrder)

	// A manual update pins the flag against automatic changes.
	on := true
	require.NoError(t, f.collections.Update(ctx, coll.ID, UpdateInput{WatchInOrder: &on}))
	require.NoError(t, f.collections.SetWatchInOrderAuto(ctx, coll.ID, false))
	got, err = f.collections.GetByID(ctx, coll.ID)
	require.NoError(t, err)
	assert.True(t, got.WatchInOrder)
	assert.False(t, got.WatchInOrderAuto)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	defer f.tdb.Close()
	ctx := context.Background()

	coll := f.createCollection(t, "https://example.org/show", false)
	now := time.Now()
	watched := f.createEpisode(t, coll, "https://example.org/w", 0, 0, 600, now.Add(-72*time.Hour))
	ignored := f.createEpisode(t, coll, "https://example.org/i", 0, 0, 400, now.Add(-48*time.Hour))
	started := f.createEpisode(t, coll, "https://example.org/s", 0, 0, 500, now.Add(-24*time.Hour))

	require.NoError(t, f.media.SetWatched(ctx, []int64{watched.ID}))
	require.NoError(t, f.media.SetIgnored(ctx, []int64{ignored.ID}))
	progress := 100
	require.NoError(t, f.media.Update(ctx, started.ID, media.UpdateInput{Progress: &progress}))

	st, err := f.collections.Stats(ctx, coll.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.WatchedCount)
	assert.Equal(t, 1, st.IgnoredCount)
	assert.Equal(t, 1, st.ToWatchCount)
	// Watched element counts full length, the started one its progress.
	assert.Equal(t, 700, st.WatchedSeconds)
	assert.Equal(t, 400, st.IgnoredSeconds)
	assert.Equal(t, 400, st.ToWatchSeconds)
	assert.Equal(t, 3, st.FullCount())
	assert.Equal(t, 1500, st.FullSeconds())
	assert.False(t, st.Completed())
}

func TestMarkActions(t *testing.T) {
	f := newFixture(t)
	defer f.tdb.Close()
	ctx := context.Background()

	coll := f.createCollection(t, "https://example.org/show", false)
	now := time.Now()
	e1 := f.createEpisode(t, coll, "https://example.org/e1", 0, 0, 600, now.Add(-72*time.Hour))
	e2 := f.createEpisode(t, coll, "https://example.org/e2", 0, 0, 600, now.Add(-48*time.Hour))
	require.NoError(t, f.media.SetIgnored(ctx, []int64{e1.ID}))

	require.NoError(t, f.collections.MarkUnmarkedAs(ctx, coll.ID, media.WatchStateWatched))
	st, err := f.collections.Stats(ctx, coll.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.WatchedCount)
	assert.Equal(t, 1, st.IgnoredCount)

	require.NoError(t, f.collections.ResetIgnoredMarks(ctx, coll.ID))
	got, err := f.media.GetByID(ctx, e1.ID)
	require.NoError(t, err)
	assert.Equal(t, media.WatchStateUnmarked, got.WatchState())
	// The watched mark from before stays.
	got, err = f.media.GetByID(ctx, e2.ID)
	require.NoError(t, err)
	assert.Equal(t, media.WatchStateWatched, got.WatchState())

	require.NoError(t, f.collections.ResetMarks(ctx, coll.ID))
	got, err = f.media.GetByID(ctx, e2.ID)
	require.NoError(t, err)
	assert.Equal(t, media.WatchStateUnmarked, got.WatchState())
}

func TestIgnoredCollectionMarksNewEpisodes(t *testing.T) {
	f := newFixture(t)
	defer f.tdb.Close()
	ctx := context.Background()

	coll := f.createCollection(t, "https://example.org/show", false)
	ignored := true
	require.NoError(t, f.collections.Update(ctx, coll.ID, UpdateInput{Ignored: &ignored}))

	elem := f.createEpisode(t, coll, "https://example.org/new", 0, 0, 600, time.Now())
	got, err := f.media.GetByID(ctx, elem.ID)
	require.NoError(t, err)
	assert.Equal(t, media.WatchStateIgnored, got.WatchState())
}

func TestAddEpisodeReportsChanges(t *testing.T) {
	f := newFixture(t)
	defer f.tdb.Close()
	ctx := context.Background()

	coll := f.createCollection(t, "https://example.org/show", true)
	elem, err := f.media.Create(ctx, media.CreateInput{
		URI:    "https://example.org/e1",
		Title:  "Episode",
		Length: 600,
	})
	require.NoError(t, err)

	changed, err := f.collections.AddEpisode(ctx, coll.ID, elem.ID, 1, 1)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.collections.AddEpisode(ctx, coll.ID, elem.ID, 1, 1)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = f.collections.AddEpisode(ctx, coll.ID, elem.ID, 1, 2)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestDeleteKeepsElements(t *testing.T) {
	f := newFixture(t)
	defer f.tdb.Close()
	ctx := context.Background()

	coll := f.createCollection(t, "https://example.org/show", true)
	elem := f.createEpisode(t, coll, "https://example.org/e1", 0, 0, 600, time.Now())
	require.NoError(t, f.collections.RebuildLookupCache(ctx, coll.ID))

	require.NoError(t, f.collections.Delete(ctx, coll.ID))
	_, err := f.collections.GetByID(ctx, coll.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.media.GetByID(ctx, elem.ID)
	require.NoError(t, err)
	assert.Equal(t, elem.ID, got.ID)
}

func TestAverageReleasePerWeek(t *testing.T) {
	f := newFixture(t)
	defer f.tdb.Close()
	ctx := context.Background()

	coll := f.createCollection(t, "https://example.org/show", true)
	now := time.Now()
	f.createEpisode(t, coll, "https://example.org/e1", 0, 0, 600, now.Add(-14*24*time.Hour))
	f.createEpisode(t, coll, "https://example.org/e2", 0, 0, 600, now.Add(-7*24*time.Hour))

	perWeek, err := f.collections.AverageReleasePerWeek(ctx, coll.ID)
	require.NoError(t, err)
	// Two episodes a week apart, extrapolated span of two weeks.
	assert.InDelta(t, 600, perWeek, 1)
}

func TestLastReleaseDateToWatch(t *testing.T) {
	f := newFixture(t)
	defer f.tdb.Close()
	ctx := context.Background()

	coll := f.createCollection(t, "https://example.org/show", true)
	now := time.Now()
	f.createEpisode(t, coll, "https://example.org/e1", 0, 0, 600, now.Add(-72*time.Hour))
	f.createEpisode(t, coll, "https://example.org/e2", 0, 0, 600, now.Add(-48*time.Hour))
	newest := f.createEpisode(t, coll, "https://example.org/e3", 0, 0, 600, now.Add(-24*time.Hour))

	last, err := f.collections.LastReleaseDateToWatch(ctx, coll.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.WithinDuration(t, now.Add(-24*time.Hour), *last, time.Second)

	// Marked elements drop out of the running.
	require.NoError(t, f.media.SetWatched(ctx, []int64{newest.ID}))
	last, err = f.collections.LastReleaseDateToWatch(ctx, coll.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.WithinDuration(t, now.Add(-48*time.Hour), *last, time.Second)
}

func TestLastRefreshed(t *testing.T) {
	f := newFixture(t)
	defer f.tdb.Close()
	ctx := context.Background()

	last, err := f.collections.LastRefreshed(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	coll := f.createCollection(t, "https://example.org/show", false)
	refreshed := time.Now()
	require.NoError(t, f.collections.Update(ctx, coll.ID, UpdateInput{LastUpdated: &refreshed}))

	last, err = f.collections.LastRefreshed(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.WithinDuration(t, refreshed, *last, time.Second)
}
