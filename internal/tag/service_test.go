package tag

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entdecider/entdecider/internal/collection"
	"github.com/entdecider/entdecider/internal/media"
	"github.com/entdecider/entdecider/internal/testutil"
)

type fixture struct {
	tags        *Service
	media       *media.Service
	collections *collection.Service
	tdb         *testutil.TestDB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	return &fixture{
		tags:        NewService(tdb.Conn, tdb.Logger),
		media:       media.NewService(tdb.Conn, tdb.Logger),
		collections: collection.NewService(tdb.Conn, tdb.Logger),
		tdb:         tdb,
	}
}

func (f *fixture) createTag(t *testing.T, title string) *Tag {
	t.Helper()
	tg, err := f.tags.Create(context.Background(), CreateInput{
		Title:             title,
		UseForPreferences: true,
	})
	require.NoError(t, err)
	return tg
}

func (f *fixture) createElement(t *testing.T, uri string) *media.Element {
	t.Helper()
	released := time.Now().Add(-time.Hour)
	elem, err := f.media.Create(context.Background(), media.CreateInput{
		URI:         uri,
		Title:       uri,
		ReleaseDate: &released,
		Length:      600,
	})
	require.NoError(t, err)
	return elem
}

func TestCreateAndList(t *testing.T) {
	f := newFixture(t)
	defer f.tdb.Close()

	f.createTag(t, "comedy")
	f.createTag(t, "action")

	tags, err := f.tags.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "action", tags[0].Title)
	assert.Equal(t, "comedy", tags[1].Title)
}

func TestClosureFollowsSuperTags(t *testing.T) {
	f := newFixture(t)
	defer f.tdb.Close()
	ctx := context.Background()

	video := f.createTag(t, "video")
	series := f.createTag(t, "series")
	sitcom := f.createTag(t, "sitcom")

	require.NoError(t, f.tags.AddSuperTag(ctx, series.ID, video.ID))
	require.NoError(t, f.tags.AddSuperTag(ctx, sitcom.ID, series.ID))

	closure, err := f.tags.Closure(ctx, sitcom.ID)
	require.NoError(t, err)
	ids := make([]int64, 0, len(closure))
	for _, tg := range closure {
		ids = append(ids, tg.ID)
	}
	assert.ElementsMatch(t, []int64{sitcom.ID, series.ID, video.ID}, ids)
}

func TestElementTagsIncludeCollectionTags(t *testing.T) {
	f := newFixture(t)
	defer f.tdb.Close()
	ctx := context.Background()

	elem := f.createElement(t, "https://example.org/e1")
	coll, err := f.collections.Create(ctx, collection.CreateInput{
		URI:   "https://example.org/show",
		Title: "Show",
	})
	require.NoError(t, err)
	_, err = f.collections.AddEpisode(ctx, coll.ID, elem.ID, 0, 0)
	require.NoError(t, err)

	direct := f.createTag(t, "direct")
	inherited := f.createTag(t, "inherited")
	require.NoError(t, f.tags.AssignToElement(ctx, elem.ID, direct.ID))
	require.NoError(t, f.tags.AssignToCollection(ctx, coll.ID, inherited.ID))

	tags, err := f.tags.ElementTags(ctx, elem.ID)
	require.NoError(t, err)
	titles := make([]string, 0, len(tags))
	for _, tg := range tags {
		titles = append(titles, tg.Title)
	}
	assert.ElementsMatch(t, []string{"direct", "inherited"}, titles)
}

func TestAllElementsTagsResolvesClosure(t *testing.T) {
	f := newFixture(t)
	defer f.tdb.Close()
	ctx := context.Background()

	elem := f.createElement(t, "https://example.org/e1")
	other := f.createElement(t, "https://example.org/e2")

	sub := f.createTag(t, "sub")
	super := f.createTag(t, "super")
	hidden, err := f.tags.Create(ctx, CreateInput{Title: "hidden", UseForPreferences: false})
	require.NoError(t, err)

	require.NoError(t, f.tags.AddSuperTag(ctx, sub.ID, super.ID))
	require.NoError(t, f.tags.AssignToElement(ctx, elem.ID, sub.ID))
	require.NoError(t, f.tags.AssignToElement(ctx, elem.ID, hidden.ID))

	all, err := f.tags.AllElementsTags(ctx)
	require.NoError(t, err)

	ids := make([]int64, 0, len(all[elem.ID]))
	for _, tg := range all[elem.ID] {
		ids = append(ids, tg.ID)
	}
	// The closure contains the sub tag and its super tag, but never
	// tags excluded from preferences.
	assert.ElementsMatch(t, []int64{sub.ID, super.ID}, ids)
	assert.Empty(t, all[other.ID])
}

func TestScrubTemporary(t *testing.T) {
	f := newFixture(t)
	defer f.tdb.Close()
	ctx := context.Background()

	keep := f.createTag(t, "keep")
	tmp, err := f.tags.GenTemporary(ctx, "Collection: Show")
	require.NoError(t, err)
	assert.True(t, tmp.IsTemporary())
	assert.False(t, keep.IsTemporary())

	deleted, err := f.tags.ScrubTemporary(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	tags, err := f.tags.List(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "keep", tags[0].Title)
}
