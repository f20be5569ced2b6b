package media

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entdecider/entdecider/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *testutil.TestDB) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	return NewService(tdb.Conn, tdb.Logger), tdb
}

func createElement(t *testing.T, s *Service, uri string, released time.Time) *Element {
	t.Helper()
	elem, err := s.Create(context.Background(), CreateInput{
		URI:         uri,
		Title:       "Test " + uri,
		ReleaseDate: &released,
		Length:      600,
	})
	require.NoError(t, err)
	return elem
}

func TestCreateAndGet(t *testing.T) {
	s, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	released := time.Now().Add(-24 * time.Hour)
	elem := createElement(t, s, "https://example.org/video/1", released)

	got, err := s.GetByID(ctx, elem.ID)
	require.NoError(t, err)
	assert.Equal(t, elem.ID, got.ID)
	assert.Equal(t, "https://example.org/video/1", got.URI)
	assert.Equal(t, WatchStateUnmarked, got.WatchState())
	assert.Equal(t, 600, got.LeftLength())

	// The primary URI is registered in the mapping table.
	byURI, err := s.GetByURI(ctx, "https://example.org/video/1")
	require.NoError(t, err)
	assert.Equal(t, elem.ID, byURI.ID)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s, tdb := newTestService(t)
	defer tdb.Close()

	_, err := s.GetByID(context.Background(), 4711)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestURIConflict(t *testing.T) {
	s, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	a := createElement(t, s, "https://example.org/a", time.Now())
	b := createElement(t, s, "https://example.org/b", time.Now())

	require.NoError(t, s.AddURI(ctx, a.ID, "https://mirror.example.org/a"))
	// Re-adding the same mapping is fine.
	require.NoError(t, s.AddURI(ctx, a.ID, "https://mirror.example.org/a"))
	// Claiming it for another element is not.
	assert.ErrorIs(t, s.AddURI(ctx, b.ID, "https://mirror.example.org/a"), ErrURIConflict)
}

func TestWatchStateTransitions(t *testing.T) {
	s, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	elem := createElement(t, s, "https://example.org/video/2", time.Now().Add(-time.Hour))

	require.NoError(t, s.SetIgnored(ctx, []int64{elem.ID}))
	got, err := s.GetByID(ctx, elem.ID)
	require.NoError(t, err)
	assert.Equal(t, WatchStateIgnored, got.WatchState())

	// Marking watched clears the ignored mark.
	require.NoError(t, s.SetWatched(ctx, []int64{elem.ID}))
	got, err = s.GetByID(ctx, elem.ID)
	require.NoError(t, err)
	assert.Equal(t, WatchStateWatched, got.WatchState())
	assert.False(t, got.Ignored)
	assert.Equal(t, 0, got.LeftLength())
}

func TestProgressMakesStarted(t *testing.T) {
	s, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	elem := createElement(t, s, "https://example.org/video/3", time.Now().Add(-time.Hour))
	progress := 120
	require.NoError(t, s.Update(ctx, elem.ID, UpdateInput{Progress: &progress}))

	got, err := s.GetByID(ctx, elem.ID)
	require.NoError(t, err)
	assert.True(t, got.Started())
	assert.Equal(t, 480, got.LeftLength())

	started, err := s.ListStarted(ctx, 0)
	require.NoError(t, err)
	require.Len(t, started, 1)
	assert.Equal(t, elem.ID, started[0].ID)
}

func TestBlockingGatesConsidered(t *testing.T) {
	s, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	blocker := createElement(t, s, "https://example.org/part1", time.Now().Add(-48*time.Hour))
	blocked := createElement(t, s, "https://example.org/part2", time.Now().Add(-24*time.Hour))

	require.NoError(t, s.AddBlocking(ctx, blocker.ID, blocked.ID))

	considered, err := s.AreConsidered(ctx, []int64{blocker.ID, blocked.ID})
	require.NoError(t, err)
	assert.True(t, considered[blocker.ID])
	assert.False(t, considered[blocked.ID])

	// Finishing the blocker releases the blocked element. An ignored
	// blocker would do the same.
	require.NoError(t, s.SetWatched(ctx, []int64{blocker.ID}))
	ok, err := s.IsConsidered(ctx, blocked.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.RemoveBlocking(ctx, blocker.ID, blocked.ID))
	blockers, err := s.BlockedBy(ctx, blocked.ID)
	require.NoError(t, err)
	assert.Empty(t, blockers)
}

func TestUnreleasedIsNotConsidered(t *testing.T) {
	s, tdb := newTestService(t)
	defer tdb.Close()

	elem := createElement(t, s, "https://example.org/future", time.Now().Add(24*time.Hour))
	ok, err := s.IsConsidered(context.Background(), elem.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetDependentChainsByReleaseDate(t *testing.T) {
	s, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	// Created out of release order on purpose.
	second := createElement(t, s, "https://example.org/ep2", time.Now().Add(-24*time.Hour))
	first := createElement(t, s, "https://example.org/ep1", time.Now().Add(-48*time.Hour))
	third := createElement(t, s, "https://example.org/ep3", time.Now().Add(-12*time.Hour))

	require.NoError(t, s.SetDependent(ctx, []int64{third.ID, first.ID, second.ID}))

	considered, err := s.AreConsidered(ctx, []int64{first.ID, second.ID, third.ID})
	require.NoError(t, err)
	assert.True(t, considered[first.ID])
	assert.False(t, considered[second.ID])
	assert.False(t, considered[third.ID])

	require.NoError(t, s.SetWatched(ctx, []int64{first.ID}))
	considered, err = s.AreConsidered(ctx, []int64{second.ID, third.ID})
	require.NoError(t, err)
	assert.True(t, considered[second.ID])
	assert.False(t, considered[third.ID])
}

func TestLookupCacheGatesConsidered(t *testing.T) {
	s, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	ep1 := createElement(t, s, "https://example.org/s01e01", time.Now().Add(-48*time.Hour))
	ep2 := createElement(t, s, "https://example.org/s01e02", time.Now().Add(-24*time.Hour))

	// Simulate a rebuilt order cache for a watch-in-order collection.
	_, err := tdb.Conn.ExecContext(ctx, `
		INSERT INTO element_lookup_cache (collection_id, element1, element2)
		VALUES (1, ?, ?)`, ep1.ID, ep2.ID)
	require.NoError(t, err)

	considered, err := s.AreConsidered(ctx, []int64{ep1.ID, ep2.ID})
	require.NoError(t, err)
	assert.True(t, considered[ep1.ID])
	assert.False(t, considered[ep2.ID])

	require.NoError(t, s.SetIgnored(ctx, []int64{ep1.ID}))
	ok, err := s.IsConsidered(ctx, ep2.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMerge(t *testing.T) {
	s, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	src := createElement(t, s, "https://example.org/dup", time.Now().Add(-time.Hour))
	dst := createElement(t, s, "https://example.org/orig", time.Now().Add(-time.Hour))

	progress := 300
	require.NoError(t, s.Update(ctx, src.ID, UpdateInput{Progress: &progress}))
	require.NoError(t, s.Merge(ctx, src.ID, dst.ID))

	_, err := s.GetByID(ctx, src.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetByID(ctx, dst.ID)
	require.NoError(t, err)
	assert.Equal(t, 300, got.Progress)

	// The duplicate's URI now resolves to the surviving element.
	byURI, err := s.GetByURI(ctx, "https://example.org/dup")
	require.NoError(t, err)
	assert.Equal(t, dst.ID, byURI.ID)
}

func TestListFilters(t *testing.T) {
	s, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	short := createElement(t, s, "https://example.org/short", time.Now().Add(-time.Hour))
	long := createElement(t, s, "https://example.org/long", time.Now().Add(-time.Hour))
	length := 7200
	require.NoError(t, s.Update(ctx, long.ID, UpdateInput{Length: &length}))

	elements, err := s.List(ctx, ListOptions{
		OnlyConsidered: true,
		MaxLength:      900,
		Order:          "shortest",
	})
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, short.ID, elements[0].ID)
}

func TestParseTimedelta(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{input: "90", want: 90},
		{input: "2:30", want: 150},
		{input: "1:02:03", want: 3723},
		{input: "0:00", want: 0},
		{input: "", wantErr: true},
		{input: "1:2:3:4", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "1::2", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseTimedelta(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		assert.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}
