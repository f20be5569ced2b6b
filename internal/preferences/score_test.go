package preferences

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entdecider/entdecider/internal/tag"
	"github.com/entdecider/entdecider/internal/testutil"
)

func TestAdaptScoreSharesEquallyWithoutHierarchy(t *testing.T) {
	g := &Graph{
		supers: map[int64][]*tag.Tag{},
		tags:   map[int64]*tag.Tag{},
	}
	a := &tag.Tag{ID: 1, Title: "a", UseForPreferences: true}
	b := &tag.Tag{ID: 2, Title: "b", UseForPreferences: true}
	hidden := &tag.Tag{ID: 3, Title: "hidden", UseForPreferences: false}

	score := NewScore().AdaptScore(g, nil, []*tag.Tag{a, b, hidden}, 1, true)
	assert.InDelta(t, 0.5, score.Points[a.ID], 1e-9)
	assert.InDelta(t, 0.5, score.Points[b.ID], 1e-9)
	assert.Zero(t, score.Points[hidden.ID])
}

func TestAdaptScoreSharesIntoSuperTags(t *testing.T) {
	a := &tag.Tag{ID: 1, Title: "a", UseForPreferences: true}
	super := &tag.Tag{ID: 2, Title: "super", UseForPreferences: true}
	g := &Graph{
		supers: map[int64][]*tag.Tag{a.ID: {super}},
		tags:   map[int64]*tag.Tag{a.ID: a, super.ID: super},
	}

	score := NewScore().AdaptScore(g, nil, []*tag.Tag{a}, 3, true)
	// The direct tag keeps two thirds, the super tag receives one third.
	assert.InDelta(t, 2.0, score.Points[a.ID], 1e-9)
	assert.InDelta(t, 1.0, score.Points[super.ID], 1e-9)
	// Nothing is lost in the distribution.
	total := score.Points[a.ID] + score.Points[super.ID]
	assert.InDelta(t, 3.0, total, 1e-9)
}

func TestAdaptScoreFlatSkipsHierarchy(t *testing.T) {
	a := &tag.Tag{ID: 1, Title: "a", UseForPreferences: true}
	super := &tag.Tag{ID: 2, Title: "super", UseForPreferences: true}
	g := &Graph{
		supers: map[int64][]*tag.Tag{a.ID: {super}},
		tags:   map[int64]*tag.Tag{a.ID: a, super.ID: super},
	}

	score := NewScore().AdaptScore(g, nil, []*tag.Tag{a}, 3, false)
	assert.InDelta(t, 3.0, score.Points[a.ID], 1e-9)
	assert.Zero(t, score.Points[super.ID])
}

func TestScoreArithmetic(t *testing.T) {
	s := &Score{Points: map[int64]float64{1: 2, 2: -1}}

	doubled := s.Mul(2)
	assert.InDelta(t, 4.0, doubled.Points[1], 1e-9)
	assert.InDelta(t, -2.0, doubled.Points[2], 1e-9)

	negated := s.Neg()
	assert.InDelta(t, -2.0, negated.Points[1], 1e-9)

	sum := s.IterScore([]*tag.Tag{{ID: 1}, {ID: 2}, {ID: 99}})
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestBase64Roundtrip(t *testing.T) {
	s := &Score{Points: map[int64]float64{1: 2.5, 42: -3.25}}

	encoded, err := s.ToBase64()
	require.NoError(t, err)

	decoded, err := FromBase64(encoded)
	require.NoError(t, err)
	assert.Equal(t, s.Points, decoded.Points)
}

func TestFromBase64Garbage(t *testing.T) {
	_, err := FromBase64("not base64!!")
	assert.Error(t, err)

	_, err = FromBase64("aGVsbG8=") // valid base64, not gzip
	assert.Error(t, err)
}

func TestLoadGraph(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	tags := tag.NewService(tdb.Conn, tdb.Logger)
	sub, err := tags.Create(ctx, tag.CreateInput{Title: "sub", UseForPreferences: true})
	require.NoError(t, err)
	super, err := tags.Create(ctx, tag.CreateInput{Title: "super", UseForPreferences: true})
	require.NoError(t, err)
	require.NoError(t, tags.AddSuperTag(ctx, sub.ID, super.ID))

	g, err := LoadGraph(ctx, tags)
	require.NoError(t, err)

	got, ok := g.Get(sub.ID)
	require.True(t, ok)
	assert.Equal(t, "sub", got.Title)

	supers := g.superTags(sub.ID)
	require.Len(t, supers, 1)
	assert.Equal(t, super.ID, supers[0].ID)
}
