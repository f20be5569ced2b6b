package preferences

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/entdecider/entdecider/internal/collection"
	"github.com/entdecider/entdecider/internal/media"
	"github.com/entdecider/entdecider/internal/tag"
)

// Generator produces recommendation lists from considered elements.
type Generator struct {
	media       *media.Service
	collections *collection.Service
	tags        *tag.Service
	logger      zerolog.Logger
}

// NewGenerator creates a new recommendation generator.
func NewGenerator(mediaSvc *media.Service, collectionSvc *collection.Service, tagSvc *tag.Service, logger zerolog.Logger) *Generator {
	return &Generator{
		media:       mediaSvc,
		collections: collectionSvc,
		tags:        tagSvc,
		logger:      logger.With().Str("component", "preferences").Logger(),
	}
}

// GenerateOptions controls one recommendation run.
type GenerateOptions struct {
	// Filter selects the candidate elements. OnlyConsidered is forced.
	Filter media.ListOptions
	// Base is the starting preference, usually from the user's cookie.
	Base *Score
	// ScoreAdapt is added to each picked element's tags, pushing
	// similar elements down (positive) or up (negative) the list.
	ScoreAdapt float64
	// Limit caps the result length, 0 means unlimited.
	Limit int
}

// Generate picks elements greedily by score, adapting the preference
// after every pick so one collection does not flood the list. Virtual
// tags per collection and per extractor let the adaption reach elements
// that share no user made tags.
func (g *Generator) Generate(ctx context.Context, opts GenerateOptions) ([]*media.Element, error) {
	filter := opts.Filter
	filter.OnlyConsidered = true
	elements, err := g.media.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, nil
	}

	graph, err := LoadGraph(ctx, g.tags)
	if err != nil {
		return nil, err
	}
	allTags, err := g.tags.AllElementsTags(ctx)
	if err != nil {
		return nil, err
	}
	directTags, err := g.tags.AllElementsDirectTags(ctx)
	if err != nil {
		return nil, err
	}
	memberships, err := g.collections.AllMemberships(ctx)
	if err != nil {
		return nil, err
	}

	// Virtual tags make collections and extractors scoreable without
	// touching the tag table. Negative ids cannot collide with real tags.
	nextVirtualID := int64(-1)
	genVirtual := func(hint string) *tag.Tag {
		t := &tag.Tag{
			ID:                nextVirtualID,
			Title:             "[A] " + hint,
			Notes:             tag.TemporaryIdentifier,
			UseForPreferences: true,
		}
		nextVirtualID--
		graph.AddVirtual(t)
		return t
	}

	collectionTags := make(map[int64]*tag.Tag)
	pinnedCount := make(map[int64]int)
	for _, m := range memberships {
		vt, ok := collectionTags[m.CollectionID]
		if !ok {
			vt = genVirtual("Collection: " + m.CollectionTitle)
			collectionTags[m.CollectionID] = vt
		}
		allTags[m.ElementID] = append(allTags[m.ElementID], vt)
		directTags[m.ElementID] = append(directTags[m.ElementID], vt)
		if m.Pinned {
			pinnedCount[m.ElementID]++
		}
	}

	extractorTags := make(map[string]*tag.Tag)
	for _, elem := range elements {
		vt, ok := extractorTags[elem.ExtractorName]
		if !ok {
			vt = genVirtual("Extractor: " + elem.ExtractorName)
			extractorTags[elem.ExtractorName] = vt
		}
		allTags[elem.ID] = append(allTags[elem.ID], vt)
		directTags[elem.ID] = append(directTags[elem.ID], vt)
	}

	preference := NewScore()
	if opts.Base != nil {
		preference = opts.Base.Clone()
	}

	now := time.Now()
	staticScores := make(map[int64]float64, len(elements))
	staticScore := func(elem *media.Element) float64 {
		if score, ok := staticScores[elem.ID]; ok {
			return score
		}
		pinned := pinnedCount[elem.ID]

		ageNerf := -0.5
		if elem.ReleaseDate != nil && elem.ReleaseDate.Before(now) {
			weeks2 := now.Sub(*elem.ReleaseDate).Hours() / (14 * 24)
			ageNerf = math.Max(-0.5, math.Log(weeks2)-1)
		}
		if pinned > 0 || elem.Started() {
			// soften the age nerf so pinned or started media stay visible
			ageNerf *= 0.1
		}

		nerfs := (1e-8)*math.Log(float64(elem.ID+1000)) + ageNerf
		buffs := 0.5*math.Log(float64(len(allTags[elem.ID]))+1) +
			3*math.Log(float64(pinned)+1)
		if elem.Started() {
			buffs += 2
		}
		score := nerfs - buffs
		staticScores[elem.ID] = score
		return score
	}

	genScore := func(pref *Score, elem *media.Element) float64 {
		return staticScore(elem) + pref.IterScore(allTags[elem.ID])
	}

	elements = g.preFilter(elements, preference, genScore, opts)

	result := make([]*media.Element, 0, len(elements))
	remaining := make([]*media.Element, len(elements))
	copy(remaining, elements)
	for len(remaining) > 0 {
		best := 0
		bestScore := genScore(preference, remaining[0])
		for i, elem := range remaining[1:] {
			if score := genScore(preference, elem); score < bestScore {
				best = i + 1
				bestScore = score
			}
		}
		picked := remaining[best]
		result = append(result, picked)
		if opts.Limit > 0 && len(result) >= opts.Limit {
			break
		}
		remaining = append(remaining[:best], remaining[best+1:]...)
		preference = preference.AdaptScore(graph, nil, directTags[picked.ID], opts.ScoreAdapt, true)
	}
	return result, nil
}

// preFilter throws away elements that cannot reach the top of the list
// even under the most favorable adaption, bounding the greedy loop.
func (g *Generator) preFilter(elements []*media.Element, preference *Score, genScore func(*Score, *media.Element) float64, opts GenerateOptions) []*media.Element {
	if opts.Limit <= 0 || len(elements) <= opts.Limit {
		return elements
	}

	maxScoreInc := MaxScoreIncrease(opts.ScoreAdapt, opts.Limit)

	preScores := make(map[int64]float64, len(elements))
	for _, elem := range elements {
		preScores[elem.ID] = genScore(preference, elem)
	}
	withoutMaxAdapt := func(elem *media.Element) float64 { return preScores[elem.ID] }
	withMaxAdapt := func(elem *media.Element) float64 { return preScores[elem.ID] + maxScoreInc }

	bestCase, worstCase := withoutMaxAdapt, withMaxAdapt
	if opts.ScoreAdapt < 0 {
		bestCase, worstCase = withMaxAdapt, withoutMaxAdapt
	}

	worstScores := make([]float64, 0, len(elements))
	for _, elem := range elements {
		worstScores = append(worstScores, worstCase(elem))
	}
	sort.Float64s(worstScores)
	limitthsBestWorst := worstScores[opts.Limit]

	worst := elements[0]
	for _, elem := range elements[1:] {
		if preScores[elem.ID] > preScores[worst.ID] {
			worst = elem
		}
	}
	worstsBest := bestCase(worst)

	if limitthsBestWorst >= worstsBest {
		g.logger.Debug().Int("count", len(elements)).Msg("Prefilter could not reduce the element count")
		return elements
	}
	kept := make([]*media.Element, 0, len(elements))
	for _, elem := range elements {
		if bestCase(elem) < limitthsBestWorst {
			kept = append(kept, elem)
		}
	}
	g.logger.Debug().
		Int("before", len(elements)).
		Int("after", len(kept)).
		Msg("Prefilter reduced element set")
	return kept
}
