// Package preferences implements tag based scoring of media elements
// and the recommendation list generation built on it. Lower scores are
// better, so rating something up pushes its score down.
package preferences

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/entdecider/entdecider/internal/tag"
)

// Score holds preference points per tag id.
type Score struct {
	Points map[int64]float64
}

// NewScore returns an empty score.
func NewScore() *Score {
	return &Score{Points: make(map[int64]float64)}
}

// Clone returns an independent copy.
func (s *Score) Clone() *Score {
	points := make(map[int64]float64, len(s.Points))
	for id, score := range s.Points {
		points[id] = score
	}
	return &Score{Points: points}
}

// Mul scales all points by a scalar.
func (s *Score) Mul(scalar float64) *Score {
	points := make(map[int64]float64, len(s.Points))
	for id, score := range s.Points {
		points[id] = score * scalar
	}
	return &Score{Points: points}
}

// Neg inverts the score.
func (s *Score) Neg() *Score {
	return s.Mul(-1)
}

// IterScore sums the points of the given tags.
func (s *Score) IterScore(tags []*tag.Tag) float64 {
	var sum float64
	for _, t := range tags {
		sum += s.Points[t.ID]
	}
	return sum
}

// MaxScoreIncrease bounds how much a single element's score can change
// after adaptCount adaptions. Depends on how shareScore distributes.
func MaxScoreIncrease(score float64, adaptCount int) float64 {
	return score * float64(adaptCount)
}

// Graph resolves super tag relations for score sharing. Virtual tags
// added for one algorithm run live only in the graph.
type Graph struct {
	supers map[int64][]*tag.Tag
	tags   map[int64]*tag.Tag
}

// LoadGraph reads all tags and their relations.
func LoadGraph(ctx context.Context, tags *tag.Service) (*Graph, error) {
	all, err := tags.List(ctx)
	if err != nil {
		return nil, err
	}
	relations, err := tags.AllSuperRelations(ctx)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		supers: make(map[int64][]*tag.Tag),
		tags:   make(map[int64]*tag.Tag, len(all)),
	}
	for _, t := range all {
		g.tags[t.ID] = t
	}
	for subID, superIDs := range relations {
		for _, superID := range superIDs {
			if super, ok := g.tags[superID]; ok {
				g.supers[subID] = append(g.supers[subID], super)
			}
		}
	}
	return g, nil
}

// AddVirtual registers a tag that exists only for this run.
func (g *Graph) AddVirtual(t *tag.Tag) {
	g.tags[t.ID] = t
}

// Get returns a tag known to the graph.
func (g *Graph) Get(id int64) (*tag.Tag, bool) {
	t, ok := g.tags[id]
	return t, ok
}

func (g *Graph) superTags(id int64) []*tag.Tag {
	return g.supers[id]
}

func usable(tags []*tag.Tag) []*tag.Tag {
	out := make([]*tag.Tag, 0, len(tags))
	for _, t := range tags {
		if t.UseForPreferences {
			out = append(out, t)
		}
	}
	return out
}

// shareScoreFlat gives each direct tag an equal share.
func shareScoreFlat(direct []*tag.Tag, score float64, acc map[int64]float64) {
	direct = usable(direct)
	if len(direct) == 0 {
		return
	}
	share := score / float64(len(direct))
	for _, t := range direct {
		acc[t.ID] += share
	}
}

// shareScore spreads score over the direct tags and, with a reduced
// share, their transitive super tags. Direct tags receive the bigger
// fraction so specific tags weigh more than general ones.
func (g *Graph) shareScore(self *tag.Tag, direct, supers []*tag.Tag, score float64, acc map[int64]float64) {
	direct = usable(direct)
	supers = usable(supers)
	directCount := len(direct)
	superCount := len(supers)
	if directCount+superCount == 0 {
		return
	}
	directFraction := superCount + directCount
	fullDistCount := superCount + directFraction*directCount
	singleDirectShare := float64(directFraction) * score / float64(fullDistCount)
	singleSuperShare := score / float64(fullDistCount)

	for _, t := range direct {
		if self != nil && self.ID == t.ID {
			shareScoreFlat([]*tag.Tag{t}, singleDirectShare, acc)
		} else {
			g.shareScore(t, []*tag.Tag{t}, g.superTags(t.ID), singleDirectShare, acc)
		}
	}
	for _, t := range supers {
		g.shareScore(t, []*tag.Tag{t}, g.superTags(t.ID), singleSuperShare, acc)
	}
}

// AdaptScore spreads score over the direct tags of an element or tag
// and returns the combined score. With onHierarchy false the hierarchy
// is skipped and all direct tags share equally.
func (s *Score) AdaptScore(g *Graph, self *tag.Tag, directTags []*tag.Tag, score float64, onHierarchy bool) *Score {
	result := s.Clone()
	var supers []*tag.Tag
	if self != nil {
		supers = g.superTags(self.ID)
	}
	if onHierarchy {
		g.shareScore(self, directTags, supers, score, result.Points)
	} else {
		shareScoreFlat(directTags, score, result.Points)
	}
	return result
}

// ToBase64 serializes the score for cookie transport: JSON, gzipped,
// base64 encoded.
func (s *Score) ToBase64() (string, error) {
	points := make(map[string]float64, len(s.Points))
	for id, score := range s.Points {
		points[strconv.FormatInt(id, 10)] = score
	}
	data, err := json.Marshal(points)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := zw.Write(data); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// FromBase64 deserializes a score produced by ToBase64.
func FromBase64(encoded string) (*Score, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode score: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress score: %w", err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress score: %w", err)
	}
	if err := zr.Close(); err != nil {
		return nil, err
	}

	var points map[string]float64
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("failed to parse score: %w", err)
	}
	score := NewScore()
	for key, value := range points {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse score tag id %q: %w", key, err)
		}
		score.Points[id] = value
	}
	return score, nil
}
