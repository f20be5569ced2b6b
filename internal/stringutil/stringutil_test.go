package stringutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommonPrefix(t *testing.T) {
	tests := []struct {
		name     string
		elements []string
		want     string
	}{
		{
			name:     "empty slice",
			elements: nil,
			want:     "",
		},
		{
			name:     "single element has no common part",
			elements: []string{"Show S01E01"},
			want:     "",
		},
		{
			name:     "stops at word boundary",
			elements: []string{"Show - Episode 1", "Show - Episode 2"},
			want:     "Show - Episode ",
		},
		{
			name:     "does not split words",
			elements: []string{"Showcase", "Showdown"},
			want:     "",
		},
		{
			name:     "no overlap",
			elements: []string{"Alpha", "Beta"},
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CommonPrefix(tt.elements))
		})
	}
}

func TestCommonSuffix(t *testing.T) {
	got := CommonSuffix([]string{"Episode 1 (HD)", "Episode 2 (HD)"})
	assert.Equal(t, " (HD)", got)
}

func TestRemoveCommonTrails(t *testing.T) {
	titles := []string{
		"My Show - Pilot [1080p]",
		"My Show - The Heist [1080p]",
		"My Show - Finale [1080p]",
	}
	got := RemoveCommonTrails(titles)
	assert.Equal(t, []string{"Pilot", "The Heist", "Finale"}, got)
}

func TestRemoveCommonTrailsKeepsDistinctTitles(t *testing.T) {
	titles := []string{"Interview", "Road Trip"}
	got := RemoveCommonTrails(titles)
	assert.Equal(t, titles, got)
}
