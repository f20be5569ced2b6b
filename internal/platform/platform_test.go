package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlayLink(t *testing.T) {
	req, err := ParsePlayLink("entertainment-decider:///player/play?video_uri=https%3A%2F%2Fexample.org%2Fv%3Fx%3D1&start=90")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/v?x=1", req.VideoURI)
	assert.Equal(t, 90, req.Start)
}

func TestParsePlayLinkDefaults(t *testing.T) {
	req, err := ParsePlayLink("entertainment-decider:///player/play?video_uri=https%3A%2F%2Fexample.org%2Fv")
	require.NoError(t, err)
	assert.Equal(t, 0, req.Start)
}

func TestParsePlayLinkRejects(t *testing.T) {
	cases := []string{
		"https://example.org/v",
		"entertainment-decider:///player/stop?video_uri=x",
		"entertainment-decider:///player/play",
		"entertainment-decider:///player/play?video_uri=x&start=soon",
	}
	for _, raw := range cases {
		_, err := ParsePlayLink(raw)
		assert.Error(t, err, raw)
	}
}

func TestDesktopEntry(t *testing.T) {
	entry := DesktopEntry("/usr/local/bin/entdecider-client")
	assert.Contains(t, entry, "[Desktop Entry]")
	assert.Contains(t, entry, "Exec=/usr/local/bin/entdecider-client play %u")
	assert.Contains(t, entry, "MimeType=x-scheme-handler/entertainment-decider;")
}
