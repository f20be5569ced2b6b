package youtube

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/entdecider/entdecider/internal/config"
	"github.com/entdecider/entdecider/internal/extractor"
	"github.com/entdecider/entdecider/internal/testutil"
)

func TestVideoID(t *testing.T) {
	cases := []struct {
		uri string
		id  string
		ok  bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/playlist?list=PL123", "", false},
		{"https://vimeo.com/12345", "", false},
	}
	for _, tc := range cases {
		id, ok := VideoID(tc.uri)
		assert.Equal(t, tc.ok, ok, tc.uri)
		assert.Equal(t, tc.id, id, tc.uri)
	}
}

func TestSuitable(t *testing.T) {
	src := New(config.Default().Extractors, testutil.NewTestLogger(t))

	assert.Equal(t, extractor.SuitableAlways, src.Suitable("https://youtu.be/dQw4w9WgXcQ"))
	assert.Equal(t, extractor.SuitableNo, src.Suitable("https://example.org/watch?v=x"))
}

func TestWatchURI(t *testing.T) {
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", WatchURI("abc"))
}
