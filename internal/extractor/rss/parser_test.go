package rss

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssSample = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Weekly Show</title>
    <description>A show about things</description>
    <item>
      <title>Episode One</title>
      <link>https://example.org/ep1</link>
      <guid>ep-1</guid>
      <pubDate>Mon, 02 Jan 2023 15:04:05 +0000</pubDate>
      <description>&lt;p&gt;First episode&lt;/p&gt;&lt;img src="https://example.org/ep1.jpg"/&gt;</description>
    </item>
    <item>
      <title>Episode Two</title>
      <link>https://example.org/ep2</link>
      <pubDate>Mon, 09 Jan 2023 15:04:05 +0000</pubDate>
    </item>
  </channel>
</rss>`

const atomSample = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Cast</title>
  <subtitle>An atom feed</subtitle>
  <entry>
    <title>Entry One</title>
    <id>urn:entry:1</id>
    <link rel="alternate" href="https://example.org/entry1"/>
    <published>2023-01-02T15:04:05Z</published>
    <summary>Hello</summary>
  </entry>
</feed>`

func TestParseRSS(t *testing.T) {
	feed, err := ParseFeed([]byte(rssSample))
	require.NoError(t, err)

	assert.Equal(t, "Weekly Show", feed.Title)
	assert.Equal(t, "A show about things", feed.Description)
	require.Len(t, feed.Items, 2)

	first := feed.Items[0]
	assert.Equal(t, "Episode One", first.Title)
	assert.Equal(t, "https://example.org/ep1", first.Link)
	assert.Equal(t, "ep-1", first.GUID)
	require.NotNil(t, first.Published)
	assert.Equal(t, 2023, first.Published.Year())

	// missing guid falls back to the link
	assert.Equal(t, "https://example.org/ep2", feed.Items[1].GUID)
}

func TestParseAtom(t *testing.T) {
	feed, err := ParseFeed([]byte(atomSample))
	require.NoError(t, err)

	assert.Equal(t, "Atom Cast", feed.Title)
	assert.Equal(t, "An atom feed", feed.Description)
	require.Len(t, feed.Items, 1)

	entry := feed.Items[0]
	assert.Equal(t, "Entry One", entry.Title)
	assert.Equal(t, "https://example.org/entry1", entry.Link)
	assert.Equal(t, "urn:entry:1", entry.GUID)
	require.NotNil(t, entry.Published)
	assert.Equal(t, time.January, entry.Published.Month())
	assert.Equal(t, "Hello", entry.DescriptionHTML)
}

func TestParseGarbage(t *testing.T) {
	_, err := ParseFeed([]byte("this is not xml"))
	assert.Error(t, err)

	_, err = ParseFeed([]byte("<html><body>nope</body></html>"))
	assert.Error(t, err)
}

func TestMineItemBody(t *testing.T) {
	text, img := mineItemBody(`<p>Some <b>summary</b></p><img src="https://example.org/t.jpg">`)
	assert.Equal(t, "Some summary", text)
	assert.Equal(t, "https://example.org/t.jpg", img)

	text, img = mineItemBody("")
	assert.Empty(t, text)
	assert.Empty(t, img)
}
