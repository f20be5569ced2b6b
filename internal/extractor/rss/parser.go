package rss

import (
	"encoding/xml"
	"fmt"
	"time"
)

// Feed is a normalized feed, independent of the wire format.
type Feed struct {
	Title       string
	Description string
	Items       []Item
}

// Item is one feed entry.
type Item struct {
	Title     string
	Link      string
	GUID      string
	Published *time.Time
	// DescriptionHTML is the raw item body, usually HTML.
	DescriptionHTML string
	ThumbnailURI    string
}

// ParseFeed auto-detects the feed format and normalizes it.
func ParseFeed(data []byte) (*Feed, error) {
	if feed, err := parseRSS(data); err == nil && len(feed.Items) > 0 {
		return feed, nil
	}
	if feed, err := parseAtom(data); err == nil && len(feed.Items) > 0 {
		return feed, nil
	}
	return nil, fmt.Errorf("unable to parse feed: unrecognized format")
}

// RSS 2.0 structures

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	Link        string        `xml:"link"`
	GUID        string        `xml:"guid"`
	PubDate     string        `xml:"pubDate"`
	Description string        `xml:"description"`
	Enclosure   rssEnclosure  `xml:"enclosure"`
	Thumbnail   rssMediaImage `xml:"thumbnail"`
}

type rssEnclosure struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

type rssMediaImage struct {
	URL string `xml:"url,attr"`
}

func parseRSS(data []byte) (*Feed, error) {
	var feed rssFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, err
	}

	result := &Feed{
		Title:       feed.Channel.Title,
		Description: feed.Channel.Description,
	}
	for _, item := range feed.Channel.Items {
		link := item.Link
		if link == "" && item.Enclosure.URL != "" {
			link = item.Enclosure.URL
		}
		if link == "" {
			continue
		}
		guid := item.GUID
		if guid == "" {
			guid = link
		}
		result.Items = append(result.Items, Item{
			Title:           item.Title,
			Link:            link,
			GUID:            guid,
			Published:       parseDate(item.PubDate),
			DescriptionHTML: item.Description,
			ThumbnailURI:    item.Thumbnail.URL,
		})
	}
	return result, nil
}

// Atom structures

type atomFeed struct {
	XMLName  xml.Name    `xml:"feed"`
	Title    string      `xml:"title"`
	Subtitle string      `xml:"subtitle"`
	Entries  []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	ID        string     `xml:"id"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Links     []atomLink `xml:"link"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

func (e atomEntry) link() string {
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	if len(e.Links) > 0 {
		return e.Links[0].Href
	}
	return ""
}

func parseAtom(data []byte) (*Feed, error) {
	var feed atomFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, err
	}

	result := &Feed{
		Title:       feed.Title,
		Description: feed.Subtitle,
	}
	for _, entry := range feed.Entries {
		link := entry.link()
		if link == "" {
			continue
		}
		guid := entry.ID
		if guid == "" {
			guid = link
		}
		body := entry.Content
		if body == "" {
			body = entry.Summary
		}
		published := entry.Published
		if published == "" {
			published = entry.Updated
		}
		result.Items = append(result.Items, Item{
			Title:           entry.Title,
			Link:            link,
			GUID:            guid,
			Published:       parseDate(published),
			DescriptionHTML: body,
		})
	}
	return result, nil
}

func parseDate(s string) *time.Time {
	for _, layout := range []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"Mon, 02 Jan 2006 15:04:05 -0700",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
