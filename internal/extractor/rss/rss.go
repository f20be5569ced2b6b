// Package rss extracts collections from RSS and Atom feeds. Feed items
// become media elements ordered by their publication date. URIs with an
// "rss+" prefix are claimed outright, plain http(s) URIs only as a
// fallback when no dedicated extractor matches.
package rss

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/entdecider/entdecider/internal/config"
	"github.com/entdecider/entdecider/internal/extractor"
)

const protocolPrefix = "rss+"

// Source is the RSS collection extractor.
type Source struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates the RSS source.
func New(cfg config.ExtractorsConfig, logger zerolog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: logger.With().Str("component", "rss").Logger(),
	}
}

// Name returns the extractor name.
func (s *Source) Name() string {
	return "rss"
}

func feedURI(uri string) string {
	return strings.TrimPrefix(uri, protocolPrefix)
}

// Suitable claims rss+http(s) URIs outright and plain http(s) URIs as
// fallback.
func (s *Source) Suitable(uri string) extractor.SuitableLevel {
	trimmed := feedURI(uri)
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return extractor.AlwaysOrFallback(trimmed != uri)
	}
	return extractor.SuitableNo
}

// FetchCollection downloads and parses the feed.
func (s *Source) FetchCollection(ctx context.Context, uri string) (*extractor.CollectionData, error) {
	trimmed := feedURI(uri)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trimmed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extractor.ErrFetchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", extractor.ErrFetchFailed, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extractor.ErrFetchFailed, err)
	}

	feed, err := ParseFeed(body)
	if err != nil {
		return nil, err
	}

	watchInOrder := true
	data := &extractor.CollectionData{
		URI:          uri,
		Key:          trimmed,
		Title:        "[rss] " + strings.TrimSpace(feed.Title),
		Description:  feed.Description,
		WatchInOrder: &watchInOrder,
		Episodes:     make([]extractor.EpisodeData, 0, len(feed.Items)),
	}
	if trimmed != uri {
		data.ExtraURIs = []string{trimmed}
	}

	for _, item := range feed.Items {
		summary, thumb := mineItemBody(item.DescriptionHTML)
		if item.ThumbnailURI != "" {
			thumb = item.ThumbnailURI
		}
		data.Episodes = append(data.Episodes, extractor.EpisodeData{
			Media: extractor.MediaData{
				URI:          item.Link,
				Key:          item.GUID,
				Title:        strings.TrimSpace(item.Title),
				Description:  summary,
				ReleaseDate:  item.Published,
				ThumbnailURI: thumb,
			},
		})
	}

	s.logger.Debug().
		Str("uri", trimmed).
		Str("title", feed.Title).
		Int("items", len(feed.Items)).
		Msg("Parsed feed")
	return data, nil
}

// mineItemBody extracts plain text and the first image from an item's
// HTML body. Feeds without HTML bodies pass through unchanged.
func mineItemBody(body string) (text, imageURI string) {
	if body == "" {
		return "", ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return strings.TrimSpace(body), ""
	}
	imageURI = doc.Find("img").First().AttrOr("src", "")
	text = strings.TrimSpace(doc.Text())
	return text, imageURI
}
