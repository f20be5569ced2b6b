// Package youtube extracts YouTube videos. Metadata comes from the
// public oEmbed endpoint, which needs no API key but carries neither
// upload date nor duration. Recognizing the URIs also enables the play
// deep link for these elements.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/entdecider/entdecider/internal/config"
	"github.com/entdecider/entdecider/internal/extractor"
)

var uriPattern = regexp.MustCompile(`^https?://(?:(?:www\.)?youtube(?:-nocookie)?\.com/(?:watch\?v=|embed/|shorts/)|youtu\.be/)([^/&?#]+)$`)

const oembedEndpoint = "https://www.youtube.com/oembed"

// VideoID extracts the video id from any recognized YouTube URI form.
func VideoID(uri string) (string, bool) {
	m := uriPattern.FindStringSubmatch(uri)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// WatchURI returns the canonical watch URI for a video id.
func WatchURI(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// Source is the YouTube media extractor.
type Source struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates the YouTube source.
func New(cfg config.ExtractorsConfig, logger zerolog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: logger.With().Str("component", "youtube").Logger(),
	}
}

// Name returns the extractor name.
func (s *Source) Name() string {
	return "youtube"
}

// Suitable accepts watch, embed, shorts and youtu.be URIs.
func (s *Source) Suitable(uri string) extractor.SuitableLevel {
	_, ok := VideoID(uri)
	return extractor.AlwaysOrNo(ok)
}

type oembedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	AuthorURL    string `json:"author_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// FetchMedia fetches video metadata via oEmbed.
func (s *Source) FetchMedia(ctx context.Context, uri string) (*extractor.MediaData, error) {
	id, ok := VideoID(uri)
	if !ok {
		return nil, fmt.Errorf("%w: %q", extractor.ErrNotRecognized, uri)
	}
	canonical := WatchURI(id)

	params := url.Values{}
	params.Set("url", canonical)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, oembedEndpoint+"?"+params.Encode(), nil)
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

	var info oembedResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode oEmbed response: %w", err)
	}

	data := &extractor.MediaData{
		URI:          canonical,
		Key:          id,
		Title:        info.Title + " - " + info.AuthorName,
		ThumbnailURI: info.ThumbnailURL,
	}
	if uri != canonical {
		data.ExtraURIs = []string{uri}
	}
	if info.AuthorURL != "" {
		data.Author = &extractor.AuthorData{
			URI:  info.AuthorURL,
			Key:  "author:" + info.AuthorURL,
			Name: info.AuthorName,
		}
	}

	s.logger.Debug().Str("id", id).Str("title", info.Title).Msg("Got video metadata")
	return data, nil
}
