package tvmaze

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/entdecider/entdecider/internal/extractor"
)

// The site, the API and the custom tvmaze:// scheme all resolve to the
// same objects, so all three spellings are accepted and mapped.
var (
	showPattern    = regexp.MustCompile(`^(?:https?://(?:(?:api|www)\.)?tvmaze\.com|tvmaze://)/shows/(\d+)(?:/.*)?$`)
	episodePattern = regexp.MustCompile(`^(?:https?://(?:(?:api|www)\.)?tvmaze\.com|tvmaze://)/episodes/(\d+)(?:/.*)?$`)
)

func matchID(pattern *regexp.Regexp, uri string) (int, bool) {
	m := pattern.FindStringSubmatch(uri)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

func showURI(id int) string       { return fmt.Sprintf("https://www.tvmaze.com/shows/%d", id) }
func showAPIURI(id int) string    { return fmt.Sprintf("https://api.tvmaze.com/shows/%d", id) }
func showCustomURI(id int) string { return fmt.Sprintf("tvmaze:///shows/%d", id) }

func episodeURI(id int) string       { return fmt.Sprintf("https://www.tvmaze.com/episodes/%d", id) }
func episodeAPIURI(id int) string    { return fmt.Sprintf("https://api.tvmaze.com/episodes/%d", id) }
func episodeCustomURI(id int) string { return fmt.Sprintf("tvmaze:///episodes/%d", id) }

// MediaSource extracts single episodes.
type MediaSource struct {
	client *Client
}

// NewMediaSource creates the TVmaze episode extractor.
func NewMediaSource(client *Client) *MediaSource {
	return &MediaSource{client: client}
}

// Name returns the extractor name.
func (s *MediaSource) Name() string {
	return "tvmaze"
}

// Suitable accepts episode URIs.
func (s *MediaSource) Suitable(uri string) extractor.SuitableLevel {
	_, ok := matchID(episodePattern, uri)
	return extractor.AlwaysOrNo(ok)
}

// FetchMedia fetches one episode with its show context.
func (s *MediaSource) FetchMedia(ctx context.Context, uri string) (*extractor.MediaData, error) {
	id, ok := matchID(episodePattern, uri)
	if !ok {
		return nil, fmt.Errorf("%w: %q", extractor.ErrNotRecognized, uri)
	}
	episode, err := s.client.GetEpisode(ctx, id)
	if err != nil {
		return nil, err
	}
	return episodeData(episode, episode.Embedded.Show)
}

// episodeData maps an API episode onto extractor metadata. The show is
// needed for the title suffix and the runtime fallbacks.
func episodeData(episode *Episode, show *Show) (*extractor.MediaData, error) {
	if episode.Airstamp == "" {
		return nil, fmt.Errorf("%w: episode %d", ErrNotReleased, episode.ID)
	}
	released, err := time.Parse(time.RFC3339, episode.Airstamp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse air date %q: %w", episode.Airstamp, err)
	}

	title := episode.Name
	if title == "" {
		title = fmt.Sprintf("Season %d - Episode %d", episode.Season, episode.Number)
	}

	runtime := episode.Runtime
	var showImage *Image
	if show != nil {
		title = title + " - " + show.Name
		if runtime == 0 {
			runtime = show.Runtime
		}
		if runtime == 0 {
			runtime = show.AverageRuntime
		}
		showImage = show.Image
	}

	return &extractor.MediaData{
		URI:          episodeURI(episode.ID),
		Key:          strconv.Itoa(episode.ID),
		Title:        title,
		Description:  stripSummary(episode.Summary),
		ReleaseDate:  &released,
		Length:       runtime * 60,
		ThumbnailURI: selectBestImage(episode.Image, showImage),
		ExtraURIs: []string{
			episodeAPIURI(episode.ID),
			episodeCustomURI(episode.ID),
		},
	}, nil
}

// CollectionSource extracts whole shows.
type CollectionSource struct {
	client *Client
}

// NewCollectionSource creates the TVmaze show extractor.
func NewCollectionSource(client *Client) *CollectionSource {
	return &CollectionSource{client: client}
}

// Name returns the extractor name.
func (s *CollectionSource) Name() string {
	return "tvmaze"
}

// Suitable accepts show URIs.
func (s *CollectionSource) Suitable(uri string) extractor.SuitableLevel {
	_, ok := matchID(showPattern, uri)
	return extractor.AlwaysOrNo(ok)
}

// FetchCollection fetches a show and all its aired episodes.
func (s *CollectionSource) FetchCollection(ctx context.Context, uri string) (*extractor.CollectionData, error) {
	id, ok := matchID(showPattern, uri)
	if !ok {
		return nil, fmt.Errorf("%w: %q", extractor.ErrNotRecognized, uri)
	}
	show, err := s.client.GetShow(ctx, id)
	if err != nil {
		return nil, err
	}

	watchInOrder := true
	data := &extractor.CollectionData{
		URI:          showURI(show.ID),
		Key:          strconv.Itoa(show.ID),
		Title:        "[tvmaze] " + show.Name,
		Description:  stripSummary(show.Summary),
		WatchInOrder: &watchInOrder,
		ExtraURIs: []string{
			showAPIURI(show.ID),
			showCustomURI(show.ID),
		},
	}
	if premiered, err := time.Parse("2006-01-02", show.Premiered); err == nil {
		data.ReleaseDate = &premiered
	}

	for i := range show.Embedded.Episodes {
		episode := &show.Embedded.Episodes[i]
		if episode.Airstamp == "" {
			// not aired yet
			continue
		}
		mediaData, err := episodeData(episode, show)
		if err != nil {
			return nil, err
		}
		data.Episodes = append(data.Episodes, extractor.EpisodeData{
			Season:  episode.Season,
			Episode: episode.Number,
			Media:   *mediaData,
		})
	}
	return data, nil
}

// stripSummary drops the HTML markup TVmaze wraps summaries in.
func stripSummary(summary string) string {
	if summary == "" || !strings.Contains(summary, "<") {
		return strings.TrimSpace(summary)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(summary))
	if err != nil {
		return strings.TrimSpace(summary)
	}
	return strings.TrimSpace(doc.Text())
}
