// Package tvmaze extracts shows and episodes from the TVmaze API.
package tvmaze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/entdecider/entdecider/internal/config"
)

var (
	ErrShowNotFound    = errors.New("show not found")
	ErrEpisodeNotFound = errors.New("episode not found")
	ErrAPIError        = errors.New("TVmaze API error")
	ErrNotReleased     = errors.New("episode has no air date yet")
)

// Image is a TVmaze image in two resolutions.
type Image struct {
	Medium   string `json:"medium"`
	Original string `json:"original"`
}

// selectBestImage returns the first usable image URI, preferring the
// original resolution.
func selectBestImage(images ...*Image) string {
	for _, img := range images {
		if img == nil {
			continue
		}
		if img.Original != "" {
			return img.Original
		}
		if img.Medium != "" {
			return img.Medium
		}
	}
	return ""
}

// Show is a TVmaze show, optionally with embedded episodes.
type Show struct {
	ID             int      `json:"id"`
	URL            string   `json:"url"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Language       string   `json:"language"`
	Genres         []string `json:"genres"`
	Status         string   `json:"status"`
	Runtime        int      `json:"runtime"`
	AverageRuntime int      `json:"averageRuntime"`
	Premiered      string   `json:"premiered"`
	Summary        string   `json:"summary"`
	Image          *Image   `json:"image"`
	Embedded       struct {
		Episodes []Episode `json:"episodes"`
	} `json:"_embedded"`
}

// Episode is a TVmaze episode, optionally with its embedded show.
type Episode struct {
	ID       int    `json:"id"`
	URL      string `json:"url"`
	Name     string `json:"name"`
	Season   int    `json:"season"`
	Number   int    `json:"number"`
	Airstamp string `json:"airstamp"`
	Runtime  int    `json:"runtime"`
	Summary  string `json:"summary"`
	Image    *Image `json:"image"`
	Embedded struct {
		Show *Show `json:"show"`
	} `json:"_embedded"`
}

// Client is a TVmaze API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
}

// NewClient creates a new TVmaze client.
func NewClient(cfg config.ExtractorsConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		baseURL: cfg.TVmazeBaseURL,
		logger:  logger.With().Str("component", "tvmaze").Logger(),
	}
}

// GetShow fetches a show with all its episodes embedded.
func (c *Client) GetShow(ctx context.Context, id int) (*Show, error) {
	endpoint := fmt.Sprintf("%s/shows/%d", c.baseURL, id)
	params := url.Values{}
	params.Set("embed", "episodes")

	var show Show
	if err := c.doRequest(ctx, endpoint, params, &show, ErrShowNotFound); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("id", id).
		Str("name", show.Name).
		Int("episodes", len(show.Embedded.Episodes)).
		Msg("Got show details")
	return &show, nil
}

// GetEpisode fetches an episode with its show embedded.
func (c *Client) GetEpisode(ctx context.Context, id int) (*Episode, error) {
	endpoint := fmt.Sprintf("%s/episodes/%d", c.baseURL, id)
	params := url.Values{}
	params.Set("embed", "show")

	var episode Episode
	if err := c.doRequest(ctx, endpoint, params, &episode, ErrEpisodeNotFound); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("id", id).
		Str("name", episode.Name).
		Msg("Got episode details")
	return &episode, nil
}

// doRequest performs an HTTP GET request and decodes the JSON response.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, result any, notFound error) error {
	reqURL := endpoint
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", endpoint).Msg("HTTP request failed")
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			return notFound
		}
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
