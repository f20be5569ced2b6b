package views

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/entdecider/entdecider/internal/httputil"
	"github.com/entdecider/entdecider/internal/media"
	"github.com/entdecider/entdecider/internal/preferences"
)

// preferencesCookieName carries the adaptive preference score between
// requests, gzip compressed and base64 encoded.
const preferencesCookieName = "score_adapt"

func (h *Handlers) cookieScore(c echo.Context) *preferences.Score {
	cookie, err := c.Cookie(preferencesCookieName)
	if err != nil || cookie.Value == "" {
		return preferences.NewScore()
	}
	score, err := preferences.FromBase64(cookie.Value)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Dropping unparseable preference cookie")
		return preferences.NewScore()
	}
	return score
}

type recommendPage struct {
	ModeName string
	Cards    []*MediaCard
}

func (h *Handlers) renderRecommendations(c echo.Context, modeName string, opts preferences.GenerateOptions) error {
	ctx := c.Request().Context()
	elements, err := h.generator.Generate(ctx, opts)
	if err != nil {
		return internalError(err)
	}
	cards, err := h.buildCards(ctx, elements, false)
	if err != nil {
		return internalError(err)
	}
	return h.render(c, h.recommendTmpl, "Recommendations", recommendPage{
		ModeName: modeName,
		Cards:    cards,
	})
}

// RecommendShortFiller recommends considered media up to 15 minutes.
// GET /recommendations/short_filler
func (h *Handlers) RecommendShortFiller(c echo.Context) error {
	return h.renderRecommendations(c, "Short Fillers", preferences.GenerateOptions{
		Filter:     media.ListOptions{MaxLength: 15 * 60, Order: "release_date_desc"},
		ScoreAdapt: 1,
		Limit:      24,
	})
}

// RecommendSeriesEpisode recommends considered media between 15 and 45
// minutes.
// GET /recommendations/series_episode
func (h *Handlers) RecommendSeriesEpisode(c echo.Context) error {
	return h.renderRecommendations(c, "Series Episodes", preferences.GenerateOptions{
		Filter: media.ListOptions{
			MinLength: 15 * 60,
			MaxLength: 45 * 60,
			Order:     "release_date_desc",
		},
		ScoreAdapt: 1,
		Limit:      16,
	})
}

// RecommendMovieLike recommends considered media above 45 minutes.
// GET /recommendations/movie_like
func (h *Handlers) RecommendMovieLike(c echo.Context) error {
	return h.renderRecommendations(c, "Movie Like", preferences.GenerateOptions{
		Filter:     media.ListOptions{MinLength: 45 * 60, Order: "release_date_desc"},
		ScoreAdapt: 1,
		Limit:      16,
	})
}

// RecommendOnMedia recommends media similar to one element by seeding
// the preference with a strong negative score on its tags.
// GET /media/:id/recommendations
func (h *Handlers) RecommendOnMedia(c echo.Context) error {
	const (
		mediaCount = 10
		scoreAdapt = 1
	)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return notFoundPage(c)
	}
	ctx := c.Request().Context()

	elem, err := h.media.GetByID(ctx, id)
	if errors.Is(err, media.ErrNotFound) {
		return notFoundPage(c)
	}
	if err != nil {
		return internalError(err)
	}

	base, err := h.adaptScoreForElement(c, preferences.NewScore(), id, -(mediaCount*scoreAdapt)-1)
	if err != nil {
		return internalError(err)
	}
	return h.renderRecommendations(c, fmt.Sprintf("%q", elem.Title), preferences.GenerateOptions{
		Filter:     media.ListOptions{Order: "release_date_desc"},
		Base:       base,
		ScoreAdapt: scoreAdapt,
		Limit:      mediaCount,
	})
}

type recommendAdaptivePage struct {
	MaxLength  int
	ScoreAdapt int
	HasResults bool
	Cards      []*MediaCard
}

// RecommendAdaptive recommends media ranked by the preference cookie.
// Without a max_length parameter only the filter form renders, so the
// expensive scoring run waits for an explicit request.
// GET /recommendations/adaptive
func (h *Handlers) RecommendAdaptive(c echo.Context) error {
	scoreAdapt := 2
	if raw := c.QueryParam("score_adapt"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			scoreAdapt = parsed
		}
	}

	base := h.cookieScore(c)
	switch {
	case scoreAdapt > 0:
		// keep as is
	case scoreAdapt < 0:
		base = base.Neg()
	default:
		base = preferences.NewScore()
	}

	if !c.QueryParams().Has("max_length") {
		return h.render(c, h.recommendAdaptiveTmpl, "Adaptive Recommendations", recommendAdaptivePage{
			ScoreAdapt: scoreAdapt,
		})
	}
	maxLength, _ := strconv.Atoi(c.QueryParam("max_length"))

	filter := media.ListOptions{Order: "release_date_desc"}
	if maxLength > 0 {
		filter.MaxLeftLength = maxLength * 60
	}
	elements, err := h.generator.Generate(c.Request().Context(), preferences.GenerateOptions{
		Filter:     filter,
		Base:       base,
		ScoreAdapt: float64(scoreAdapt),
		Limit:      32,
	})
	if err != nil {
		return internalError(err)
	}
	cards, err := h.buildCards(c.Request().Context(), elements, false)
	if err != nil {
		return internalError(err)
	}
	return h.render(c, h.recommendAdaptiveTmpl, "Adaptive Recommendations", recommendAdaptivePage{
		MaxLength:  maxLength,
		ScoreAdapt: scoreAdapt,
		HasResults: true,
		Cards:      cards,
	})
}

// adaptScoreForElement spreads score over the element's tags including
// the super tag hierarchy.
func (h *Handlers) adaptScoreForElement(c echo.Context, base *preferences.Score, elementID int64, score float64) (*preferences.Score, error) {
	ctx := c.Request().Context()
	graph, err := preferences.LoadGraph(ctx, h.tags)
	if err != nil {
		return nil, err
	}
	directTags, err := h.tags.ElementTags(ctx, elementID)
	if err != nil {
		return nil, err
	}
	return base.AdaptScore(graph, nil, directTags, score, true), nil
}

func (h *Handlers) rate(c echo.Context, score float64) error {
	id, err := strconv.ParseInt(c.FormValue("media_id"), 10, 64)
	if err != nil {
		return notFoundPage(c)
	}
	if _, err := h.media.GetByID(c.Request().Context(), id); err != nil {
		if errors.Is(err, media.ErrNotFound) {
			return notFoundPage(c)
		}
		return internalError(err)
	}

	adapted, err := h.adaptScoreForElement(c, h.cookieScore(c), id, score)
	if err != nil {
		return internalError(err)
	}
	encoded, err := adapted.ToBase64()
	if err != nil {
		return internalError(err)
	}
	c.SetCookie(&http.Cookie{
		Name:  preferencesCookieName,
		Value: encoded,
		Path:  "/",
	})
	return httputil.RedirectBackOrOkay(c)
}

// RatePositive pushes the rated element's tags up the recommendations.
// Scores sort ascending, so liking something lowers its tag scores.
// POST /cookies/rating/positive
func (h *Handlers) RatePositive(c echo.Context) error {
	return h.rate(c, -3)
}

// RateNegative pushes the rated element's tags down the recommendations.
// POST /cookies/rating/negative
func (h *Handlers) RateNegative(c echo.Context) error {
	return h.rate(c, 3)
}

// RateReset drops the preference cookie.
// POST /cookies/rating/reset
func (h *Handlers) RateReset(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:   preferencesCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	return httputil.RedirectBackOrOkay(c)
}
