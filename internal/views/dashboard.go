package views

import (
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/entdecider/entdecider/internal/collection"
	"github.com/entdecider/entdecider/internal/media"
)

const (
	dashboardBeganLimit  = 8
	dashboardPinnedLimit = 16
	dashboardMediaLimit  = 24
)

type dashboardPage struct {
	BeganVideos  []*MediaCard
	NextEpisodes []*MediaCard
	LatestMedia  []*MediaCard
}

// Dashboard renders the landing page: started videos, the next episode
// of every pinned collection and the latest considered media.
// GET /
func (h *Handlers) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()

	began, err := h.media.ListStarted(ctx, dashboardBeganLimit)
	if err != nil {
		return internalError(err)
	}
	alreadyListed := make(map[int64]bool, len(began))
	for _, elem := range began {
		alreadyListed[elem.ID] = true
	}
	beganCards, err := h.buildCards(ctx, began, true)
	if err != nil {
		return internalError(err)
	}

	nextEpisodes, err := h.pinnedNextEpisodes(c, alreadyListed)
	if err != nil {
		return internalError(err)
	}

	latest, err := h.media.List(ctx, media.ListOptions{
		OnlyConsidered: true,
		Order:          "release_date_desc",
		Limit:          dashboardMediaLimit,
	})
	if err != nil {
		return internalError(err)
	}
	latestCards, err := h.buildCards(ctx, latest, false)
	if err != nil {
		return internalError(err)
	}

	return h.render(c, h.dashboardTmpl, "Dashboard", dashboardPage{
		BeganVideos:  beganCards,
		NextEpisodes: nextEpisodes,
		LatestMedia:  latestCards,
	})
}

// pinnedNextEpisodes collects the next episode of every pinned
// collection, dropping duplicates, elements shown elsewhere on the
// dashboard and episodes not currently considered.
func (h *Handlers) pinnedNextEpisodes(c echo.Context, alreadyListed map[int64]bool) ([]*MediaCard, error) {
	ctx := c.Request().Context()

	pinned, err := h.collections.List(ctx, collection.ListOptions{OnlyPinned: true})
	if err != nil {
		return nil, err
	}

	var links []*collection.Link
	seen := make(map[int64]bool)
	for _, coll := range pinned {
		next, err := h.collections.NextEpisode(ctx, coll.ID)
		if err != nil {
			return nil, err
		}
		if next == nil || seen[next.Element.ID] || alreadyListed[next.Element.ID] {
			continue
		}
		seen[next.Element.ID] = true
		links = append(links, next)
	}

	ids := make([]int64, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.Element.ID)
	}
	considered, err := h.media.AreConsidered(ctx, ids)
	if err != nil {
		return nil, err
	}

	kept := links[:0]
	for _, link := range links {
		if considered[link.Element.ID] {
			kept = append(kept, link)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		var ti, tj time.Time
		if kept[i].Element.ReleaseDate != nil {
			ti = *kept[i].Element.ReleaseDate
		}
		if kept[j].Element.ReleaseDate != nil {
			tj = *kept[j].Element.ReleaseDate
		}
		return ti.Before(tj)
	})
	if len(kept) > dashboardPinnedLimit {
		kept = kept[:dashboardPinnedLimit]
	}

	cards := make([]*MediaCard, 0, len(kept))
	for _, link := range kept {
		alreadyListed[link.Element.ID] = true
		cards = append(cards, &MediaCard{
			Element:    link.Element,
			Title:      link.Element.Title,
			Season:     link.Season,
			Episode:    link.Episode,
			Considered: true,
			CanPlay:    h.registry.CanPlay(link.Element.URI),
		})
	}
	return cards, nil
}

type statsPage struct {
	LastRefreshed *time.Time
	Counts        *media.Counts
	Durations     *media.DurationStats
}

// StatsPage renders aggregate counts and durations over all elements.
// GET /stats
func (h *Handlers) StatsPage(c echo.Context) error {
	ctx := c.Request().Context()

	counts, err := h.media.Count(ctx)
	if err != nil {
		return internalError(err)
	}
	durations, err := h.media.Durations(ctx)
	if err != nil {
		return internalError(err)
	}
	lastRefreshed, err := h.collections.LastRefreshed(ctx)
	if err != nil {
		return internalError(err)
	}

	return h.render(c, h.statsTmpl, "Statistics", statsPage{
		LastRefreshed: lastRefreshed,
		Counts:        counts,
		Durations:     durations,
	})
}
