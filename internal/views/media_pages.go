package views

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/entdecider/entdecider/internal/httputil"
	"github.com/entdecider/entdecider/internal/media"
	"github.com/entdecider/entdecider/internal/tag"
)

const mediaListLimit = 100

type mediaListPage struct {
	Heading string
	Cards   []*MediaCard
}

func (h *Handlers) renderMediaList(c echo.Context, heading string, opts media.ListOptions, checkConsidered bool) error {
	ctx := c.Request().Context()
	elements, err := h.media.List(ctx, opts)
	if err != nil {
		return internalError(err)
	}
	cards, err := h.buildCards(ctx, elements, checkConsidered)
	if err != nil {
		return internalError(err)
	}
	return h.render(c, h.mediaListTmpl, heading, mediaListPage{
		Heading: heading,
		Cards:   cards,
	})
}

// ListMedia renders the latest considered media.
// GET /media
func (h *Handlers) ListMedia(c echo.Context) error {
	return h.renderMediaList(c, "Latest Media", media.ListOptions{
		OnlyConsidered: true,
		Order:          "release_date_desc",
		Limit:          mediaListLimit,
	}, false)
}

func secondsParam(c echo.Context, fallback int) int {
	if raw := c.Param("seconds"); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil {
			return seconds
		}
	}
	return fallback
}

// ListShortMedia renders considered media with at most the given
// remaining seconds, ten minutes by default.
// GET /media/short[/:seconds]
func (h *Handlers) ListShortMedia(c echo.Context) error {
	seconds := secondsParam(c, 10*60)
	return h.renderMediaList(c, fmt.Sprintf("Media shorter than %s", formatTimedelta(seconds)),
		media.ListOptions{
			OnlyConsidered: true,
			MaxLeftLength:  seconds,
			Order:          "release_date_desc",
			Limit:          mediaListLimit,
		}, false)
}

// ListLongMedia renders considered media with at least the given
// remaining seconds.
// GET /media/long[/:seconds]
func (h *Handlers) ListLongMedia(c echo.Context) error {
	seconds := secondsParam(c, 10*60)
	return h.renderMediaList(c, fmt.Sprintf("Media longer than %s", formatTimedelta(seconds)),
		media.ListOptions{
			OnlyConsidered: true,
			MinLeftLength:  seconds,
			Order:          "release_date_desc",
			Limit:          mediaListLimit,
		}, false)
}

// MediaOverview renders an arbitrary set of elements by id, used as the
// target of mass extraction redirects.
// GET /media/overview?ids=1,2,3
func (h *Handlers) MediaOverview(c echo.Context) error {
	ids := httputil.ParseCSIDs(c.QueryParam("ids"))
	if ids == nil {
		return c.JSON(http.StatusBadRequest, httputil.ErrorResponse{
			Status: false,
			Error:  "Could not parse id list",
		})
	}
	return h.renderMediaList(c, "Media Overview", media.ListOptions{IDs: ids}, true)
}

// ListUnsortedMedia renders elements that belong to no collection.
// GET /media/unsorted
func (h *Handlers) ListUnsortedMedia(c echo.Context) error {
	return h.renderMediaList(c, "Unsorted Media", media.ListOptions{
		OnlyUnsorted: true,
		Order:        "release_date_desc",
	}, true)
}

type extractPage struct {
	Kind       string
	Action     string
	MassAction string
}

// ExtractMediaForm renders the URI submission form for single elements.
// GET /media/extract
func (h *Handlers) ExtractMediaForm(c echo.Context) error {
	return h.render(c, h.extractTmpl, "Extract Media", extractPage{
		Kind:       "media",
		Action:     "/api/media/extract",
		MassAction: "/api/media/extract/mass",
	})
}

type mediaElementPage struct {
	Element         *media.Element
	Considered      bool
	CanPlay         bool
	Tags            []*tag.Tag
	Links           []*media.CollectionLink
	URIs            []string
	BlockedBy       []*media.Element
	Blocking        []*media.Element
	ReleasesPerWeek float64
}

// ShowMedia renders the element detail page.
// GET /media/:id
func (h *Handlers) ShowMedia(c echo.Context) error {
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

	considered, err := h.media.IsConsidered(ctx, id)
	if err != nil {
		return internalError(err)
	}
	tags, err := h.tags.ElementTags(ctx, id)
	if err != nil {
		return internalError(err)
	}
	links, err := h.media.Links(ctx, id)
	if err != nil {
		return internalError(err)
	}
	uris, err := h.media.URIs(ctx, id)
	if err != nil {
		return internalError(err)
	}
	blockedBy, err := h.media.BlockedBy(ctx, id)
	if err != nil {
		return internalError(err)
	}
	blocking, err := h.media.Blocking(ctx, id)
	if err != nil {
		return internalError(err)
	}

	// the fastest of its collections approximates how quickly new
	// episodes push this one down the backlog
	var releasesPerWeek float64
	for _, link := range links {
		rate, err := h.collections.AverageReleasePerWeek(ctx, link.CollectionID)
		if err != nil {
			return internalError(err)
		}
		if rate > releasesPerWeek {
			releasesPerWeek = rate
		}
	}

	return h.render(c, h.mediaElementTmpl, elem.Title, mediaElementPage{
		Element:         elem,
		Considered:      considered,
		CanPlay:         h.registry.CanPlay(elem.URI),
		Tags:            tags,
		Links:           links,
		URIs:            uris,
		BlockedBy:       blockedBy,
		Blocking:        blocking,
		ReleasesPerWeek: releasesPerWeek,
	})
}

// ShowMediaThumbnail redirects to the element's thumbnail, or to the
// static placeholder when none was extracted. A missing element stays a
// plain 404 as it cannot have a placeholder either.
// GET /media/:id/thumbnail
func (h *Handlers) ShowMediaThumbnail(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return notFoundPage(c)
	}

	elem, err := h.media.GetByID(c.Request().Context(), id)
	if errors.Is(err, media.ErrNotFound) {
		return notFoundPage(c)
	}
	if err != nil {
		return internalError(err)
	}
	if elem.ThumbnailID == nil {
		return c.Redirect(http.StatusFound, "/static/thumbnail_missing.svg")
	}
	return c.Redirect(http.StatusFound, fmt.Sprintf("/thumbnail/%d", *elem.ThumbnailID))
}
