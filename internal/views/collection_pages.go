package views

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/entdecider/entdecider/internal/collection"
	"github.com/entdecider/entdecider/internal/httputil"
	"github.com/entdecider/entdecider/internal/tag"
)

// smallCollectionMaxCount bounds inline episode grids. Bigger
// collections link to the dedicated episodes page instead.
const smallCollectionMaxCount = 100

type collectionRow struct {
	Collection *collection.Collection
	Stats      *collection.Stats
}

type collectionListPage struct {
	Heading string
	Rows    []*collectionRow
}

func (h *Handlers) renderCollectionList(c echo.Context, heading string, collections []*collection.Collection) error {
	ctx := c.Request().Context()
	rows := make([]*collectionRow, 0, len(collections))
	for _, coll := range collections {
		stats, err := h.collections.Stats(ctx, coll.ID)
		if err != nil {
			return internalError(err)
		}
		rows = append(rows, &collectionRow{Collection: coll, Stats: stats})
	}
	return h.render(c, h.collectionListTmpl, heading, collectionListPage{
		Heading: heading,
		Rows:    rows,
	})
}

// ListCollections renders all root collections.
// GET /collection
func (h *Handlers) ListCollections(c echo.Context) error {
	collections, err := h.collections.List(c.Request().Context(), collection.ListOptions{
		OnlyRoots:      true,
		IncludeIgnored: true,
	})
	if err != nil {
		return internalError(err)
	}
	return h.renderCollectionList(c, "Collections", collections)
}

// ListAllCollections renders every collection including non-roots.
// GET /collection/all
func (h *Handlers) ListAllCollections(c echo.Context) error {
	collections, err := h.collections.List(c.Request().Context(), collection.ListOptions{
		IncludeIgnored: true,
	})
	if err != nil {
		return internalError(err)
	}
	return h.renderCollectionList(c, "All Collections", collections)
}

// ListCollectionsToWatch renders root collections with something left to
// watch.
// GET /collection/to_watch
func (h *Handlers) ListCollectionsToWatch(c echo.Context) error {
	ctx := c.Request().Context()
	collections, err := h.collections.List(ctx, collection.ListOptions{OnlyRoots: true})
	if err != nil {
		return internalError(err)
	}

	rows := make([]*collectionRow, 0, len(collections))
	for _, coll := range collections {
		stats, err := h.collections.Stats(ctx, coll.ID)
		if err != nil {
			return internalError(err)
		}
		if stats.Completed() {
			continue
		}
		rows = append(rows, &collectionRow{Collection: coll, Stats: stats})
	}
	return h.render(c, h.collectionListTmpl, "Collections To Watch", collectionListPage{
		Heading: "Collections To Watch",
		Rows:    rows,
	})
}

// ListPinnedCollections renders pinned collections.
// GET /collection/pinned
func (h *Handlers) ListPinnedCollections(c echo.Context) error {
	collections, err := h.collections.List(c.Request().Context(), collection.ListOptions{
		OnlyPinned:     true,
		IncludeIgnored: true,
	})
	if err != nil {
		return internalError(err)
	}
	return h.renderCollectionList(c, "Pinned Collections", collections)
}

// CollectionOverview renders an arbitrary set of collections by id.
// GET /collection/overview?ids=1,2,3
func (h *Handlers) CollectionOverview(c echo.Context) error {
	ids := httputil.ParseCSIDs(c.QueryParam("ids"))
	if ids == nil {
		return c.JSON(http.StatusBadRequest, httputil.ErrorResponse{
			Status: false,
			Error:  "Could not parse id list",
		})
	}
	ctx := c.Request().Context()
	collections := make([]*collection.Collection, 0, len(ids))
	for _, id := range ids {
		coll, err := h.collections.GetByID(ctx, id)
		if errors.Is(err, collection.ErrNotFound) {
			continue
		}
		if err != nil {
			return internalError(err)
		}
		collections = append(collections, coll)
	}
	return h.renderCollectionList(c, "Collection Overview", collections)
}

// ExtractCollectionForm renders the URI submission form for collections.
// GET /collection/extract
func (h *Handlers) ExtractCollectionForm(c echo.Context) error {
	return h.render(c, h.extractTmpl, "Extract Collection", extractPage{
		Kind:       "collection",
		Action:     "/api/collection/extract",
		MassAction: "/api/collection/extract/mass",
	})
}

type collectionElementPage struct {
	Collection      *collection.Collection
	Stats           *collection.Stats
	NextEpisode     *collection.Link
	LastRelease     *time.Time
	Tags            []*tag.Tag
	URIs            []string
	Created         []*collection.Collection
	Episodes        []*MediaCard
	ReleasesPerWeek float64
}

func (h *Handlers) collectionPage(c echo.Context, withEpisodes func(*collection.Stats) bool) (*collectionElementPage, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return nil, nil
	}
	ctx := c.Request().Context()

	coll, err := h.collections.GetByID(ctx, id)
	if errors.Is(err, collection.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	stats, err := h.collections.Stats(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := h.collections.NextEpisode(ctx, id)
	if err != nil {
		return nil, err
	}
	allTags, err := h.tags.CollectionTags(ctx, id)
	if err != nil {
		return nil, err
	}
	tags := make([]*tag.Tag, 0, len(allTags))
	for _, t := range allTags {
		if t.UseForPreferences {
			tags = append(tags, t)
		}
	}
	uris, err := h.collections.URIs(ctx, id)
	if err != nil {
		return nil, err
	}
	created, err := h.collections.CreatedCollections(ctx, id)
	if err != nil {
		return nil, err
	}
	rate, err := h.collections.AverageReleasePerWeek(ctx, id)
	if err != nil {
		return nil, err
	}
	lastRelease, err := h.collections.LastReleaseDateToWatch(ctx, id)
	if err != nil {
		return nil, err
	}

	page := &collectionElementPage{
		Collection:      coll,
		Stats:           stats,
		NextEpisode:     next,
		LastRelease:     lastRelease,
		Tags:            tags,
		URIs:            uris,
		Created:         created,
		ReleasesPerWeek: rate,
	}
	if withEpisodes(stats) {
		links, err := h.collections.Episodes(ctx, id)
		if err != nil {
			return nil, err
		}
		page.Episodes, err = h.buildEpisodeCards(ctx, links)
		if err != nil {
			return nil, err
		}
	}
	return page, nil
}

// ShowCollection renders the collection detail page. The episode grid is
// only inlined for small collections.
// GET /collection/:id
func (h *Handlers) ShowCollection(c echo.Context) error {
	page, err := h.collectionPage(c, func(stats *collection.Stats) bool {
		return stats.FullCount() <= smallCollectionMaxCount
	})
	if err != nil {
		return internalError(err)
	}
	if page == nil {
		return notFoundPage(c)
	}
	return h.render(c, h.collectionElementTmpl, page.Collection.Title, page)
}

// ShowCollectionEpisodes renders the full episode grid of a collection.
// GET /collection/:id/episodes
func (h *Handlers) ShowCollectionEpisodes(c echo.Context) error {
	page, err := h.collectionPage(c, func(*collection.Stats) bool { return true })
	if err != nil {
		return internalError(err)
	}
	if page == nil {
		return notFoundPage(c)
	}
	return h.render(c, h.collectionEpisodesTmpl, page.Collection.Title+" Episodes", page)
}
