package collection

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/entdecider/entdecider/internal/httputil"
	"github.com/entdecider/entdecider/internal/media"
)

// Handlers provides HTTP handlers for collection operations.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new collection handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers collection routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/list", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/delete", h.Delete)
}

type collectionResponse struct {
	Status bool `json:"status"`
	Data   any  `json:"data"`
}

// List returns a summary of all collections.
// GET /api/collection/list
func (h *Handlers) List(c echo.Context) error {
	collections, err := h.service.List(c.Request().Context(), ListOptions{IncludeIgnored: true})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	type item struct {
		ID          int64  `json:"id"`
		Title       string `json:"title"`
		ReleaseDate any    `json:"release_date"`
		KeepUpdated bool   `json:"keep_updated"`
		Pinned      bool   `json:"pinned"`
		Ignored     bool   `json:"ignored"`
	}
	data := make([]item, 0, len(collections))
	for _, coll := range collections {
		data = append(data, item{
			ID:          coll.ID,
			Title:       coll.Title,
			ReleaseDate: coll.ReleaseDate,
			KeepUpdated: coll.KeepUpdated,
			Pinned:      coll.Pinned,
			Ignored:     coll.Ignored,
		})
	}
	return c.JSON(http.StatusOK, collectionResponse{Status: true, Data: data})
}

// Get returns a single collection with its media links.
// GET /api/collection/:id
func (h *Handlers) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return notFound(c)
	}
	ctx := c.Request().Context()

	coll, err := h.service.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return notFound(c)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	links, err := h.service.Episodes(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	type linkItem struct {
		Media struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
		} `json:"media"`
		Season  int `json:"season"`
		Episode int `json:"episode"`
	}
	linkItems := make([]linkItem, 0, len(links))
	for _, l := range links {
		var li linkItem
		li.Media.ID = l.Element.ID
		li.Media.Title = l.Element.Title
		li.Season = l.Season
		li.Episode = l.Episode
		linkItems = append(linkItems, li)
	}

	return c.JSON(http.StatusOK, collectionResponse{Status: true, Data: map[string]any{
		"id":           coll.ID,
		"title":        coll.Title,
		"notes":        coll.Notes,
		"release_date": coll.ReleaseDate,
		"ignored":      coll.Ignored,
		"media_links":  linkItems,
	}})
}

// Update applies form fields and collection-wide mark actions.
// POST /api/collection/:id
func (h *Handlers) Update(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return notFound(c)
	}
	ctx := c.Request().Context()

	if _, err := h.service.GetByID(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound(c)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// Mark actions run before plain field updates, matching the order a
	// user expects when combining them in one form.
	if httputil.ParseBool(c.FormValue("reset_ignored_marks")) {
		if err := h.service.ResetIgnoredMarks(ctx, id); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	if httputil.ParseBool(c.FormValue("reset_marks")) {
		if err := h.service.ResetMarks(ctx, id); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	if markAs := c.FormValue("mark_unmarked_as"); markAs != "" {
		if err := h.service.MarkUnmarkedAs(ctx, id, media.WatchState(markAs)); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	var input UpdateInput
	watchInOrderChanged := false
	for key := range form {
		value := c.FormValue(key)
		switch key {
		case "redirect", "reset_ignored_marks", "reset_marks", "mark_unmarked_as":
			// handled above
		case "title":
			input.Title = &value
		case "notes":
			input.Notes = &value
		case "pinned":
			v := httputil.ParseBool(value)
			input.Pinned = &v
		case "ignored":
			v := httputil.ParseBool(value)
			input.Ignored = &v
		case "keep_updated":
			v := httputil.ParseBool(value)
			input.KeepUpdated = &v
		case "watch_in_order":
			v := httputil.ParseBool(value)
			input.WatchInOrder = &v
			watchInOrderChanged = true
		default:
			return c.JSON(http.StatusBadRequest, httputil.ErrorResponse{
				Status: false,
				Error:  "Cannot set key " + strconv.Quote(key) + " on media collection",
			})
		}
	}

	if err := h.service.Update(ctx, id, input); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if watchInOrderChanged {
		if err := h.service.RebuildLookupCache(ctx, id); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return httputil.RedirectBackOrOkay(c)
}

// Delete removes a collection.
// DELETE /api/collection/:id
// POST /api/collection/:id/delete
func (h *Handlers) Delete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return notFound(c)
	}
	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound(c)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return httputil.RedirectBackOrOkay(c)
}

func notFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, httputil.ErrorResponse{
		Status: false,
		Error:  "Object not found",
	})
}
