package media

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/entdecider/entdecider/internal/httputil"
)

// Handlers provides HTTP handlers for media element operations.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new media handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers media routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/list", h.List)
	g.POST("/set_watched", h.SetWatched)
	g.POST("/set_ignored", h.SetIgnored)
	g.POST("/set_dependent", h.SetDependent)
	g.POST("/add_blocking", h.AddBlocking)
	g.POST("/remove_blocking", h.RemoveBlocking)
	g.GET("/:id", h.Get)
	g.POST("/:id", h.Update)
}

type elementResponse struct {
	Status bool `json:"status"`
	Data   any  `json:"data"`
}

// List returns a summary of all media elements.
// GET /api/media/list
func (h *Handlers) List(c echo.Context) error {
	elements, err := h.service.List(c.Request().Context(), ListOptions{})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	type item struct {
		ID          int64  `json:"id"`
		Title       string `json:"title"`
		ReleaseDate any    `json:"release_date"`
		Length      int    `json:"length"`
		Progress    int    `json:"progress"`
	}
	data := make([]item, 0, len(elements))
	for _, e := range elements {
		data = append(data, item{
			ID:          e.ID,
			Title:       e.Title,
			ReleaseDate: e.ReleaseDate,
			Length:      e.Length,
			Progress:    e.Progress,
		})
	}
	return c.JSON(http.StatusOK, elementResponse{Status: true, Data: data})
}

// Get returns a single element with its collection links.
// GET /api/media/:id
func (h *Handlers) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return notFound(c)
	}
	ctx := c.Request().Context()

	elem, err := h.service.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return notFound(c)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	considered, err := h.service.IsConsidered(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	links, err := h.service.Links(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	type linkItem struct {
		Collection struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
		} `json:"collection"`
		Season  int `json:"season"`
		Episode int `json:"episode"`
	}
	linkItems := make([]linkItem, 0, len(links))
	for _, l := range links {
		var li linkItem
		li.Collection.ID = l.CollectionID
		li.Collection.Title = l.CollectionTitle
		li.Season = l.Season
		li.Episode = l.Episode
		linkItems = append(linkItems, li)
	}

	return c.JSON(http.StatusOK, elementResponse{Status: true, Data: map[string]any{
		"id":               elem.ID,
		"title":            elem.Title,
		"notes":            elem.Notes,
		"release_date":     elem.ReleaseDate,
		"length":           elem.Length,
		"progress":         elem.Progress,
		"ignored":          elem.Ignored,
		"watched":          elem.Watched,
		"can_considered":   considered,
		"collection_links": linkItems,
	}})
}

// Update applies form fields to an element. Unknown keys are rejected so
// typos in templates surface instead of being dropped.
// POST /api/media/:id
func (h *Handlers) Update(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return notFound(c)
	}

	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var input UpdateInput
	var watched, ignored *bool
	for key := range form {
		value := c.FormValue(key)
		switch key {
		case "redirect":
			// handled by RedirectBackOrOkay
		case "title":
			input.Title = &value
		case "notes":
			input.Notes = &value
		case "progress":
			seconds, err := ParseTimedelta(value)
			if err != nil {
				return c.JSON(http.StatusBadRequest, httputil.ErrorResponse{
					Status: false,
					Error:  err.Error(),
				})
			}
			input.Progress = &seconds
		case "watched":
			v := httputil.ParseBool(value)
			watched = &v
		case "ignored":
			v := httputil.ParseBool(value)
			ignored = &v
		default:
			return c.JSON(http.StatusBadRequest, httputil.ErrorResponse{
				Status: false,
				Error:  "Cannot set key " + strconv.Quote(key) + " on media element",
			})
		}
	}

	// Setting one mark clears the other so no element ends up both
	// watched and ignored; watched wins when a form posts both.
	unset := false
	if ignored != nil {
		input.Ignored = ignored
		if *ignored {
			input.Watched = &unset
		}
	}
	if watched != nil {
		input.Watched = watched
		if *watched {
			input.Ignored = &unset
		}
	}

	if err := h.service.Update(c.Request().Context(), id, input); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound(c)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return httputil.RedirectBackOrOkay(c)
}

// SetWatched marks a batch of elements watched.
// POST /api/media/set_watched
func (h *Handlers) SetWatched(c echo.Context) error {
	return h.setMarks(c, h.service.SetWatched)
}

// SetIgnored marks a batch of elements ignored.
// POST /api/media/set_ignored
func (h *Handlers) SetIgnored(c echo.Context) error {
	return h.setMarks(c, h.service.SetIgnored)
}

func (h *Handlers) setMarks(c echo.Context, apply func(ctx context.Context, ids []int64) error) error {
	ids := httputil.ParseCSIDs(c.FormValue("ids"))
	if ids == nil {
		return badIDList(c)
	}
	if err := apply(c.Request().Context(), ids); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return httputil.RedirectBackOrOkay(c)
}

// SetDependent chains a batch of elements into blocking dependencies.
// POST /api/media/set_dependent
func (h *Handlers) SetDependent(c echo.Context) error {
	ids := httputil.ParseCSIDs(c.FormValue("ids"))
	if ids == nil {
		return badIDList(c)
	}
	if err := h.service.SetDependent(c.Request().Context(), ids); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return httputil.RedirectBackOrOkay(c)
}

// AddBlocking adds one blocking dependency between two elements.
// POST /api/media/add_blocking
func (h *Handlers) AddBlocking(c echo.Context) error {
	return h.editBlocking(c, h.service.AddBlocking)
}

// RemoveBlocking removes one blocking dependency between two elements.
// POST /api/media/remove_blocking
func (h *Handlers) RemoveBlocking(c echo.Context) error {
	return h.editBlocking(c, h.service.RemoveBlocking)
}

func (h *Handlers) editBlocking(c echo.Context, apply func(ctx context.Context, blockerID, blockedID int64) error) error {
	blockerID, err1 := strconv.ParseInt(c.FormValue("blocked_by"), 10, 64)
	blockedID, err2 := strconv.ParseInt(c.FormValue("is_blocking"), 10, 64)
	if err1 != nil || err2 != nil {
		return notFound(c)
	}
	if err := apply(c.Request().Context(), blockerID, blockedID); err != nil {
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

func badIDList(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, httputil.ErrorResponse{
		Status: false,
		Error:  "Could not parse id list",
	})
}
