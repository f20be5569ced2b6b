package tag

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/entdecider/entdecider/internal/httputil"
)

// Handlers provides HTTP handlers for tag operations.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new tag handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers tag routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("/new", h.Create)
	g.POST("/delete_temporary", h.DeleteTemporary)
	g.POST("/:id", h.Update)
}

// Create inserts a tag from form fields.
// POST /api/tag/new
func (h *Handlers) Create(c echo.Context) error {
	title := c.FormValue("title")
	if title == "" {
		return c.JSON(http.StatusBadRequest, httputil.ErrorResponse{
			Status: false,
			Error:  "Missing title for new tag",
		})
	}
	_, err := h.service.Create(c.Request().Context(), CreateInput{
		Title:             title,
		Notes:             c.FormValue("notes"),
		UseForPreferences: httputil.ParseBool(c.FormValue("use_for_preferences")),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return httputil.RedirectBackOrOkay(c)
}

// Update applies form fields to a tag. Unknown keys are rejected.
// POST /api/tag/:id
func (h *Handlers) Update(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusNotFound, httputil.ErrorResponse{
			Status: false,
			Error:  "Object not found",
		})
	}

	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var input UpdateInput
	for key := range form {
		value := c.FormValue(key)
		switch key {
		case "redirect":
			// handled by RedirectBackOrOkay
		case "title":
			input.Title = &value
		case "notes":
			input.Notes = &value
		case "use_for_preferences":
			v := httputil.ParseBool(value)
			input.UseForPreferences = &v
		default:
			return c.JSON(http.StatusBadRequest, httputil.ErrorResponse{
				Status: false,
				Error:  "Cannot set key " + strconv.Quote(key) + " on tag",
			})
		}
	}

	if err := h.service.Update(c.Request().Context(), id, input); err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, httputil.ErrorResponse{
				Status: false,
				Error:  "Object not found",
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return httputil.RedirectBackOrOkay(c)
}

// DeleteTemporary removes tags left behind by aborted algorithm runs.
// POST /api/tag/delete_temporary
func (h *Handlers) DeleteTemporary(c echo.Context) error {
	if _, err := h.service.ScrubTemporary(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return httputil.RedirectBackOrOkay(c)
}
