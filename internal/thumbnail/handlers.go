package thumbnail

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handlers serves stored thumbnail images.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new thumbnail handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers thumbnail routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/:id", h.Get)
}

// Get serves the image bytes, triggering the lazy download if needed.
// GET /thumbnail/:id
func (h *Handlers) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.String(http.StatusNotFound, "Not found")
	}

	t, data, err := h.service.Receive(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return c.String(http.StatusNotFound, "Not found")
	}
	if errors.Is(err, ErrUnsupportedType) || errors.Is(err, ErrDownloadFailed) {
		return c.String(http.StatusBadGateway, "Thumbnail unavailable")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	header := c.Response().Header()
	header.Set("Cache-Control", "public, max-age=86400")
	if t.LastDownloaded != nil {
		header.Set("Last-Modified", t.LastDownloaded.UTC().Format(http.TimeFormat))
	}
	return c.Blob(http.StatusOK, t.MimeType, data)
}
