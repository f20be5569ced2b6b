package extractor

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/entdecider/entdecider/internal/collection"
	"github.com/entdecider/entdecider/internal/httputil"
	"github.com/entdecider/entdecider/internal/media"
)

// Handlers provides the extraction and refresh endpoints.
type Handlers struct {
	registry    *Registry
	media       *media.Service
	collections *collection.Service
}

// NewHandlers creates a new extractor handlers instance.
func NewHandlers(registry *Registry, mediaSvc *media.Service, collectionSvc *collection.Service) *Handlers {
	return &Handlers{
		registry:    registry,
		media:       mediaSvc,
		collections: collectionSvc,
	}
}

// RegisterRoutes registers extraction routes on the api group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("/media/extract", h.ExtractMedia)
	g.POST("/media/extract/mass", h.ExtractMediaMass)
	g.POST("/collection/extract", h.ExtractCollection)
	g.POST("/collection/extract/mass", h.ExtractCollectionMass)
	g.POST("/refresh/media/:id", h.RefreshMedia)
	g.POST("/refresh/collection/:id", h.RefreshCollection)
	g.POST("/refresh/collections", h.RefreshCollections)
}

// ExtractMedia extracts a single media URI.
// POST /api/media/extract
func (h *Handlers) ExtractMedia(c echo.Context) error {
	uri := strings.TrimSpace(c.FormValue("uri"))
	if uri == "" {
		return missingURI(c)
	}

	elem, err := h.registry.ExtractMedia(c.Request().Context(), uri)
	if err != nil {
		return extractFailed(c, err)
	}
	if httputil.ParseBool(c.FormValue("redirect_to_object")) {
		return c.Redirect(http.StatusSeeOther, elem.InfoLink())
	}
	return httputil.RedirectBackOrOkay(c)
}

// ExtractMediaMass extracts a newline separated list of media URIs.
// Lines starting with "#" are treated as comments.
// POST /api/media/extract/mass
func (h *Handlers) ExtractMediaMass(c echo.Context) error {
	uris := splitURIList(c.FormValue("uris"))
	if len(uris) == 0 {
		return missingURI(c)
	}
	ctx := c.Request().Context()

	var ids []int64
	var failures []uriError
	for _, uri := range uris {
		elem, err := h.registry.ExtractMedia(ctx, uri)
		if err != nil {
			failures = append(failures, uriError{URI: uri, Error: err.Error()})
			continue
		}
		ids = append(ids, elem.ID)
	}

	if len(failures) > 0 {
		return c.JSON(http.StatusNotImplemented, map[string]any{
			"status":            false,
			"successful_medias": ids,
			"error": map[string]any{
				"msg":  "Failed to extract all medias successfully",
				"data": failures,
			},
		})
	}
	if len(ids) > 0 && httputil.ParseBool(c.FormValue("redirect_to_overview")) {
		return c.Redirect(http.StatusSeeOther, "/media/overview?ids="+joinIDs(ids))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":            true,
		"successful_medias": ids,
	})
}

// ExtractCollection extracts a single collection URI and rebuilds the
// episode ordering cache.
// POST /api/collection/extract
func (h *Handlers) ExtractCollection(c echo.Context) error {
	uri := strings.TrimSpace(c.FormValue("uri"))
	if uri == "" {
		return missingURI(c)
	}
	ctx := c.Request().Context()

	coll, _, err := h.registry.ExtractCollection(ctx, uri)
	if err != nil {
		return extractFailed(c, err)
	}
	if err := h.collections.RebuildLookupCache(ctx, coll.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if httputil.ParseBool(c.FormValue("redirect_to_object")) {
		return c.Redirect(http.StatusSeeOther, coll.InfoLink())
	}
	return httputil.RedirectBackOrOkay(c)
}

// ExtractCollectionMass extracts a newline separated list of collection
// URIs.
// POST /api/collection/extract/mass
func (h *Handlers) ExtractCollectionMass(c echo.Context) error {
	uris := splitURIList(c.FormValue("uris"))
	if len(uris) == 0 {
		return missingURI(c)
	}
	ctx := c.Request().Context()

	var ids []int64
	var failures []uriError
	for _, uri := range uris {
		coll, _, err := h.registry.ExtractCollection(ctx, uri)
		if err != nil {
			failures = append(failures, uriError{URI: uri, Error: err.Error()})
			continue
		}
		ids = append(ids, coll.ID)
	}

	if len(failures) > 0 {
		return c.JSON(http.StatusNotImplemented, map[string]any{
			"status":                 false,
			"successful_collections": ids,
			"error": map[string]any{
				"msg":  "Failed to extract all collections successfully",
				"data": failures,
			},
		})
	}
	if len(ids) > 0 {
		if err := h.collections.RebuildLookupCache(ctx, ids...); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if httputil.ParseBool(c.FormValue("redirect_to_overview")) {
			return c.Redirect(http.StatusSeeOther, "/collection/overview?ids="+joinIDs(ids))
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":                 true,
		"successful_collections": ids,
	})
}

// RefreshMedia forces a metadata update for one element.
// POST /api/refresh/media/:id
func (h *Handlers) RefreshMedia(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return notFound(c)
	}
	ctx := c.Request().Context()

	elem, err := h.media.GetByID(ctx, id)
	if errors.Is(err, media.ErrNotFound) {
		return notFound(c)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.registry.UpdateMedia(ctx, elem, true); err != nil {
		return extractFailed(c, err)
	}
	return httputil.RedirectBackOrOkay(c)
}

// RefreshCollection forces a metadata update for one collection.
// POST /api/refresh/collection/:id
func (h *Handlers) RefreshCollection(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return notFound(c)
	}
	ctx := c.Request().Context()

	coll, err := h.collections.GetByID(ctx, id)
	if errors.Is(err, collection.ErrNotFound) {
		return notFound(c)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	changed, err := h.registry.UpdateCollection(ctx, coll, true)
	if err != nil {
		return extractFailed(c, err)
	}
	if changed {
		if err := h.collections.RebuildLookupCache(ctx, coll.ID); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return httputil.RedirectBackOrOkay(c)
}

// RefreshCollections refreshes every keep_updated collection.
// POST /api/refresh/collections
func (h *Handlers) RefreshCollections(c echo.Context) error {
	ctx := c.Request().Context()

	changed, failures, err := h.registry.RefreshAll(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if len(changed) > 0 {
		if err := h.collections.RebuildLookupCache(ctx, changed...); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	if len(failures) > 0 {
		return c.JSON(http.StatusNotImplemented, map[string]any{
			"status": false,
			"error": map[string]any{
				"msg":  "Failed to update all collections successfully",
				"data": failures,
			},
		})
	}
	return httputil.RedirectBackOrOkay(c)
}

type uriError struct {
	URI   string `json:"uri"`
	Error string `json:"error"`
}

// splitURIList parses a newline separated URI list, dropping blank
// lines and "#" comments.
func splitURIList(raw string) []string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	uris := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		uris = append(uris, line)
	}
	return uris
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func notFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, httputil.ErrorResponse{
		Status: false,
		Error:  "Object not found",
	})
}

func missingURI(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, httputil.ErrorResponse{
		Status: false,
		Error:  "Missing uri value to extract",
	})
}

func extractFailed(c echo.Context, err error) error {
	if errors.Is(err, ErrNoExtractor) {
		return c.JSON(http.StatusBadRequest, httputil.ErrorResponse{
			Status: false,
			Error:  err.Error(),
		})
	}
	return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("extraction failed: %v", err))
}
