// Package views serves the server rendered HTML pages. All mutation
// happens through plain form posts against the API handlers, the pages
// here only read.
package views

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/entdecider/entdecider/internal/collection"
	"github.com/entdecider/entdecider/internal/extractor"
	"github.com/entdecider/entdecider/internal/media"
	"github.com/entdecider/entdecider/internal/preferences"
	"github.com/entdecider/entdecider/internal/tag"
	"github.com/entdecider/entdecider/web"
)

// Handlers renders all HTML pages.
type Handlers struct {
	media       *media.Service
	collections *collection.Service
	tags        *tag.Service
	registry    *extractor.Registry
	generator   *preferences.Generator
	logger      zerolog.Logger

	dashboardTmpl          *template.Template
	mediaListTmpl          *template.Template
	mediaElementTmpl       *template.Template
	extractTmpl            *template.Template
	collectionListTmpl     *template.Template
	collectionElementTmpl  *template.Template
	collectionEpisodesTmpl *template.Template
	tagListTmpl            *template.Template
	tagElementTmpl         *template.Template
	recommendTmpl          *template.Template
	recommendAdaptiveTmpl  *template.Template
	statsTmpl              *template.Template
}

// NewHandlers loads the embedded templates and wires the page handlers.
func NewHandlers(
	mediaSvc *media.Service,
	collectionSvc *collection.Service,
	tagSvc *tag.Service,
	registry *extractor.Registry,
	generator *preferences.Generator,
	logger zerolog.Logger,
) (*Handlers, error) {
	templates, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to open templates: %w", err)
	}
	baseContent, err := fs.ReadFile(templates, "base.html")
	if err != nil {
		return nil, fmt.Errorf("failed to read base template: %w", err)
	}

	funcs := funcMap()
	page := func(name string) (*template.Template, error) {
		content, err := fs.ReadFile(templates, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}
		tmpl := template.New("page").Funcs(funcs)
		if tmpl, err = tmpl.Parse(string(baseContent)); err != nil {
			return nil, fmt.Errorf("failed to parse base template: %w", err)
		}
		if tmpl, err = tmpl.Parse(string(content)); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		return tmpl, nil
	}

	h := &Handlers{
		media:       mediaSvc,
		collections: collectionSvc,
		tags:        tagSvc,
		registry:    registry,
		generator:   generator,
		logger:      logger.With().Str("component", "views").Logger(),
	}
	for _, t := range []struct {
		target **template.Template
		name   string
	}{
		{&h.dashboardTmpl, "dashboard.html"},
		{&h.mediaListTmpl, "media_list.html"},
		{&h.mediaElementTmpl, "media_element.html"},
		{&h.extractTmpl, "extract.html"},
		{&h.collectionListTmpl, "collection_list.html"},
		{&h.collectionElementTmpl, "collection_element.html"},
		{&h.collectionEpisodesTmpl, "collection_episodes.html"},
		{&h.tagListTmpl, "tag_list.html"},
		{&h.tagElementTmpl, "tag_element.html"},
		{&h.recommendTmpl, "recommendations.html"},
		{&h.recommendAdaptiveTmpl, "recommendations_adaptive.html"},
		{&h.statsTmpl, "stats.html"},
	} {
		if *t.target, err = page(t.name); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// RegisterRoutes registers all page routes on the Echo root.
func (h *Handlers) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Dashboard)
	e.GET("/stats", h.StatsPage)

	e.GET("/media", h.ListMedia)
	e.GET("/media/short", h.ListShortMedia)
	e.GET("/media/short/:seconds", h.ListShortMedia)
	e.GET("/media/long", h.ListLongMedia)
	e.GET("/media/long/:seconds", h.ListLongMedia)
	e.GET("/media/overview", h.MediaOverview)
	e.GET("/media/unsorted", h.ListUnsortedMedia)
	e.GET("/media/extract", h.ExtractMediaForm)
	e.GET("/media/:id", h.ShowMedia)
	e.GET("/media/:id/thumbnail", h.ShowMediaThumbnail)
	e.GET("/media/:id/recommendations", h.RecommendOnMedia)

	e.GET("/collection", h.ListCollections)
	e.GET("/collection/all", h.ListAllCollections)
	e.GET("/collection/to_watch", h.ListCollectionsToWatch)
	e.GET("/collection/pinned", h.ListPinnedCollections)
	e.GET("/collection/overview", h.CollectionOverview)
	e.GET("/collection/extract", h.ExtractCollectionForm)
	e.GET("/collection/:id", h.ShowCollection)
	e.GET("/collection/:id/episodes", h.ShowCollectionEpisodes)

	e.GET("/tag", h.ListTags)
	e.GET("/tag/:id", h.ShowTag)

	e.GET("/recommendations/short_filler", h.RecommendShortFiller)
	e.GET("/recommendations/series_episode", h.RecommendSeriesEpisode)
	e.GET("/recommendations/movie_like", h.RecommendMovieLike)
	e.GET("/recommendations/adaptive", h.RecommendAdaptive)

	e.POST("/cookies/rating/positive", h.RatePositive)
	e.POST("/cookies/rating/negative", h.RateNegative)
	e.POST("/cookies/rating/reset", h.RateReset)
}

// pageData wraps every render. CurrentURL feeds the hidden redirect
// fields so mutation forms come back to the page they were on.
type pageData struct {
	Title      string
	CurrentURL string
	Data       any
}

func (h *Handlers) render(c echo.Context, tmpl *template.Template, title string, data any) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	err := tmpl.ExecuteTemplate(c.Response(), "base", pageData{
		Title:      title,
		CurrentURL: c.Request().RequestURI,
		Data:       data,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("page", title).Msg("Failed to render page")
	}
	return err
}

func notFoundPage(c echo.Context) error {
	return c.String(http.StatusNotFound, "Not found")
}

func internalError(err error) error {
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
