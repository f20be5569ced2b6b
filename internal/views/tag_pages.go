package views

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/entdecider/entdecider/internal/collection"
	"github.com/entdecider/entdecider/internal/media"
	"github.com/entdecider/entdecider/internal/tag"
)

type tagListPage struct {
	Tags []*tag.Tag
}

// ListTags renders all tags with a creation form.
// GET /tag
func (h *Handlers) ListTags(c echo.Context) error {
	tags, err := h.tags.List(c.Request().Context())
	if err != nil {
		return internalError(err)
	}
	return h.render(c, h.tagListTmpl, "Tags", tagListPage{Tags: tags})
}

type tagElementPage struct {
	Tag         *tag.Tag
	SuperTags   []*tag.Tag
	SubTags     []*tag.Tag
	Collections []*collection.Collection
	Media       []*MediaCard
}

// ShowTag renders the tag detail page with its DAG neighborhood and
// everything carrying the tag.
// GET /tag/:id
func (h *Handlers) ShowTag(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return notFoundPage(c)
	}
	ctx := c.Request().Context()

	t, err := h.tags.GetByID(ctx, id)
	if errors.Is(err, tag.ErrNotFound) {
		return notFoundPage(c)
	}
	if err != nil {
		return internalError(err)
	}

	supers, err := h.tags.SuperTags(ctx, id)
	if err != nil {
		return internalError(err)
	}
	subs, err := h.tags.SubTags(ctx, id)
	if err != nil {
		return internalError(err)
	}

	collectionIDs, err := h.tags.CollectionsWithTag(ctx, id)
	if err != nil {
		return internalError(err)
	}
	collections := make([]*collection.Collection, 0, len(collectionIDs))
	for _, collID := range collectionIDs {
		coll, err := h.collections.GetByID(ctx, collID)
		if err != nil {
			return internalError(err)
		}
		collections = append(collections, coll)
	}

	elementIDs, err := h.tags.ElementsWithTag(ctx, id)
	if err != nil {
		return internalError(err)
	}
	var cards []*MediaCard
	if len(elementIDs) > 0 {
		elements, err := h.media.List(ctx, media.ListOptions{
			IDs:   elementIDs,
			Order: "release_date_desc",
		})
		if err != nil {
			return internalError(err)
		}
		cards, err = h.buildCards(ctx, elements, true)
		if err != nil {
			return internalError(err)
		}
	}

	return h.render(c, h.tagElementTmpl, t.Title, tagElementPage{
		Tag:         t,
		SuperTags:   supers,
		SubTags:     subs,
		Collections: collections,
		Media:       cards,
	})
}
