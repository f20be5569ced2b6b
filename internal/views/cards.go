package views

import (
	"context"
	"fmt"

	"github.com/entdecider/entdecider/internal/collection"
	"github.com/entdecider/entdecider/internal/media"
	"github.com/entdecider/entdecider/internal/stringutil"
)

// MediaCard is the shared thumbnail card primitive. Everything the
// template needs is resolved up front so rendering stays loop free.
type MediaCard struct {
	Element    *media.Element
	Title      string
	Season     int
	Episode    int
	Considered bool
	CanPlay    bool
	// HideCheckbox suppresses the selection checkbox, used where batch
	// actions make no sense.
	HideCheckbox bool
}

// OverlayClass returns the card overlay with fixed precedence: watched
// beats ignored beats not_considered.
func (card *MediaCard) OverlayClass() string {
	switch {
	case card.Element.Watched:
		return "watched"
	case card.Element.Ignored:
		return "ignored"
	case !card.Considered:
		return "not_considered"
	default:
		return ""
	}
}

// EpisodeLabel renders the season/episode badge, empty when unset.
func (card *MediaCard) EpisodeLabel() string {
	switch {
	case card.Season != 0 && card.Episode != 0:
		return fmt.Sprintf("S%02dE%02d", card.Season, card.Episode)
	case card.Episode != 0:
		return fmt.Sprintf("E%02d", card.Episode)
	default:
		return ""
	}
}

// buildCards resolves card state for a batch of elements. The considered
// check runs as one query over all ids. With checkConsidered false the
// caller already knows all elements are considered, as listing queries
// filter on it.
func (h *Handlers) buildCards(ctx context.Context, elements []*media.Element, checkConsidered bool) ([]*MediaCard, error) {
	considered := map[int64]bool(nil)
	if checkConsidered {
		ids := make([]int64, 0, len(elements))
		for _, elem := range elements {
			ids = append(ids, elem.ID)
		}
		var err error
		considered, err = h.media.AreConsidered(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	cards := make([]*MediaCard, 0, len(elements))
	for _, elem := range elements {
		isConsidered := true
		if checkConsidered {
			isConsidered = considered[elem.ID]
		}
		cards = append(cards, &MediaCard{
			Element:    elem,
			Title:      elem.Title,
			Considered: isConsidered,
			CanPlay:    h.registry.CanPlay(elem.URI),
		})
	}
	return cards, nil
}

// buildEpisodeCards resolves cards for collection links, shortening the
// titles by the prefix and suffix all episodes share.
func (h *Handlers) buildEpisodeCards(ctx context.Context, links []*collection.Link) ([]*MediaCard, error) {
	elements := make([]*media.Element, 0, len(links))
	titles := make([]string, 0, len(links))
	for _, link := range links {
		elements = append(elements, link.Element)
		titles = append(titles, link.Element.Title)
	}
	cards, err := h.buildCards(ctx, elements, true)
	if err != nil {
		return nil, err
	}
	for i, short := range stringutil.RemoveCommonTrails(titles) {
		if short != "" {
			cards[i].Title = short
		}
		cards[i].Season = links[i].Season
		cards[i].Episode = links[i].Episode
	}
	return cards, nil
}
