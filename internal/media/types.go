package media

import (
	"fmt"
	"time"
)

// WatchState is the derived tri-state mark of an element.
type WatchState string

const (
	WatchStateUnmarked WatchState = "unmarked"
	WatchStateWatched  WatchState = "watched"
	WatchStateIgnored  WatchState = "ignored"
)

// Element is a single watchable item, usually a video.
type Element struct {
	ID            int64      `json:"id"`
	URI           string     `json:"uri"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Notes         string     `json:"notes"`
	ReleaseDate   *time.Time `json:"release_date"`
	ExtractorName string     `json:"extractor_name"`
	ExtractorKey  string     `json:"extractor_key"`
	LastUpdated   *time.Time `json:"last_updated"`
	Watched       bool       `json:"watched"`
	Ignored       bool       `json:"ignored"`
	Progress      int        `json:"progress"`
	Length        int        `json:"length"`
	ThumbnailID   *int64     `json:"thumbnail_id,omitempty"`
}

// WatchState derives the tri-state mark. Watched wins over ignored.
func (e *Element) WatchState() WatchState {
	switch {
	case e.Watched:
		return WatchStateWatched
	case e.Ignored:
		return WatchStateIgnored
	default:
		return WatchStateUnmarked
	}
}

// SkipOver reports whether the element is out of the running, either
// watched or ignored.
func (e *Element) SkipOver() bool {
	return e.Watched || e.Ignored
}

// Started reports whether playback was begun but not finished.
func (e *Element) Started() bool {
	return !e.SkipOver() && e.Progress != 0
}

// LeftLength returns the seconds of playback remaining.
func (e *Element) LeftLength() int {
	if e.Watched {
		return 0
	}
	return e.Length - e.Progress
}

// WasExtracted reports whether metadata extraction ran at least once.
func (e *Element) WasExtracted() bool {
	return e.LastUpdated != nil
}

// Released reports whether the element's release date has passed.
func (e *Element) Released(now time.Time) bool {
	return e.ReleaseDate != nil && !e.ReleaseDate.After(now)
}

// InfoLink returns the detail page path for the element.
func (e *Element) InfoLink() string {
	return fmt.Sprintf("/media/%d", e.ID)
}

// CollectionLink ties an element to a collection at a sort position.
type CollectionLink struct {
	CollectionID    int64  `json:"collection_id"`
	CollectionTitle string `json:"collection_title"`
	ElementID       int64  `json:"element_id"`
	Season          int    `json:"season"`
	Episode         int    `json:"episode"`
}

// CreateInput holds the fields for creating an element.
type CreateInput struct {
	URI           string
	Title         string
	Description   string
	Notes         string
	ReleaseDate   *time.Time
	ExtractorName string
	ExtractorKey  string
	Length        int
	ThumbnailID   *int64
}

// UpdateInput holds optional field updates for an element. Nil fields
// are left untouched.
type UpdateInput struct {
	Title       *string
	Description *string
	Notes       *string
	ReleaseDate *time.Time
	Progress    *int
	Length      *int
	Watched     *bool
	Ignored     *bool
	ThumbnailID *int64
	LastUpdated *time.Time
}

// ListOptions filters and orders element listings.
type ListOptions struct {
	// OnlyConsidered limits results to elements currently eligible to watch.
	OnlyConsidered bool
	// OnlyUnmarked limits results to elements neither watched nor ignored.
	OnlyUnmarked bool
	// MinLength excludes shorter elements, in seconds.
	MinLength int
	// MaxLength excludes longer elements, in seconds, 0 means no limit.
	MaxLength int
	// MinLeftLength and MaxLeftLength filter on the remaining playback
	// time (length minus progress), in seconds, 0 means no limit.
	MinLeftLength int
	MaxLeftLength int
	// OnlyUnsorted keeps only elements without collection links.
	OnlyUnsorted bool
	// Order is one of "release_date", "release_date_desc" or "shortest".
	Order string
	// Limit caps the number of rows, 0 means no limit.
	Limit int
	// IDs restricts the listing to the given elements.
	IDs []int64
}
