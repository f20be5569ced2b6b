package collection

import (
	"fmt"
	"time"

	"github.com/entdecider/entdecider/internal/media"
)

// Collection groups media elements, for example a show, a season or a
// channel.
type Collection struct {
	ID               int64      `json:"id"`
	URI              string     `json:"uri"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Notes            string     `json:"notes"`
	ReleaseDate      *time.Time `json:"release_date"`
	CreatorID        *int64     `json:"creator_id,omitempty"`
	ExtractorName    string     `json:"extractor_name"`
	ExtractorKey     string     `json:"extractor_key"`
	LastUpdated      *time.Time `json:"last_updated"`
	KeepUpdated      bool       `json:"keep_updated"`
	WatchInOrder     bool       `json:"watch_in_order"`
	WatchInOrderAuto bool       `json:"watch_in_order_auto"`
	SortingMethod    int        `json:"sorting_method"`
	Pinned           bool       `json:"pinned"`
	Ignored          bool       `json:"ignored"`
}

// IsCreator reports whether the collection represents a creator, which
// is modelled as a collection that is its own creator.
func (c *Collection) IsCreator() bool {
	return c.CreatorID != nil && *c.CreatorID == c.ID
}

// HasCreator reports whether a creator collection is attached.
func (c *Collection) HasCreator() bool {
	return c.CreatorID != nil
}

// IsRootCollection reports whether the collection shows up in top level
// listings.
func (c *Collection) IsRootCollection() bool {
	return c.IsCreator() || !c.HasCreator()
}

// WasExtracted reports whether metadata extraction ran at least once.
func (c *Collection) WasExtracted() bool {
	return c.LastUpdated != nil
}

// InfoLink returns the detail page path for the collection.
func (c *Collection) InfoLink() string {
	return fmt.Sprintf("/collection/%d", c.ID)
}

// Link is a collection membership carrying the linked element.
type Link struct {
	Season  int            `json:"season"`
	Episode int            `json:"episode"`
	Element *media.Element `json:"element"`
}

// Stats buckets the playback seconds of a collection. Partial progress
// of unfinished elements counts as watched seconds.
type Stats struct {
	ToWatchCount int `json:"to_watch_count"`
	IgnoredCount int `json:"ignored_count"`
	WatchedCount int `json:"watched_count"`

	ToWatchSeconds int `json:"to_watch_seconds"`
	IgnoredSeconds int `json:"ignored_seconds"`
	WatchedSeconds int `json:"watched_seconds"`
}

// FullCount is the number of linked elements.
func (s *Stats) FullCount() int {
	return s.ToWatchCount + s.IgnoredCount + s.WatchedCount
}

// FullSeconds is the total length of all linked elements.
func (s *Stats) FullSeconds() int {
	return s.ToWatchSeconds + s.IgnoredSeconds + s.WatchedSeconds
}

// Completed reports whether nothing is left to watch.
func (s *Stats) Completed() bool {
	return s.ToWatchCount <= 0
}

// CreateInput holds the fields for creating a collection.
type CreateInput struct {
	URI           string
	Title         string
	Description   string
	Notes         string
	ReleaseDate   *time.Time
	CreatorID     *int64
	ExtractorName string
	ExtractorKey  string
	KeepUpdated   bool
	WatchInOrder  bool
}

// UpdateInput holds optional field updates for a collection. Nil fields
// are left untouched.
type UpdateInput struct {
	Title        *string
	Description  *string
	Notes        *string
	ReleaseDate  *time.Time
	CreatorID    *int64
	KeepUpdated  *bool
	WatchInOrder *bool
	Pinned       *bool
	Ignored      *bool
	LastUpdated  *time.Time
}

// ListOptions filters collection listings.
type ListOptions struct {
	// OnlyRoots keeps only creator and creator-less collections.
	OnlyRoots bool
	// OnlyKeepUpdated keeps only collections refreshed periodically.
	OnlyKeepUpdated bool
	// OnlyPinned keeps only pinned collections.
	OnlyPinned bool
	// IncludeIgnored also returns ignored collections.
	IncludeIgnored bool
}
