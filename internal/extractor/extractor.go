// Package extractor turns URIs into media elements and collections by
// fetching metadata from the site behind the URI. Sources register with
// a registry that picks the right one per URI and stores the results.
package extractor

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoExtractor   = errors.New("no suitable extractor found")
	ErrNotRecognized = errors.New("extractor does not recognize this URI")
	ErrFetchFailed   = errors.New("metadata fetch failed")
)

// SuitableLevel grades how well a source matches a URI. Fallback
// sources only run when no source claims the URI outright.
type SuitableLevel int

const (
	SuitableNo SuitableLevel = iota
	SuitableFallback
	SuitableAlways
)

// CanAccept reports whether the source can handle the URI at all.
func (l SuitableLevel) CanAccept() bool {
	return l != SuitableNo
}

// AcceptImmediately reports whether the source should win without
// consulting the remaining sources.
func (l SuitableLevel) AcceptImmediately() bool {
	return l == SuitableAlways
}

// AlwaysOrNo maps a match result to SuitableAlways or SuitableNo.
func AlwaysOrNo(match bool) SuitableLevel {
	if match {
		return SuitableAlways
	}
	return SuitableNo
}

// AlwaysOrFallback maps a match result to SuitableAlways or
// SuitableFallback, for sources that can try almost any URI.
func AlwaysOrFallback(match bool) SuitableLevel {
	if match {
		return SuitableAlways
	}
	return SuitableFallback
}

// AuthorData describes the channel or feed a media element belongs to.
// A creator collection is maintained from it.
type AuthorData struct {
	URI  string
	Key  string
	Name string
}

// MediaData is the fetched metadata for one media element.
type MediaData struct {
	// URI is the canonical URI of the element.
	URI string
	// Key identifies the element within its extractor.
	Key         string
	Title       string
	Description string
	ReleaseDate *time.Time
	// Length is the playback length in seconds.
	Length       int
	ThumbnailURI string
	// ExtraURIs are additional URIs that should resolve to the element.
	ExtraURIs []string
	Author    *AuthorData
}

// EpisodeData places fetched media inside a collection.
type EpisodeData struct {
	Season  int
	Episode int
	Media   MediaData
}

// CollectionData is the fetched metadata for one collection including
// its episodes.
type CollectionData struct {
	URI         string
	Key         string
	Title       string
	Description string
	ReleaseDate *time.Time
	// WatchInOrder hints whether episodes build on each other. Applied
	// only while the collection has not been configured manually.
	WatchInOrder *bool
	ExtraURIs    []string
	Episodes     []EpisodeData
}

// MediaSource fetches metadata for single media elements.
type MediaSource interface {
	Name() string
	Suitable(uri string) SuitableLevel
	FetchMedia(ctx context.Context, uri string) (*MediaData, error)
}

// CollectionSource fetches metadata for collections.
type CollectionSource interface {
	Name() string
	Suitable(uri string) SuitableLevel
	FetchCollection(ctx context.Context, uri string) (*CollectionData, error)
}
