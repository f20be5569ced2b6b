package extractor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/entdecider/entdecider/internal/collection"
	"github.com/entdecider/entdecider/internal/media"
	"github.com/entdecider/entdecider/internal/thumbnail"
)

// Registry holds the registered sources and stores what they fetch.
type Registry struct {
	mediaSources      []MediaSource
	collectionSources []CollectionSource

	media       *media.Service
	collections *collection.Service
	thumbnails  *thumbnail.Service
	logger      zerolog.Logger
}

// NewRegistry creates an empty extractor registry.
func NewRegistry(mediaSvc *media.Service, collectionSvc *collection.Service, thumbnailSvc *thumbnail.Service, logger zerolog.Logger) *Registry {
	return &Registry{
		media:       mediaSvc,
		collections: collectionSvc,
		thumbnails:  thumbnailSvc,
		logger:      logger.With().Str("component", "extractor").Logger(),
	}
}

// RegisterMedia adds a media source. Registration order decides which
// fallback source wins.
func (r *Registry) RegisterMedia(src MediaSource) {
	r.mediaSources = append(r.mediaSources, src)
}

// RegisterCollection adds a collection source.
func (r *Registry) RegisterCollection(src CollectionSource) {
	r.collectionSources = append(r.collectionSources, src)
}

func (r *Registry) mediaSourceFor(uri string) MediaSource {
	var fallback MediaSource
	for _, src := range r.mediaSources {
		level := src.Suitable(uri)
		if level.AcceptImmediately() {
			return src
		}
		if level.CanAccept() && fallback == nil {
			fallback = src
		}
	}
	return fallback
}

func (r *Registry) collectionSourceFor(uri string) CollectionSource {
	var fallback CollectionSource
	for _, src := range r.collectionSources {
		level := src.Suitable(uri)
		if level.AcceptImmediately() {
			return src
		}
		if level.CanAccept() && fallback == nil {
			fallback = src
		}
	}
	return fallback
}

// CanPlay reports whether some media source recognizes the URI, which
// makes it playable through the client deep link.
func (r *Registry) CanPlay(uri string) bool {
	for _, src := range r.mediaSources {
		if src.Suitable(uri).CanAccept() {
			return true
		}
	}
	return false
}

// ExtractMedia resolves a URI to a media element, fetching and storing
// it when it is not known yet.
func (r *Registry) ExtractMedia(ctx context.Context, uri string) (*media.Element, error) {
	elem, err := r.media.GetByURI(ctx, uri)
	if err == nil {
		return elem, nil
	}
	if !errors.Is(err, media.ErrNotFound) {
		return nil, err
	}

	src := r.mediaSourceFor(uri)
	if src == nil {
		return nil, fmt.Errorf("%w for media uri %q", ErrNoExtractor, uri)
	}
	data, err := src.FetchMedia(ctx, uri)
	if err != nil {
		return nil, err
	}
	return r.storeMedia(ctx, src.Name(), data)
}

// UpdateMedia re-fetches an already extracted element. With force false
// nothing happens, matching the cheap per-element cache policy.
func (r *Registry) UpdateMedia(ctx context.Context, elem *media.Element, force bool) error {
	if elem.WasExtracted() && !force {
		return nil
	}
	src := r.mediaSourceFor(elem.URI)
	if src == nil {
		return fmt.Errorf("%w for media uri %q", ErrNoExtractor, elem.URI)
	}
	data, err := src.FetchMedia(ctx, elem.URI)
	if err != nil {
		return err
	}
	_, err = r.storeMedia(ctx, src.Name(), data)
	return err
}

// storeMedia creates or updates the element for fetched metadata.
func (r *Registry) storeMedia(ctx context.Context, sourceName string, data *MediaData) (*media.Element, error) {
	elem, err := r.media.GetByExtractor(ctx, sourceName, data.Key)
	if errors.Is(err, media.ErrNotFound) {
		elem, err = r.media.Create(ctx, media.CreateInput{
			URI:           data.URI,
			ExtractorName: sourceName,
			ExtractorKey:  data.Key,
		})
		if errors.Is(err, media.ErrURIConflict) {
			// someone stored the same URI under another key concurrently
			return r.media.GetByURI(ctx, data.URI)
		}
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	input := media.UpdateInput{
		Title:       &data.Title,
		ReleaseDate: data.ReleaseDate,
		LastUpdated: &now,
	}
	if data.Description != "" {
		input.Description = &data.Description
	}
	if data.Length > 0 {
		input.Length = &data.Length
	}
	if data.ThumbnailURI != "" {
		thumbID, err := r.thumbnails.FromURI(ctx, data.ThumbnailURI)
		if err != nil {
			return nil, err
		}
		input.ThumbnailID = &thumbID
	}
	if err := r.media.Update(ctx, elem.ID, input); err != nil {
		return nil, err
	}

	r.addMediaURIs(ctx, elem.ID, append([]string{data.URI}, data.ExtraURIs...))

	if data.Author != nil {
		if err := r.linkAuthorCollection(ctx, sourceName, elem.ID, data.Author); err != nil {
			r.logger.Warn().Err(err).Str("uri", data.URI).Msg("Failed to maintain author collection")
		}
	}

	r.logger.Debug().
		Str("extractor", sourceName).
		Str("key", data.Key).
		Str("title", data.Title).
		Msg("Stored media element")
	return r.media.GetByID(ctx, elem.ID)
}

func (r *Registry) addMediaURIs(ctx context.Context, elementID int64, uris []string) {
	for _, uri := range uris {
		if uri == "" {
			continue
		}
		if err := r.media.AddURI(ctx, elementID, uri); err != nil {
			// a URI owned by another element is suspicious but not fatal
			r.logger.Warn().Err(err).Str("uri", uri).Int64("element", elementID).Msg("Could not map URI")
		}
	}
}

// linkAuthorCollection keeps a creator collection per channel or feed
// author and links extracted elements into it.
func (r *Registry) linkAuthorCollection(ctx context.Context, sourceName string, elementID int64, author *AuthorData) error {
	coll, err := r.collections.GetByExtractor(ctx, sourceName, author.Key)
	if errors.Is(err, collection.ErrNotFound) {
		coll, err = r.collections.GetByURI(ctx, author.URI)
		if errors.Is(err, collection.ErrNotFound) {
			coll, err = r.collections.Create(ctx, collection.CreateInput{
				URI:           author.URI,
				ExtractorName: sourceName,
				ExtractorKey:  author.Key,
				KeepUpdated:   false,
				WatchInOrder:  false,
			})
		}
	}
	if err != nil {
		return err
	}

	if coll.Title == "" || hasAuthorTitle(coll.Title) {
		title := fmt.Sprintf("[author] [%s] %s", sourceName, author.Name)
		if err := r.collections.Update(ctx, coll.ID, collection.UpdateInput{Title: &title}); err != nil {
			return err
		}
	}
	_, err = r.collections.AddEpisode(ctx, coll.ID, elementID, 0, 0)
	return err
}

func hasAuthorTitle(title string) bool {
	return len(title) >= 9 && title[:9] == "[author] "
}

// ExtractCollection resolves a URI to a collection. Known collections
// are refreshed, new ones fetched and stored with their episodes. The
// returned flag reports whether episodes may have changed, the caller
// rebuilds the lookup cache then.
func (r *Registry) ExtractCollection(ctx context.Context, uri string) (*collection.Collection, bool, error) {
	src := r.collectionSourceFor(uri)
	if src == nil {
		return nil, false, fmt.Errorf("%w for collection uri %q", ErrNoExtractor, uri)
	}

	existing, err := r.collections.GetByURI(ctx, uri)
	if err == nil {
		changed, err := r.refreshCollection(ctx, existing, src)
		if err != nil {
			return nil, false, err
		}
		coll, err := r.collections.GetByID(ctx, existing.ID)
		return coll, changed, err
	}
	if !errors.Is(err, collection.ErrNotFound) {
		return nil, false, err
	}

	data, err := src.FetchCollection(ctx, uri)
	if err != nil {
		return nil, false, err
	}
	coll, err := r.storeCollection(ctx, src.Name(), data)
	if err != nil {
		return nil, false, err
	}
	return coll, true, nil
}

// UpdateCollection re-fetches a collection. Without force the update is
// skipped while the cache timeout derived from the release cadence has
// not elapsed.
func (r *Registry) UpdateCollection(ctx context.Context, coll *collection.Collection, force bool) (bool, error) {
	if coll.WasExtracted() && !force {
		expired, err := r.cacheExpired(ctx, coll)
		if err != nil {
			return false, err
		}
		if !expired {
			return false, nil
		}
	}
	src := r.collectionSourceFor(coll.URI)
	if src == nil {
		return false, fmt.Errorf("%w for collection uri %q", ErrNoExtractor, coll.URI)
	}
	return r.refreshCollection(ctx, coll, src)
}

func (r *Registry) refreshCollection(ctx context.Context, coll *collection.Collection, src CollectionSource) (bool, error) {
	data, err := src.FetchCollection(ctx, coll.URI)
	if err != nil {
		return false, err
	}
	return r.applyCollection(ctx, coll, src.Name(), data)
}

func (r *Registry) storeCollection(ctx context.Context, sourceName string, data *CollectionData) (*collection.Collection, error) {
	coll, err := r.collections.GetByExtractor(ctx, sourceName, data.Key)
	if errors.Is(err, collection.ErrNotFound) {
		coll, err = r.collections.Create(ctx, collection.CreateInput{
			URI:           data.URI,
			ExtractorName: sourceName,
			ExtractorKey:  data.Key,
			KeepUpdated:   true,
		})
	}
	if err != nil {
		return nil, err
	}
	if _, err := r.applyCollection(ctx, coll, sourceName, data); err != nil {
		return nil, err
	}
	return r.collections.GetByID(ctx, coll.ID)
}

func (r *Registry) applyCollection(ctx context.Context, coll *collection.Collection, sourceName string, data *CollectionData) (bool, error) {
	now := time.Now()
	input := collection.UpdateInput{
		Title:       &data.Title,
		ReleaseDate: data.ReleaseDate,
		LastUpdated: &now,
	}
	if data.Description != "" {
		input.Description = &data.Description
	}
	if err := r.collections.Update(ctx, coll.ID, input); err != nil {
		return false, err
	}
	if data.WatchInOrder != nil {
		if err := r.collections.SetWatchInOrderAuto(ctx, coll.ID, *data.WatchInOrder); err != nil {
			return false, err
		}
	}
	for _, uri := range append([]string{data.URI}, data.ExtraURIs...) {
		if uri == "" {
			continue
		}
		if err := r.collections.AddURI(ctx, coll.ID, uri); err != nil {
			r.logger.Warn().Err(err).Str("uri", uri).Int64("collection", coll.ID).Msg("Could not map URI")
		}
	}

	changed := false
	for _, ep := range data.Episodes {
		epData := ep.Media
		elem, err := r.storeMedia(ctx, sourceName, &epData)
		if err != nil {
			r.logger.Warn().Err(err).
				Str("uri", epData.URI).
				Str("collection", data.Title).
				Msg("Failed to extract episode")
			continue
		}
		linkChanged, err := r.collections.AddEpisode(ctx, coll.ID, elem.ID, ep.Season, ep.Episode)
		if err != nil {
			return changed, err
		}
		changed = changed || linkChanged
	}

	r.logger.Info().
		Str("extractor", sourceName).
		Str("title", data.Title).
		Int("episodes", len(data.Episodes)).
		Bool("changed", changed).
		Msg("Stored collection")
	return changed, nil
}

// cacheExpired implements the adaptive refresh interval: collections
// that released recently refresh often, stale ones rarely. Tuned so a
// ten day old playlist refreshes about every twelve hours.
const cacheGrowthRate = 3.25508

func (r *Registry) cacheExpired(ctx context.Context, coll *collection.Collection) (bool, error) {
	if coll.LastUpdated == nil {
		return true, nil
	}
	last, err := r.collections.LastEpisode(ctx, coll.ID)
	if err != nil {
		return false, err
	}
	if last == nil || last.Element.ReleaseDate == nil {
		return true, nil
	}

	daysSince := int(time.Since(*last.Element.ReleaseDate).Hours() / 24)
	if daysSince < 1 {
		daysSince = 1
	}
	waitUnits := math.Log(float64(daysSince)) / math.Log(cacheGrowthRate)
	wait := time.Duration((waitUnits + 1) * 4 * float64(time.Hour))
	return time.Since(*coll.LastUpdated) > wait, nil
}

// RefreshError records one failed collection during a bulk refresh.
type RefreshError struct {
	CollectionID int64  `json:"collection_id"`
	Title        string `json:"title"`
	Error        string `json:"error"`
}

// RefreshAll updates every keep_updated collection and returns the ids
// of collections whose episodes changed.
func (r *Registry) RefreshAll(ctx context.Context) (changed []int64, errs []RefreshError, err error) {
	colls, err := r.collections.List(ctx, collection.ListOptions{
		OnlyKeepUpdated: true,
		IncludeIgnored:  true,
	})
	if err != nil {
		return nil, nil, err
	}
	for _, coll := range colls {
		collChanged, err := r.UpdateCollection(ctx, coll, false)
		if err != nil {
			r.logger.Warn().Err(err).Int64("collection", coll.ID).Str("title", coll.Title).Msg("Refresh failed")
			errs = append(errs, RefreshError{
				CollectionID: coll.ID,
				Title:        coll.Title,
				Error:        err.Error(),
			})
			continue
		}
		if collChanged {
			changed = append(changed, coll.ID)
		}
	}
	return changed, errs, nil
}
