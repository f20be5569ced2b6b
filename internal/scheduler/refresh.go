package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/entdecider/entdecider/internal/collection"
	"github.com/entdecider/entdecider/internal/config"
	"github.com/entdecider/entdecider/internal/extractor"
	"github.com/entdecider/entdecider/internal/thumbnail"
)

// CollectionRefreshTaskID identifies the periodic refresh task.
const CollectionRefreshTaskID = "collection-refresh"

// CollectionRefresh builds the periodic refresh task. It re-fetches
// every keep_updated collection and rebuilds the episode lookup cache
// for the collections whose episodes changed.
func CollectionRefresh(registry *extractor.Registry, collections *collection.Service, cfg config.RefreshConfig) TaskConfig {
	return TaskConfig{
		ID:         CollectionRefreshTaskID,
		Name:       "Collection refresh",
		Cron:       cfg.Cron,
		RunOnStart: cfg.RunOnStart,
		Func: func(ctx context.Context) error {
			changed, errs, err := registry.RefreshAll(ctx)
			if err != nil {
				return err
			}
			if len(changed) > 0 {
				if err := collections.RebuildLookupCache(ctx, changed...); err != nil {
					return err
				}
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d collections failed to refresh", len(errs))
			}
			return nil
		},
	}
}

// ThumbnailPruneTaskID identifies the thumbnail cleanup task.
const ThumbnailPruneTaskID = "thumbnail-prune"

// thumbnailRetention is how long unserved thumbnail blobs stay around.
const thumbnailRetention = 90 * 24 * time.Hour

// ThumbnailPrune builds the nightly cleanup task dropping orphaned
// thumbnails and long unserved blobs.
func ThumbnailPrune(thumbnails *thumbnail.Service) TaskConfig {
	return TaskConfig{
		ID:   ThumbnailPruneTaskID,
		Name: "Thumbnail prune",
		Cron: "30 4 * * *",
		Func: func(ctx context.Context) error {
			_, err := thumbnails.Prune(ctx, thumbnailRetention)
			return err
		},
	}
}
