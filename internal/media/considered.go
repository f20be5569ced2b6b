package media

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// sqlIsConsidered builds the eligibility predicate for a media element
// column reference. An element is held back while an unfinished
// predecessor exists in the order cache or an unfinished blocker exists
// among its direct dependencies. NOT EXISTS beats an outer join here.
func sqlIsConsidered(elemID string) string {
	return `NOT EXISTS (
		SELECT c.element2
		FROM element_lookup_cache c
			INNER JOIN media_element m2 ON c.element1 = m2.id
		WHERE c.element2 = ` + elemID + ` AND NOT (m2.watched OR m2.ignored)
	) AND NOT EXISTS (
		SELECT 1
		FROM media_blocking b
			INNER JOIN media_element m ON b.blocker_id = m.id
		WHERE b.blocked_id = ` + elemID + ` AND NOT (m.watched OR m.ignored)
	)`
}

// IsConsidered reports whether a single element is currently eligible to
// be watched.
func (s *Service) IsConsidered(ctx context.Context, id int64) (bool, error) {
	var found int64
	err := s.db.QueryRowContext(ctx, `
		SELECT elem.id
		FROM media_element elem
		WHERE elem.id = ?
			AND NOT (elem.watched OR elem.ignored)
			AND elem.release_date IS NOT NULL
			AND elem.release_date <= ?
			AND (`+sqlIsConsidered("elem.id")+`)`,
		id, time.Now()).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AreConsidered resolves the eligibility of many elements in one query.
// Listing pages use this instead of per-element checks.
func (s *Service) AreConsidered(ctx context.Context, ids []int64) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT elem.id
		FROM media_element elem
		WHERE NOT (elem.watched OR elem.ignored)
			AND elem.release_date IS NOT NULL
			AND elem.release_date <= ?
			AND (`+sqlIsConsidered("elem.id")+`)`,
		time.Now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	considered := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		considered[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make(map[int64]bool, len(ids))
	for _, id := range ids {
		result[id] = considered[id]
	}
	return result, nil
}

// List returns elements matching opts. With OnlyConsidered set, the full
// eligibility predicate runs inside the query so no per-row checks are
// needed afterwards.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]*Element, error) {
	query := `SELECT ` + elementColumns + ` FROM media_element e WHERE 1=1`
	var args []any

	if opts.OnlyConsidered || opts.OnlyUnmarked {
		query += ` AND NOT (e.watched OR e.ignored)`
	}
	if opts.OnlyConsidered {
		query += ` AND e.release_date IS NOT NULL AND e.release_date <= ?
			AND (` + sqlIsConsidered("e.id") + `)`
		args = append(args, time.Now())
	}
	if opts.MinLength > 0 {
		query += ` AND ? <= e.length`
		args = append(args, opts.MinLength)
	}
	if opts.MaxLength > 0 {
		query += ` AND e.length <= ?`
		args = append(args, opts.MaxLength)
	}
	if opts.MinLeftLength > 0 {
		query += ` AND ? <= (e.length - e.progress)`
		args = append(args, opts.MinLeftLength)
	}
	if opts.MaxLeftLength > 0 {
		query += ` AND (e.length - e.progress) <= ?`
		args = append(args, opts.MaxLeftLength)
	}
	if opts.OnlyUnsorted {
		query += ` AND NOT EXISTS (SELECT 1 FROM collection_link cl WHERE cl.element_id = e.id)`
	}
	if len(opts.IDs) > 0 {
		query += ` AND e.id IN (` + placeholders(len(opts.IDs)) + `)`
		args = append(args, int64Args(opts.IDs)...)
	}

	switch opts.Order {
	case "release_date":
		query += ` ORDER BY e.release_date`
	case "release_date_desc":
		query += ` ORDER BY e.release_date DESC`
	case "shortest":
		query += ` ORDER BY (e.length - e.progress)`
	}

	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	return s.queryElements(ctx, query, args...)
}

// ListStarted returns elements with partial progress, most recently
// released first.
func (s *Service) ListStarted(ctx context.Context, limit int) ([]*Element, error) {
	query := `
		SELECT ` + elementColumns + `
		FROM media_element e
		WHERE NOT (e.watched OR e.ignored) AND e.progress != 0
		ORDER BY e.release_date DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryElements(ctx, query, args...)
}

// Counts summarizes the element table for the dashboard.
type Counts struct {
	Total    int64 `json:"total"`
	Watched  int64 `json:"watched"`
	Ignored  int64 `json:"ignored"`
	Unmarked int64 `json:"unmarked"`
}

// DurationStats sums playback seconds per watch state. Watched elements
// count their full length, ignored and unmarked ones the part not yet
// played.
type DurationStats struct {
	KnownSeconds   int64 `json:"known_seconds"`
	WatchedSeconds int64 `json:"watched_seconds"`
	IgnoredSeconds int64 `json:"ignored_seconds"`
	ToWatchSeconds int64 `json:"to_watch_seconds"`
}

// Durations aggregates playback seconds for the stats page.
func (s *Service) Durations(ctx context.Context) (*DurationStats, error) {
	var d DurationStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(length), 0),
			COALESCE(SUM(CASE WHEN watched THEN length ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN ignored AND NOT watched THEN length - progress ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN NOT (watched OR ignored) THEN length - progress ELSE 0 END), 0)
		FROM media_element`).Scan(
		&d.KnownSeconds, &d.WatchedSeconds, &d.IgnoredSeconds, &d.ToWatchSeconds)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Count returns element totals per watch state.
func (s *Service) Count(ctx context.Context) (*Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(watched), 0),
			COALESCE(SUM(ignored AND NOT watched), 0),
			COALESCE(SUM(NOT (watched OR ignored)), 0)
		FROM media_element`).Scan(&c.Total, &c.Watched, &c.Ignored, &c.Unmarked)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
