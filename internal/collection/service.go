package collection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/entdecider/entdecider/internal/media"
)

var (
	// ErrNotFound is returned when a collection does not exist.
	ErrNotFound = errors.New("media collection not found")
	// ErrURIConflict is returned when a URI already maps to a different collection.
	ErrURIConflict = errors.New("uri already mapped to a different collection")
)

// Service provides collection management functionality.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewService creates a new collection service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "collection").Logger(),
	}
}

const collectionColumns = `c.id, c.uri, c.title, COALESCE(c.description, ''), c.notes,
	c.release_date, c.creator_id, c.extractor_name, c.extractor_key, c.last_updated,
	c.keep_updated, c.watch_in_order, c.watch_in_order_auto, c.sorting_method,
	c.pinned, c.ignored`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*Collection, error) {
	var c Collection
	var releaseDate, lastUpdated sql.NullTime
	var creatorID sql.NullInt64

	err := row.Scan(
		&c.ID, &c.URI, &c.Title, &c.Description, &c.Notes,
		&releaseDate, &creatorID, &c.ExtractorName, &c.ExtractorKey, &lastUpdated,
		&c.KeepUpdated, &c.WatchInOrder, &c.WatchInOrderAuto, &c.SortingMethod,
		&c.Pinned, &c.Ignored,
	)
	if err != nil {
		return nil, err
	}
	if releaseDate.Valid {
		c.ReleaseDate = &releaseDate.Time
	}
	if lastUpdated.Valid {
		c.LastUpdated = &lastUpdated.Time
	}
	if creatorID.Valid {
		c.CreatorID = &creatorID.Int64
	}
	return &c, nil
}

// Create inserts a new collection and maps its primary URI.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Collection, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var releaseDate sql.NullTime
	if input.ReleaseDate != nil {
		releaseDate = sql.NullTime{Time: *input.ReleaseDate, Valid: true}
	}
	var creatorID sql.NullInt64
	if input.CreatorID != nil {
		creatorID = sql.NullInt64{Int64: *input.CreatorID, Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO media_collection (uri, title, description, notes, release_date,
			creator_id, extractor_name, extractor_key, keep_updated, watch_in_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		input.URI, input.Title, input.Description, input.Notes, releaseDate,
		creatorID, input.ExtractorName, input.ExtractorKey,
		input.KeepUpdated, input.WatchInOrder,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert collection: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	if err := addURIMapping(ctx, tx, input.URI, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.Debug().Int64("id", id).Str("uri", input.URI).Msg("Created collection")
	return s.GetByID(ctx, id)
}

// GetByID returns a single collection by id.
func (s *Service) GetByID(ctx context.Context, id int64) (*Collection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+collectionColumns+` FROM media_collection c WHERE c.id = ?`, id)
	coll, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return coll, err
}

// GetByURI resolves a collection through the URI mapping table.
func (s *Service) GetByURI(ctx context.Context, uri string) (*Collection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+collectionColumns+`
		FROM media_collection c
			INNER JOIN collection_uri_map um ON um.collection_id = c.id
		WHERE um.uri = ?`, uri)
	coll, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return coll, err
}

// GetByExtractor returns the collection a metadata extractor produced earlier.
func (s *Service) GetByExtractor(ctx context.Context, name, key string) (*Collection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+collectionColumns+`
		FROM media_collection c
		WHERE c.extractor_name = ? AND c.extractor_key = ?`, name, key)
	coll, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return coll, err
}

// AddURI attaches an additional URI to a collection.
func (s *Service) AddURI(ctx context.Context, collectionID int64, uri string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := addURIMapping(ctx, tx, uri, collectionID); err != nil {
		return err
	}
	return tx.Commit()
}

// URIs returns all URIs mapped to a collection in lexical order.
func (s *Service) URIs(ctx context.Context, collectionID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uri FROM collection_uri_map WHERE collection_id = ? ORDER BY uri`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, err
		}
		uris = append(uris, uri)
	}
	return uris, rows.Err()
}

func addURIMapping(ctx context.Context, tx *sql.Tx, uri string, collectionID int64) error {
	var existing int64
	err := tx.QueryRowContext(ctx,
		`SELECT collection_id FROM collection_uri_map WHERE uri = ?`, uri).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO collection_uri_map (uri, collection_id) VALUES (?, ?)`, uri, collectionID)
		return err
	case err != nil:
		return err
	case existing != collectionID:
		return fmt.Errorf("%w: %s", ErrURIConflict, uri)
	default:
		return nil
	}
}

// List returns collections matching opts, pinned first, then by title.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]*Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM media_collection c WHERE 1=1`

	if opts.OnlyRoots {
		query += ` AND (c.creator_id IS NULL OR c.creator_id = c.id)`
	}
	if opts.OnlyKeepUpdated {
		query += ` AND c.keep_updated`
	}
	if opts.OnlyPinned {
		query += ` AND c.pinned`
	}
	if !opts.IncludeIgnored {
		query += ` AND NOT c.ignored`
	}
	query += ` ORDER BY c.pinned DESC, c.title, c.id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var collections []*Collection
	for rows.Next() {
		coll, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		collections = append(collections, coll)
	}
	return collections, rows.Err()
}

// CreatedCollections returns the collections attached to a creator,
// excluding the creator itself, ordered by title.
func (s *Service) CreatedCollections(ctx context.Context, creatorID int64) ([]*Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+collectionColumns+`
		FROM media_collection c
		WHERE c.creator_id = ? AND c.id != ?
		ORDER BY c.title, c.id`, creatorID, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var collections []*Collection
	for rows.Next() {
		coll, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		collections = append(collections, coll)
	}
	return collections, rows.Err()
}

// Update applies the non-nil fields of input to a collection. Changing
// watch_in_order through here disables its automatic detection and the
// caller is expected to rebuild the order cache afterwards.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) error {
	sets := make([]string, 0, 8)
	args := make([]any, 0, 8)

	add := func(clause string, value any) {
		sets = append(sets, clause)
		args = append(args, value)
	}

	if input.Title != nil {
		add("title = ?", *input.Title)
	}
	if input.Description != nil {
		add("description = ?", *input.Description)
	}
	if input.Notes != nil {
		add("notes = ?", *input.Notes)
	}
	if input.ReleaseDate != nil {
		add("release_date = ?", *input.ReleaseDate)
	}
	if input.CreatorID != nil {
		add("creator_id = ?", *input.CreatorID)
	}
	if input.KeepUpdated != nil {
		add("keep_updated = ?", *input.KeepUpdated)
	}
	if input.WatchInOrder != nil {
		add("watch_in_order = ?", *input.WatchInOrder)
		add("watch_in_order_auto = ?", false)
	}
	if input.Pinned != nil {
		add("pinned = ?", *input.Pinned)
	}
	if input.Ignored != nil {
		add("ignored = ?", *input.Ignored)
	}
	if input.LastUpdated != nil {
		add("last_updated = ?", *input.LastUpdated)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE media_collection SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetWatchInOrderAuto adjusts watch_in_order from extractor hints, but
// only while the flag was never set manually.
func (s *Service) SetWatchInOrderAuto(ctx context.Context, id int64, watchInOrder bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE media_collection SET watch_in_order = ?
		WHERE id = ? AND watch_in_order_auto`, watchInOrder, id)
	return err
}

// AddEpisode links an element into the collection at the given position.
// It reports whether anything changed. Elements joining an ignored
// collection are marked ignored themselves.
func (s *Service) AddEpisode(ctx context.Context, collectionID, elementID int64, season, episode int) (bool, error) {
	coll, err := s.GetByID(ctx, collectionID)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	change := false
	var curSeason, curEpisode int
	err = tx.QueryRowContext(ctx, `
		SELECT season, episode FROM collection_link
		WHERE collection_id = ? AND element_id = ?`, collectionID, elementID).
		Scan(&curSeason, &curEpisode)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		change = true
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO collection_link (collection_id, element_id, season, episode)
			VALUES (?, ?, ?, ?)`, collectionID, elementID, season, episode); err != nil {
			return false, err
		}
	case err != nil:
		return false, err
	case curSeason != season || curEpisode != episode:
		change = true
		if _, err := tx.ExecContext(ctx, `
			UPDATE collection_link SET season = ?, episode = ?
			WHERE collection_id = ? AND element_id = ?`,
			season, episode, collectionID, elementID); err != nil {
			return false, err
		}
	}

	if coll.Ignored {
		res, err := tx.ExecContext(ctx, `
			UPDATE media_element SET ignored = 1
			WHERE id = ? AND NOT (watched OR ignored)`, elementID)
		if err != nil {
			return false, err
		}
		if affected, err := res.RowsAffected(); err != nil {
			return false, err
		} else if affected > 0 {
			change = true
		}
	}

	return change, tx.Commit()
}

const linkOrder = `ORDER BY cl.season, cl.episode, e.release_date, e.id`

// Episodes returns all links of a collection in watch order.
func (s *Service) Episodes(ctx context.Context, id int64) ([]*Link, error) {
	return s.queryLinks(ctx, `
		SELECT cl.season, cl.episode, `+elementColumns+`
		FROM collection_link cl
			INNER JOIN media_element e ON e.id = cl.element_id
		WHERE cl.collection_id = ?
		`+linkOrder, id)
}

// NextEpisode returns the first link whose element is neither watched
// nor ignored, or nil when the collection is completed.
func (s *Service) NextEpisode(ctx context.Context, id int64) (*Link, error) {
	links, err := s.queryLinks(ctx, `
		SELECT cl.season, cl.episode, `+elementColumns+`
		FROM collection_link cl
			INNER JOIN media_element e ON e.id = cl.element_id
		WHERE cl.collection_id = ? AND NOT (e.watched OR e.ignored)
		`+linkOrder+` LIMIT 1`, id)
	if err != nil || len(links) == 0 {
		return nil, err
	}
	return links[0], nil
}

// FirstEpisode returns the link at the lowest watch order position.
func (s *Service) FirstEpisode(ctx context.Context, id int64) (*Link, error) {
	links, err := s.queryLinks(ctx, `
		SELECT cl.season, cl.episode, `+elementColumns+`
		FROM collection_link cl
			INNER JOIN media_element e ON e.id = cl.element_id
		WHERE cl.collection_id = ?
		`+linkOrder+` LIMIT 1`, id)
	if err != nil || len(links) == 0 {
		return nil, err
	}
	return links[0], nil
}

// LastEpisode returns the link at the highest watch order position.
func (s *Service) LastEpisode(ctx context.Context, id int64) (*Link, error) {
	links, err := s.queryLinks(ctx, `
		SELECT cl.season, cl.episode, `+elementColumns+`
		FROM collection_link cl
			INNER JOIN media_element e ON e.id = cl.element_id
		WHERE cl.collection_id = ?
		ORDER BY cl.season DESC, cl.episode DESC, e.release_date DESC, e.id DESC
		LIMIT 1`, id)
	if err != nil || len(links) == 0 {
		return nil, err
	}
	return links[0], nil
}

// timestampLayouts mirror the formats the sqlite driver writes time
// values with. Aggregate columns like MAX(release_date) lose their
// TIMESTAMP decltype, so the driver hands the raw string through and
// parsing happens here.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func parseTimestamp(raw string) (time.Time, error) {
	// drop the monotonic clock suffix of Go's time formatting
	if i := strings.Index(raw, " m="); i >= 0 {
		raw = raw[:i]
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", raw)
}

func scanAggregateTime(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	t, err := parseTimestamp(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// LastReleaseDateToWatch returns the newest release date among elements
// still to watch.
func (s *Service) LastReleaseDateToWatch(ctx context.Context, id int64) (*time.Time, error) {
	var last sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(e.release_date)
		FROM collection_link cl
			INNER JOIN media_element e ON e.id = cl.element_id
		WHERE cl.collection_id = ? AND NOT (e.watched OR e.ignored)`, id).Scan(&last)
	if err != nil {
		return nil, err
	}
	return scanAggregateTime(last)
}

// Stats aggregates the watch state buckets of a collection.
func (s *Service) Stats(ctx context.Context, id int64) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(NOT (e.watched OR e.ignored)), 0),
			COALESCE(SUM(e.ignored AND NOT e.watched), 0),
			COALESCE(SUM(e.watched), 0),
			COALESCE(SUM(CASE WHEN NOT (e.watched OR e.ignored) THEN e.length - e.progress ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN e.ignored AND NOT e.watched THEN e.length - e.progress ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN e.watched THEN e.length ELSE e.progress END), 0)
		FROM collection_link cl
			INNER JOIN media_element e ON e.id = cl.element_id
		WHERE cl.collection_id = ?`, id).Scan(
		&st.ToWatchCount, &st.IgnoredCount, &st.WatchedCount,
		&st.ToWatchSeconds, &st.IgnoredSeconds, &st.WatchedSeconds,
	)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// AverageReleasePerWeek estimates how many playback seconds the
// collection grows per week, based on the span between its first and
// last release.
func (s *Service) AverageReleasePerWeek(ctx context.Context, id int64) (float64, error) {
	var count int
	var fullLength float64
	var firstRaw, lastRaw sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(e.length), 0),
			MIN(e.release_date), MAX(e.release_date)
		FROM collection_link cl
			INNER JOIN media_element e ON e.id = cl.element_id
		WHERE cl.collection_id = ?`, id).Scan(&count, &fullLength, &firstRaw, &lastRaw)
	if err != nil {
		return 0, err
	}
	first, err := scanAggregateTime(firstRaw)
	if err != nil {
		return 0, err
	}
	last, err := scanAggregateTime(lastRaw)
	if err != nil {
		return 0, err
	}
	if count < 2 || first == nil || last == nil {
		return fullLength, nil
	}
	span := last.Sub(*first).Seconds() * float64(count) / float64(count-1)
	weeks := span / (7 * 24 * 60 * 60)
	if weeks == 0 {
		weeks = 1
	}
	return fullLength / weeks, nil
}

// LastRefreshed returns the newest last_updated over all collections,
// or nil when nothing was ever refreshed.
func (s *Service) LastRefreshed(ctx context.Context) (*time.Time, error) {
	var last sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(last_updated) FROM media_collection`).Scan(&last)
	if err != nil {
		return nil, err
	}
	return scanAggregateTime(last)
}

// MarkUnmarkedAs marks every unmarked element of the collection as
// watched or ignored.
func (s *Service) MarkUnmarkedAs(ctx context.Context, id int64, state media.WatchState) error {
	var column string
	switch state {
	case media.WatchStateWatched:
		column = "watched"
	case media.WatchStateIgnored:
		column = "ignored"
	default:
		return fmt.Errorf("cannot mark unmarked elements as %q", state)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE media_element SET `+column+` = 1
		WHERE NOT (watched OR ignored)
			AND id IN (SELECT element_id FROM collection_link WHERE collection_id = ?)`, id)
	return err
}

// ResetMarks clears watched and ignored marks of all linked elements.
func (s *Service) ResetMarks(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE media_element SET watched = 0, ignored = 0
		WHERE (watched OR ignored)
			AND id IN (SELECT element_id FROM collection_link WHERE collection_id = ?)`, id)
	return err
}

// ResetIgnoredMarks clears the marks of elements currently ignored.
func (s *Service) ResetIgnoredMarks(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE media_element SET watched = 0, ignored = 0
		WHERE ignored
			AND id IN (SELECT element_id FROM collection_link WHERE collection_id = ?)`, id)
	return err
}

// Delete removes a collection together with its links, URI mappings and
// order cache rows. The linked elements stay.
func (s *Service) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM element_lookup_cache WHERE collection_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM media_collection WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// Membership is one element-to-collection link with the collection
// details scoring needs.
type Membership struct {
	ElementID       int64
	CollectionID    int64
	CollectionTitle string
	Pinned          bool
	WatchInOrder    bool
}

// AllMemberships returns every collection link in one query.
func (s *Service) AllMemberships(ctx context.Context) ([]*Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cl.element_id, c.id, c.title, c.pinned, c.watch_in_order
		FROM collection_link cl
			INNER JOIN media_collection c ON c.id = cl.collection_id
		ORDER BY cl.element_id, c.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []*Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.ElementID, &m.CollectionID, &m.CollectionTitle, &m.Pinned, &m.WatchInOrder); err != nil {
			return nil, err
		}
		memberships = append(memberships, &m)
	}
	return memberships, rows.Err()
}

func (s *Service) queryLinks(ctx context.Context, query string, args ...any) ([]*Link, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*Link
	for rows.Next() {
		var l Link
		var e media.Element
		var releaseDate, lastUpdated sql.NullTime
		var thumbnailID sql.NullInt64
		err := rows.Scan(
			&l.Season, &l.Episode,
			&e.ID, &e.URI, &e.Title, &e.Description, &e.Notes,
			&releaseDate, &e.ExtractorName, &e.ExtractorKey, &lastUpdated,
			&e.Watched, &e.Ignored, &e.Progress, &e.Length, &thumbnailID,
		)
		if err != nil {
			return nil, err
		}
		if releaseDate.Valid {
			e.ReleaseDate = &releaseDate.Time
		}
		if lastUpdated.Valid {
			e.LastUpdated = &lastUpdated.Time
		}
		if thumbnailID.Valid {
			e.ThumbnailID = &thumbnailID.Int64
		}
		l.Element = &e
		links = append(links, &l)
	}
	return links, rows.Err()
}

const elementColumns = `e.id, e.uri, e.title, COALESCE(e.description, ''), e.notes,
	e.release_date, e.extractor_name, e.extractor_key, e.last_updated,
	e.watched, e.ignored, e.progress, e.length, e.thumbnail_id`
