package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when an element does not exist.
	ErrNotFound = errors.New("media element not found")
	// ErrURIConflict is returned when a URI already maps to a different element.
	ErrURIConflict = errors.New("uri already mapped to a different media element")
)

// Service provides media element management functionality.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewService creates a new media service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "media").Logger(),
	}
}

const elementColumns = `e.id, e.uri, e.title, COALESCE(e.description, ''), e.notes,
	e.release_date, e.extractor_name, e.extractor_key, e.last_updated,
	e.watched, e.ignored, e.progress, e.length, e.thumbnail_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanElement(row rowScanner) (*Element, error) {
	var e Element
	var releaseDate, lastUpdated sql.NullTime
	var thumbnailID sql.NullInt64

	err := row.Scan(
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
	return &e, nil
}

// Create inserts a new element and maps its primary URI.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Element, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var releaseDate sql.NullTime
	if input.ReleaseDate != nil {
		releaseDate = sql.NullTime{Time: *input.ReleaseDate, Valid: true}
	}
	var thumbnailID sql.NullInt64
	if input.ThumbnailID != nil {
		thumbnailID = sql.NullInt64{Int64: *input.ThumbnailID, Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO media_element (uri, title, description, notes, release_date,
			extractor_name, extractor_key, length, thumbnail_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		input.URI, input.Title, input.Description, input.Notes, releaseDate,
		input.ExtractorName, input.ExtractorKey, input.Length, thumbnailID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert media element: %w", err)
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

	s.logger.Debug().Int64("id", id).Str("uri", input.URI).Msg("Created media element")
	return s.GetByID(ctx, id)
}

// GetByID returns a single element by id.
func (s *Service) GetByID(ctx context.Context, id int64) (*Element, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+elementColumns+` FROM media_element e WHERE e.id = ?`, id)
	elem, err := scanElement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return elem, err
}

// GetByURI resolves an element through the URI mapping table, which
// includes the primary URI of every element.
func (s *Service) GetByURI(ctx context.Context, uri string) (*Element, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+elementColumns+`
		FROM media_element e
			INNER JOIN media_uri_map um ON um.element_id = e.id
		WHERE um.uri = ?`, uri)
	elem, err := scanElement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return elem, err
}

// GetByExtractor returns the element a metadata extractor produced earlier.
func (s *Service) GetByExtractor(ctx context.Context, name, key string) (*Element, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+elementColumns+`
		FROM media_element e
		WHERE e.extractor_name = ? AND e.extractor_key = ?`, name, key)
	elem, err := scanElement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return elem, err
}

// AddURI attaches an additional URI to an element.
func (s *Service) AddURI(ctx context.Context, elementID int64, uri string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := addURIMapping(ctx, tx, uri, elementID); err != nil {
		return err
	}
	return tx.Commit()
}

// URIs returns all URIs mapped to an element, primary URI first.
func (s *Service) URIs(ctx context.Context, elementID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.uri
		FROM media_uri_map m
			INNER JOIN media_element e ON e.id = m.element_id
		WHERE m.element_id = ?
		ORDER BY m.uri != e.uri, m.uri`, elementID)
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

func addURIMapping(ctx context.Context, tx *sql.Tx, uri string, elementID int64) error {
	var existing int64
	err := tx.QueryRowContext(ctx,
		`SELECT element_id FROM media_uri_map WHERE uri = ?`, uri).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO media_uri_map (uri, element_id) VALUES (?, ?)`, uri, elementID)
		return err
	case err != nil:
		return err
	case existing != elementID:
		return fmt.Errorf("%w: %s", ErrURIConflict, uri)
	default:
		return nil
	}
}

// Update applies the non-nil fields of input to an element.
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
	if input.Progress != nil {
		add("progress = ?", *input.Progress)
	}
	if input.Length != nil {
		add("length = ?", *input.Length)
	}
	if input.Watched != nil {
		add("watched = ?", *input.Watched)
	}
	if input.Ignored != nil {
		add("ignored = ?", *input.Ignored)
	}
	if input.ThumbnailID != nil {
		add("thumbnail_id = ?", *input.ThumbnailID)
	}
	if input.LastUpdated != nil {
		add("last_updated = ?", *input.LastUpdated)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE media_element SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
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

// SetWatched marks the given elements watched and clears their ignored mark.
func (s *Service) SetWatched(ctx context.Context, ids []int64) error {
	return s.setMarks(ctx, ids, true, false)
}

// SetIgnored marks the given elements ignored and clears their watched mark.
func (s *Service) SetIgnored(ctx context.Context, ids []int64) error {
	return s.setMarks(ctx, ids, false, true)
}

func (s *Service) setMarks(ctx context.Context, ids []int64, watched, ignored bool) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE media_element SET watched = ?, ignored = ? WHERE id IN (` +
		placeholders(len(ids)) + `)`
	args := append([]any{watched, ignored}, int64Args(ids)...)
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// AddBlocking records that blocker must be watched before blocked.
func (s *Service) AddBlocking(ctx context.Context, blockerID, blockedID int64) error {
	if err := s.ensureExists(ctx, blockerID, blockedID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO media_blocking (blocker_id, blocked_id) VALUES (?, ?)`,
		blockerID, blockedID)
	return err
}

// RemoveBlocking removes a blocking dependency.
func (s *Service) RemoveBlocking(ctx context.Context, blockerID, blockedID int64) error {
	if err := s.ensureExists(ctx, blockerID, blockedID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM media_blocking WHERE blocker_id = ? AND blocked_id = ?`,
		blockerID, blockedID)
	return err
}

func (s *Service) ensureExists(ctx context.Context, ids ...int64) error {
	for _, id := range ids {
		var found int64
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM media_element WHERE id = ?`, id).Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// SetDependent chains the given elements into blocking dependencies in
// release date order, so each element blocks the next released one.
func (s *Service) SetDependent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM media_element WHERE id IN (`+placeholders(len(ids))+`)
		 ORDER BY release_date`, int64Args(ids)...)
	if err != nil {
		return err
	}
	defer rows.Close()

	var ordered []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ordered = append(ordered, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := 1; i < len(ordered); i++ {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO media_blocking (blocker_id, blocked_id) VALUES (?, ?)`,
			ordered[i-1], ordered[i])
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// BlockedBy returns the elements that block the given element.
func (s *Service) BlockedBy(ctx context.Context, id int64) ([]*Element, error) {
	return s.queryElements(ctx, `
		SELECT `+elementColumns+`
		FROM media_element e
			INNER JOIN media_blocking b ON b.blocker_id = e.id
		WHERE b.blocked_id = ?
		ORDER BY e.release_date`, id)
}

// Blocking returns the elements the given element blocks.
func (s *Service) Blocking(ctx context.Context, id int64) ([]*Element, error) {
	return s.queryElements(ctx, `
		SELECT `+elementColumns+`
		FROM media_element e
			INNER JOIN media_blocking b ON b.blocked_id = e.id
		WHERE b.blocker_id = ?
		ORDER BY e.release_date`, id)
}

// Links returns the collection memberships of an element.
func (s *Service) Links(ctx context.Context, id int64) ([]*CollectionLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cl.collection_id, c.title, cl.element_id, cl.season, cl.episode
		FROM collection_link cl
			INNER JOIN media_collection c ON c.id = cl.collection_id
		WHERE cl.element_id = ?
		ORDER BY c.title`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*CollectionLink
	for rows.Next() {
		var l CollectionLink
		if err := rows.Scan(&l.CollectionID, &l.CollectionTitle, &l.ElementID, &l.Season, &l.Episode); err != nil {
			return nil, err
		}
		links = append(links, &l)
	}
	return links, rows.Err()
}

// Delete removes an element together with its URI mappings, collection
// links and blocking edges.
func (s *Service) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM media_element WHERE id = ?`, id)
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

// Merge folds src into dst: marks, progress, URI mappings and collection
// links move over, then src is deleted.
func (s *Service) Merge(ctx context.Context, srcID, dstID int64) error {
	src, err := s.GetByID(ctx, srcID)
	if err != nil {
		return err
	}
	dst, err := s.GetByID(ctx, dstID)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	watched := dst.Watched || src.Watched
	ignored := dst.Ignored || src.Ignored
	progress := dst.Progress
	if src.Progress >= 0 && dst.Progress <= 0 {
		progress = src.Progress
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE media_element SET watched = ?, ignored = ?, progress = ? WHERE id = ?`,
		watched, ignored, progress, dstID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE media_uri_map SET element_id = ? WHERE element_id = ?`,
		dstID, srcID); err != nil {
		return err
	}

	// Move collection links unless dst is already linked there.
	if _, err := tx.ExecContext(ctx, `
		UPDATE collection_link SET element_id = ?
		WHERE element_id = ?
			AND collection_id NOT IN (
				SELECT collection_id FROM collection_link WHERE element_id = ?
			)`, dstID, srcID, dstID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM media_element WHERE id = ?`, srcID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Info().Int64("src", srcID).Int64("dst", dstID).Msg("Merged media elements")
	return nil
}

func (s *Service) queryElements(ctx context.Context, query string, args ...any) ([]*Element, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var elements []*Element
	for rows.Next() {
		elem, err := scanElement(rows)
		if err != nil {
			return nil, err
		}
		elements = append(elements, elem)
	}
	return elements, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// ParseTimedelta parses progressive "[[H:]MM:]SS" input into seconds.
func ParseTimedelta(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty duration")
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("could not parse %q as duration", value)
	}
	total := 0
	for _, part := range parts {
		n := 0
		if part == "" {
			return 0, fmt.Errorf("could not parse %q as duration", value)
		}
		for _, r := range part {
			if r < '0' || r > '9' {
				return 0, fmt.Errorf("could not parse %q as duration", value)
			}
			n = n*10 + int(r-'0')
		}
		total = total*60 + n
	}
	return total, nil
}
