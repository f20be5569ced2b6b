package tag

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a tag does not exist.
var ErrNotFound = errors.New("tag not found")

// Service provides tag management functionality.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewService creates a new tag service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "tag").Logger(),
	}
}

func scanTag(row interface{ Scan(...any) error }) (*Tag, error) {
	var t Tag
	var notes sql.NullString
	if err := row.Scan(&t.ID, &t.Title, &notes, &t.UseForPreferences); err != nil {
		return nil, err
	}
	t.Notes = notes.String
	return &t, nil
}

// Create inserts a new tag.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Tag, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tag (title, notes, use_for_preferences) VALUES (?, ?, ?)`,
		input.Title, input.Notes, input.UseForPreferences)
	if err != nil {
		return nil, fmt.Errorf("failed to insert tag: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// GenTemporary creates a new unique tag for one algorithm run. Some
// scoring algorithms need such tags to treat ad hoc groupings like
// regular tags.
func (s *Service) GenTemporary(ctx context.Context, hint string) (*Tag, error) {
	return s.Create(ctx, CreateInput{
		Title:             "[A] " + hint,
		Notes:             TemporaryIdentifier,
		UseForPreferences: true,
	})
}

// ScrubTemporary deletes all tags left behind by algorithm runs.
func (s *Service) ScrubTemporary(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tag WHERE notes = ?`, TemporaryIdentifier)
	if err != nil {
		return 0, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info().Int64("count", deleted).Msg("Scrubbed temporary tags")
	}
	return deleted, nil
}

// GetByID returns a single tag by id.
func (s *Service) GetByID(ctx context.Context, id int64) (*Tag, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, notes, use_for_preferences FROM tag WHERE id = ?`, id)
	t, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// Update applies the non-nil fields of input to a tag.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) error {
	query := `UPDATE tag SET id = id`
	var args []any

	if input.Title != nil {
		query += `, title = ?`
		args = append(args, *input.Title)
	}
	if input.Notes != nil {
		query += `, notes = ?`
		args = append(args, *input.Notes)
	}
	if input.UseForPreferences != nil {
		query += `, use_for_preferences = ?`
		args = append(args, *input.UseForPreferences)
	}

	query += ` WHERE id = ?`
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update tag: %w", err)
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

// List returns all tags ordered by title.
func (s *Service) List(ctx context.Context) ([]*Tag, error) {
	return s.queryTags(ctx,
		`SELECT id, title, notes, use_for_preferences FROM tag ORDER BY title, id`)
}

// Delete removes a tag and its relations.
func (s *Service) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tag WHERE id = ?`, id)
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

// AddSuperTag makes super a super tag of sub, so sub implies super.
func (s *Service) AddSuperTag(ctx context.Context, subID, superID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO tag_hierarchy (super_id, sub_id) VALUES (?, ?)`,
		superID, subID)
	return err
}

// RemoveSuperTag removes a super tag relation.
func (s *Service) RemoveSuperTag(ctx context.Context, subID, superID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM tag_hierarchy WHERE super_id = ? AND sub_id = ?`, superID, subID)
	return err
}

// SuperTags returns the direct super tags of a tag.
func (s *Service) SuperTags(ctx context.Context, id int64) ([]*Tag, error) {
	return s.queryTags(ctx, `
		SELECT t.id, t.title, t.notes, t.use_for_preferences
		FROM tag t
			INNER JOIN tag_hierarchy h ON h.super_id = t.id
		WHERE h.sub_id = ?
		ORDER BY t.title`, id)
}

// SubTags returns the direct sub tags of a tag.
func (s *Service) SubTags(ctx context.Context, id int64) ([]*Tag, error) {
	return s.queryTags(ctx, `
		SELECT t.id, t.title, t.notes, t.use_for_preferences
		FROM tag t
			INNER JOIN tag_hierarchy h ON h.sub_id = t.id
		WHERE h.super_id = ?
		ORDER BY t.title`, id)
}

// Closure returns the tag itself plus all transitive super tags.
func (s *Service) Closure(ctx context.Context, id int64) ([]*Tag, error) {
	return s.queryTags(ctx, `
		WITH RECURSIVE closure (tag_id) AS (
				SELECT ?
			UNION
				SELECT h.super_id
				FROM closure
				JOIN tag_hierarchy h ON h.sub_id = closure.tag_id
		)
		SELECT t.id, t.title, t.notes, t.use_for_preferences
		FROM closure
		JOIN tag t ON t.id = closure.tag_id
		ORDER BY t.id`, id)
}

// AssignToElement tags a media element.
func (s *Service) AssignToElement(ctx context.Context, elementID, tagID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO media_tag (element_id, tag_id) VALUES (?, ?)`,
		elementID, tagID)
	return err
}

// UnassignFromElement removes a tag from a media element.
func (s *Service) UnassignFromElement(ctx context.Context, elementID, tagID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM media_tag WHERE element_id = ? AND tag_id = ?`, elementID, tagID)
	return err
}

// AssignToCollection tags a collection. Linked elements inherit the tag.
func (s *Service) AssignToCollection(ctx context.Context, collectionID, tagID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO collection_tag (collection_id, tag_id) VALUES (?, ?)`,
		collectionID, tagID)
	return err
}

// UnassignFromCollection removes a tag from a collection.
func (s *Service) UnassignFromCollection(ctx context.Context, collectionID, tagID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM collection_tag WHERE collection_id = ? AND tag_id = ?`, collectionID, tagID)
	return err
}

// ElementTags returns the direct tags of an element, assigned ones plus
// those inherited from its collections.
func (s *Service) ElementTags(ctx context.Context, elementID int64) ([]*Tag, error) {
	return s.queryTags(ctx, `
		SELECT DISTINCT t.id, t.title, t.notes, t.use_for_preferences
		FROM tag t
		WHERE t.id IN (
				SELECT tag_id FROM media_tag WHERE element_id = ?
			UNION
				SELECT ct.tag_id
				FROM collection_link cl
				JOIN collection_tag ct ON ct.collection_id = cl.collection_id
				WHERE cl.element_id = ?
		)
		ORDER BY t.title`, elementID, elementID)
}

// CollectionTags returns the tags assigned to a collection.
func (s *Service) CollectionTags(ctx context.Context, collectionID int64) ([]*Tag, error) {
	return s.queryTags(ctx, `
		SELECT t.id, t.title, t.notes, t.use_for_preferences
		FROM tag t
			INNER JOIN collection_tag ct ON ct.tag_id = t.id
		WHERE ct.collection_id = ?
		ORDER BY t.title`, collectionID)
}

// ElementsWithTag returns the ids of media elements carrying the tag,
// assigned directly or inherited from a collection.
func (s *Service) ElementsWithTag(ctx context.Context, tagID int64) ([]int64, error) {
	return s.queryIDs(ctx, `
		SELECT element_id FROM media_tag WHERE tag_id = ?
		UNION
		SELECT cl.element_id
		FROM collection_link cl
			INNER JOIN collection_tag ct ON ct.collection_id = cl.collection_id
		WHERE ct.tag_id = ?
		ORDER BY element_id`, tagID, tagID)
}

// CollectionsWithTag returns the ids of collections carrying the tag.
func (s *Service) CollectionsWithTag(ctx context.Context, tagID int64) ([]int64, error) {
	return s.queryIDs(ctx,
		`SELECT collection_id FROM collection_tag WHERE tag_id = ? ORDER BY collection_id`,
		tagID)
}

func (s *Service) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AllElementsTags resolves the full tag closure of every element in one
// query: assigned tags, tags inherited from collections and all their
// transitive super tags, restricted to tags used for preferences.
func (s *Service) AllElementsTags(ctx context.Context) (map[int64][]*Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE found_tag (element_id, tag_id) AS (
				SELECT element_id, tag_id
				FROM media_tag
			UNION
				SELECT cl.element_id, ct.tag_id
				FROM collection_link cl
				JOIN collection_tag ct ON cl.collection_id = ct.collection_id
			UNION
				SELECT found_tag.element_id, h.super_id
				FROM found_tag
				JOIN tag_hierarchy h ON found_tag.tag_id = h.sub_id
		)
		SELECT found_tag.element_id, t.id, t.title, t.notes, t.use_for_preferences
		FROM found_tag
		JOIN tag t ON found_tag.tag_id = t.id
		WHERE t.use_for_preferences
		ORDER BY found_tag.element_id, t.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64][]*Tag)
	tags := make(map[int64]*Tag)
	for rows.Next() {
		var elementID int64
		var t Tag
		var notes sql.NullString
		if err := rows.Scan(&elementID, &t.ID, &t.Title, &notes, &t.UseForPreferences); err != nil {
			return nil, err
		}
		t.Notes = notes.String
		shared, ok := tags[t.ID]
		if !ok {
			shared = &t
			tags[t.ID] = shared
		}
		result[elementID] = append(result[elementID], shared)
	}
	return result, rows.Err()
}

// AllElementsDirectTags returns the direct tags of every element,
// assigned ones plus those inherited from collections, without walking
// the super tag hierarchy.
func (s *Service) AllElementsDirectTags(ctx context.Context) (map[int64][]*Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pairs.element_id, t.id, t.title, t.notes, t.use_for_preferences
		FROM (
				SELECT element_id, tag_id FROM media_tag
			UNION
				SELECT cl.element_id, ct.tag_id
				FROM collection_link cl
				JOIN collection_tag ct ON cl.collection_id = ct.collection_id
		) pairs
		JOIN tag t ON t.id = pairs.tag_id
		ORDER BY pairs.element_id, t.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64][]*Tag)
	tags := make(map[int64]*Tag)
	for rows.Next() {
		var elementID int64
		var t Tag
		var notes sql.NullString
		if err := rows.Scan(&elementID, &t.ID, &t.Title, &notes, &t.UseForPreferences); err != nil {
			return nil, err
		}
		t.Notes = notes.String
		shared, ok := tags[t.ID]
		if !ok {
			shared = &t
			tags[t.ID] = shared
		}
		result[elementID] = append(result[elementID], shared)
	}
	return result, rows.Err()
}

// AllSuperRelations returns the super tag ids per sub tag id.
func (s *Service) AllSuperRelations(ctx context.Context) (map[int64][]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sub_id, super_id FROM tag_hierarchy ORDER BY sub_id, super_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64][]int64)
	for rows.Next() {
		var subID, superID int64
		if err := rows.Scan(&subID, &superID); err != nil {
			return nil, err
		}
		result[subID] = append(result[subID], superID)
	}
	return result, rows.Err()
}

func (s *Service) queryTags(ctx context.Context, query string, args ...any) ([]*Tag, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []*Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
