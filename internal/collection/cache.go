package collection

import (
	"context"
	"strings"
)

// RebuildLookupCache recomputes the predecessor pairs of watch-in-order
// collections. With no ids given the whole cache is rebuilt. Must run
// after link changes or after toggling watch_in_order, otherwise the
// eligibility checks work on stale order data.
func (s *Service) RebuildLookupCache(ctx context.Context, ids ...int64) error {
	deleteQuery := `DELETE FROM element_lookup_cache`
	insertQuery := `
		INSERT INTO element_lookup_cache (collection_id, element1, element2)
		SELECT c.id, l1.element_id, l2.element_id
		FROM media_collection c
			INNER JOIN collection_link l1 ON c.id = l1.collection_id
			INNER JOIN collection_link l2 ON c.id = l2.collection_id
			INNER JOIN media_element e1 ON l1.element_id = e1.id
			INNER JOIN media_element e2 ON l2.element_id = e2.id
		WHERE (l1.season, l1.episode, e1.release_date, e1.id)
				< (l2.season, l2.episode, e2.release_date, e2.id)
			AND c.watch_in_order`

	var deleteArgs, insertArgs []any
	if len(ids) > 0 {
		in := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		deleteQuery += ` WHERE collection_id IN (` + in + `)`
		insertQuery += ` AND c.id IN (` + in + `)`
		for _, id := range ids {
			deleteArgs = append(deleteArgs, id)
			insertArgs = append(insertArgs, id)
		}
	}
	insertQuery += ` GROUP BY c.id, l1.element_id, l2.element_id`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if len(ids) > 0 {
		s.logger.Info().Int("collections", len(ids)).Msg("Rebuilt element lookup cache")
	} else {
		s.logger.Info().Msg("Rebuilt element lookup cache for all collections")
	}
	return nil
}
