// Package thumbnail stores preview images for media elements. Images
// are registered by URI first and downloaded lazily when their bytes
// are requested for the first time.
package thumbnail

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound        = errors.New("thumbnail not found")
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrDownloadFailed  = errors.New("thumbnail download failed")
)

// allowedTypes are the image formats browsers can render directly.
var allowedTypes = map[string]bool{
	"image/avif": true,
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

const downloadAccept = "image/avif,image/jpeg,image/png,image/webp,*/*;q=0.9"

// targetAspect is the preferred thumbnail aspect ratio.
const targetAspect = 16.0 / 9.0

// VariantPenalty ranks image variants of the same picture. Lower is
// better: closest to the target aspect ratio wins, smaller area breaks
// ties to keep the stored blobs small.
func VariantPenalty(width, height int) (aspectDiff float64, area int) {
	if height == 0 {
		return targetAspect, width
	}
	diff := float64(width)/float64(height) - targetAspect
	if diff < 0 {
		diff = -diff
	}
	return diff, width * height
}

// Thumbnail is a stored preview image, without its blob.
type Thumbnail struct {
	ID             int64
	URI            string
	MimeType       string
	LastDownloaded *time.Time
	LastAccessed   *time.Time
}

// Downloaded reports whether the image bytes are present.
func (t *Thumbnail) Downloaded() bool {
	return t.LastDownloaded != nil
}

// Service manages thumbnail rows and their lazy downloads.
type Service struct {
	db         *sql.DB
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewService creates a new thumbnail service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db: db,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With().Str("component", "thumbnail").Logger(),
	}
}

// FromURI returns the id of the thumbnail row for the URI, creating
// the row if it does not exist yet. The image itself is not fetched.
func (s *Service) FromURI(ctx context.Context, uri string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM media_thumbnail WHERE uri = ?`, uri).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up thumbnail: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO media_thumbnail (uri) VALUES (?)`, uri)
	if err != nil {
		return 0, fmt.Errorf("failed to create thumbnail: %w", err)
	}
	return res.LastInsertId()
}

// GetByID returns thumbnail metadata without the image blob.
func (s *Service) GetByID(ctx context.Context, id int64) (*Thumbnail, error) {
	t := &Thumbnail{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, uri, mime_type, last_downloaded, last_accessed FROM media_thumbnail WHERE id = ?`, id,
	).Scan(&t.ID, &t.URI, &t.MimeType, &t.LastDownloaded, &t.LastAccessed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thumbnail: %w", err)
	}
	return t, nil
}

// Receive returns the image bytes, downloading them on first access.
// The access time is bumped so unused images can be expired later.
func (s *Service) Receive(ctx context.Context, id int64) (*Thumbnail, []byte, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !t.Downloaded() {
		if err := s.download(ctx, t); err != nil {
			return nil, nil, err
		}
	}

	now := time.Now()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE media_thumbnail SET last_accessed = ? WHERE id = ?`, now, id,
	); err != nil {
		return nil, nil, fmt.Errorf("failed to update thumbnail access time: %w", err)
	}
	t.LastAccessed = &now

	var data []byte
	if err := s.db.QueryRowContext(ctx,
		`SELECT data FROM media_thumbnail WHERE id = ?`, id,
	).Scan(&data); err != nil {
		return nil, nil, fmt.Errorf("failed to read thumbnail data: %w", err)
	}
	return t, data, nil
}

// Prune deletes thumbnail rows no element references anymore and drops
// the blobs of images that were not served for the given duration.
// Dropped blobs re-download lazily on the next access.
func (s *Service) Prune(ctx context.Context, unusedFor time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM media_thumbnail
		WHERE id NOT IN (SELECT thumbnail_id FROM media_element WHERE thumbnail_id IS NOT NULL)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prune orphaned thumbnails: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-unusedFor)
	if _, err := s.db.ExecContext(ctx, `
		UPDATE media_thumbnail
		SET data = NULL, last_downloaded = NULL
		WHERE last_downloaded IS NOT NULL
		  AND COALESCE(last_accessed, last_downloaded) < ?`, cutoff); err != nil {
		return deleted, fmt.Errorf("failed to expire thumbnail blobs: %w", err)
	}

	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Msg("Pruned thumbnails")
	}
	return deleted, nil
}

func (s *Service) download(ctx context.Context, t *Thumbnail) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URI, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", downloadAccept)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn().Err(err).Str("uri", t.URI).Msg("Thumbnail download failed")
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	mime := mimetype.Detect(data).String()
	if !allowedTypes[mime] {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
	}

	now := time.Now()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE media_thumbnail SET mime_type = ?, data = ?, last_downloaded = ? WHERE id = ?`,
		mime, data, now, t.ID,
	); err != nil {
		return fmt.Errorf("failed to store thumbnail data: %w", err)
	}
	t.MimeType = mime
	t.LastDownloaded = &now

	s.logger.Debug().
		Str("uri", t.URI).
		Str("mime", mime).
		Int("bytes", len(data)).
		Msg("Downloaded thumbnail")
	return nil
}
