// File: internal/usecase/media_saga.go
package usecase

import (
	"context"
	"fmt"
	"strings"

	"activity-engine/internal/domain"
	"activity-engine/internal/domain/model"
	"activity-engine/internal/domain/ports/adapter"
	"activity-engine/internal/infra/logging"
	"activity-engine/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// MediaLimits bounds what a single create request may upload.
type MediaLimits struct {
	MaxFiles    int
	MaxFileSize int64
}

// MediaSaga uploads activity photos before the record exists and deletes them
// again when a later step fails.
type MediaSaga struct {
	store  adapter.MediaStore
	limits MediaLimits
	log    *zerolog.Logger
}

func NewMediaSaga(store adapter.MediaStore, limits MediaLimits, logger *zerolog.Logger) *MediaSaga {
	if limits.MaxFiles <= 0 || limits.MaxFiles > model.MaxPhotos {
		limits.MaxFiles = model.MaxPhotos
	}
	l := logger.With().Str("component", "MediaSaga").Logger()
	return &MediaSaga{store: store, limits: limits, log: &l}
}

// Check rejects a file set that could never be uploaded, without touching the store.
func (s *MediaSaga) Check(files []adapter.MediaFile) error {
	if len(files) > s.limits.MaxFiles {
		return fmt.Errorf("%w: at most %d photos allowed", domain.ErrInvalidArgument, s.limits.MaxFiles)
	}
	for _, f := range files {
		if !strings.HasPrefix(strings.ToLower(f.ContentType), "image/") {
			return fmt.Errorf("%w: %s is not an image", domain.ErrInvalidArgument, f.Name)
		}
		if s.limits.MaxFileSize > 0 && f.Size > s.limits.MaxFileSize {
			return fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrInvalidArgument, f.Name, s.limits.MaxFileSize)
		}
	}
	return nil
}

// UploadAll stores files one after another and returns their URLs in order.
// On the first failure every URL already stored is rolled back and the upload
// error is returned, wrapped with domain.ErrUploadFailed.
func (s *MediaSaga) UploadAll(ctx context.Context, files []adapter.MediaFile) ([]string, error) {
	if len(files) == 0 {
		return []string{}, nil
	}
	if err := s.Check(files); err != nil {
		return nil, err
	}
	defer logging.TraceDuration(s.log, "MediaSaga.UploadAll")()

	urls := make([]string, 0, len(files))
	for _, f := range files {
		url, err := s.store.Upload(ctx, f)
		if err != nil {
			metrics.IncMediaUpload("error")
			s.Rollback(ctx, urls)
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrUploadFailed, f.Name, err)
		}
		metrics.IncMediaUpload("ok")
		urls = append(urls, url)
	}
	return urls, nil
}

// Rollback deletes every url independently. Failures are logged and counted,
// never returned, so the caller's original error is what surfaces.
func (s *MediaSaga) Rollback(ctx context.Context, urls []string) {
	if len(urls) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	log := logging.With(ctx, s.log)
	for _, url := range urls {
		if err := s.store.Delete(ctx, url); err != nil {
			metrics.IncMediaRollbackDelete("error")
			log.Error().Err(err).Str("url", url).Msg("media rollback delete failed")
			continue
		}
		metrics.IncMediaRollbackDelete("ok")
	}
	log.Warn().Int("count", len(urls)).Msg("media rolled back")
}
