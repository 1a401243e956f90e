package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/jobs"
	"github.com/sdcpainting/referral_site/media"
	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/store"
)

type UploadInput struct {
	Filename    string
	Title       string
	Description string
	UploaderID  string
	Body        io.Reader
}

// GalleryView is an item with freshly signed URLs for its artifacts.
type GalleryView struct {
	*models.GalleryItem
	media.SignedURLs
}

type GalleryOptions struct {
	PendingDir     string
	MaxUploadBytes int64
	SignedURLTTL   time.Duration
}

type GalleryService struct {
	gallery  store.Collection[*models.GalleryItem]
	pipeline *media.Pipeline
	queue    jobs.Enqueuer
	events   Publisher
	opts     GalleryOptions
	log      *zap.Logger
	now      func() time.Time
}

func NewGalleryService(st *store.Store, pipeline *media.Pipeline, queue jobs.Enqueuer, events Publisher, opts GalleryOptions, log *zap.Logger) *GalleryService {
	return &GalleryService{
		gallery:  st.Gallery,
		pipeline: pipeline,
		queue:    queue,
		events:   publisherOrNop(events),
		opts:     opts,
		log:      log.Named("gallery"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// AcceptUpload stores the upload in the pending area and queues it for
// processing. It returns the id the gallery item will have.
func (s *GalleryService) AcceptUpload(ctx context.Context, in UploadInput) (string, error) {
	if strings.TrimSpace(in.Title) == "" {
		in.Title = strings.TrimSuffix(in.Filename, filepath.Ext(in.Filename))
	}
	if _, err := media.KindForFilename(in.Filename); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.opts.PendingDir, 0o755); err != nil {
		return "", fmt.Errorf("create pending dir: %w", err)
	}

	itemID := uuid.NewString()
	pendingName := itemID + "_" + sanitizeFilename(in.Filename)
	pendingPath := filepath.Join(s.opts.PendingDir, pendingName)
	if err := s.writePending(pendingPath, in.Body); err != nil {
		return "", err
	}

	_, err := s.queue.Enqueue(ctx, jobs.ProcessMedia{
		ItemID:      itemID,
		PendingFile: pendingName,
		Filename:    in.Filename,
		UploaderID:  in.UploaderID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
	})
	if err != nil {
		os.Remove(pendingPath)
		return "", fmt.Errorf("queue upload: %w", err)
	}

	s.log.Info("upload accepted", zap.String("item_id", itemID), zap.String("uploader_id", in.UploaderID))
	s.events.Publish(Event{Type: EventUploadReceived, Payload: map[string]string{
		"item_id":     itemID,
		"filename":    in.Filename,
		"uploader_id": in.UploaderID,
	}})
	return itemID, nil
}

func (s *GalleryService) writePending(path string, body io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}

	limit := s.opts.MaxUploadBytes
	var n int64
	if limit > 0 {
		n, err = io.Copy(f, io.LimitReader(body, limit+1))
	} else {
		n, err = io.Copy(f, body)
	}
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("write pending file: %w", err)
	}
	if limit > 0 && n > limit {
		os.Remove(path)
		return &ValidationError{Fields: map[string]string{"file": fmt.Sprintf("must be at most %d bytes", limit)}}
	}
	return nil
}

// HandleProcessMedia is the worker handler for process-media jobs.
func (s *GalleryService) HandleProcessMedia(ctx context.Context, job jobs.ProcessMedia) error {
	pendingPath := filepath.Join(s.opts.PendingDir, filepath.Base(job.PendingFile))
	log := s.log.With(zap.String("item_id", job.ItemID))

	if _, err := os.Stat(pendingPath); errors.Is(err, fs.ErrNotExist) {
		if _, getErr := s.gallery.Get(ctx, job.ItemID); getErr == nil {
			log.Info("pending file already consumed")
			return nil
		}
		return jobs.Permanent(fmt.Errorf("pending upload %s is gone", job.PendingFile))
	}

	_, err := s.pipeline.Process(ctx, media.Upload{
		ItemID:      job.ItemID,
		Path:        pendingPath,
		Filename:    job.Filename,
		UploaderID:  job.UploaderID,
		Title:       job.Title,
		Description: job.Description,
	})
	if err != nil {
		if media.IsUnsupported(err) {
			s.removePending(pendingPath, log)
			return jobs.Permanent(err)
		}
		return err
	}

	s.removePending(pendingPath, log)
	return nil
}

func (s *GalleryService) removePending(path string, log *zap.Logger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("remove pending upload failed", zap.Error(err))
	}
}

func (s *GalleryService) view(ctx context.Context, item *models.GalleryItem) (GalleryView, error) {
	urls, err := s.pipeline.SignItem(ctx, item, s.opts.SignedURLTTL)
	if err != nil {
		return GalleryView{}, err
	}
	return GalleryView{GalleryItem: item, SignedURLs: urls}, nil
}

func (s *GalleryService) list(ctx context.Context, keep func(*models.GalleryItem) bool) ([]GalleryView, error) {
	items, err := s.gallery.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	views := make([]GalleryView, 0, len(items))
	for _, item := range items {
		if !keep(item) {
			continue
		}
		v, err := s.view(ctx, item)
		if err != nil {
			s.log.Warn("sign gallery item failed", zap.String("item_id", item.ID), zap.Error(err))
			continue
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *GalleryService) ListApproved(ctx context.Context) ([]GalleryView, error) {
	return s.list(ctx, func(item *models.GalleryItem) bool {
		return item.Moderation == models.ModerationApproved
	})
}

// ListForUploader returns everything uploaderID has had processed,
// whatever its moderation state.
func (s *GalleryService) ListForUploader(ctx context.Context, uploaderID string) ([]GalleryView, error) {
	return s.list(ctx, func(item *models.GalleryItem) bool {
		return item.UploaderID == uploaderID
	})
}

func (s *GalleryService) ListAll(ctx context.Context, moderation string) ([]GalleryView, error) {
	return s.list(ctx, func(item *models.GalleryItem) bool {
		return moderation == "" || item.Moderation == moderation
	})
}

func (s *GalleryService) Approve(ctx context.Context, id string) (*models.GalleryItem, error) {
	return s.moderate(ctx, id, models.ModerationApproved)
}

func (s *GalleryService) Reject(ctx context.Context, id string) (*models.GalleryItem, error) {
	return s.moderate(ctx, id, models.ModerationRejected)
}

func (s *GalleryService) moderate(ctx context.Context, id, target string) (*models.GalleryItem, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		item, err := s.gallery.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		if err := checkModeration(item.Moderation, target); err != nil {
			return nil, err
		}

		now := s.now()
		item.Moderation = target
		item.ModeratedAt = &now
		err = s.gallery.CompareAndSwap(ctx, item)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.log.Info("gallery item moderated", zap.String("item_id", id), zap.String("moderation", target))
		return item, nil
	}
	return nil, store.ErrConflict
}

// Delete removes the record first, then its artifacts. Artifacts that cannot
// be removed are left to the orphan collector.
func (s *GalleryService) Delete(ctx context.Context, id string) error {
	item, err := s.gallery.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := s.gallery.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.pipeline.Remove(ctx, item)
	s.log.Info("gallery item deleted", zap.String("item_id", id))
	return nil
}
