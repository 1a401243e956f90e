// Package media turns uploaded files into gallery items: it classifies the
// upload, derives a thumbnail (and optionally a transcoded video), stores the
// artifacts and records the item only when every step succeeded.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/store"
)

// Upload is a file already on local disk waiting to be processed.
type Upload struct {
	ItemID      string
	Path        string
	Filename    string
	UploaderID  string
	Title       string
	Description string
}

type PipelineOptions struct {
	ThumbSize int
	Transcode bool
}

type Pipeline struct {
	storage Storage
	video   VideoTool
	gallery store.Collection[*models.GalleryItem]
	orphans store.Collection[*models.Orphan]
	opts    PipelineOptions
	log     *zap.Logger
}

func NewPipeline(storage Storage, video VideoTool, gallery store.Collection[*models.GalleryItem], orphans store.Collection[*models.Orphan], opts PipelineOptions, log *zap.Logger) *Pipeline {
	if opts.ThumbSize <= 0 {
		opts.ThumbSize = 320
	}
	return &Pipeline{
		storage: storage,
		video:   video,
		gallery: gallery,
		orphans: orphans,
		opts:    opts,
		log:     log,
	}
}

// artifacts tracks what a single run has written so a failure can undo it.
// Keys carry a per-run suffix: overlapping deliveries of one item never
// share a stored object, so discarding one run's files leaves the other's.
type artifacts struct {
	run     string
	written []string
}

func newArtifacts() *artifacts {
	return &artifacts{run: uuid.NewString()[:8]}
}

func (a *artifacts) key(dir, itemID, ext string) string {
	return dir + "/" + itemID + "-" + a.run + ext
}

func (a *artifacts) add(locator string) string {
	a.written = append(a.written, locator)
	return locator
}

// Process runs the whole pipeline for up. On any error nothing is recorded
// in the gallery and artifacts written so far are removed (or recorded as
// orphans when removal fails). Processing the same ItemID twice returns the
// item recorded by the first successful run.
func (p *Pipeline) Process(ctx context.Context, up Upload) (*models.GalleryItem, error) {
	if up.ItemID == "" {
		up.ItemID = uuid.NewString()
	}
	log := p.log.With(zap.String("item_id", up.ItemID), zap.String("filename", up.Filename))

	if existing, err := p.gallery.Get(ctx, up.ItemID); err == nil {
		log.Info("media already processed")
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, failed("lookup", err)
	}

	class, err := Classify(up.Path, up.Filename)
	if err != nil {
		log.Warn("upload rejected", zap.Error(err))
		return nil, err
	}

	item := &models.GalleryItem{
		Base:        models.Base{ID: up.ItemID},
		Kind:        class.Kind,
		Title:       up.Title,
		Description: up.Description,
		Moderation:  models.ModerationPending,
		UploaderID:  up.UploaderID,
	}

	written := newArtifacts()
	switch class.Kind {
	case models.MediaKindImage:
		err = p.processImage(ctx, up, class, item, written)
	case models.MediaKindVideo:
		err = p.processVideo(ctx, up, class, item, written)
	default:
		err = unsupported(up.Filename, "unknown media kind %s", class.Kind)
	}
	if err != nil {
		p.discard(ctx, written.written, log)
		log.Error("media processing failed", zap.Error(err))
		return nil, err
	}

	if err := p.gallery.Insert(ctx, item); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			if existing, getErr := p.gallery.Get(ctx, up.ItemID); getErr == nil {
				log.Info("media recorded by a concurrent run")
				p.discard(ctx, withoutLocators(written.written, existing), log)
				return existing, nil
			}
		}
		p.discard(ctx, written.written, log)
		return nil, failed("record", err)
	}

	log.Info("media processed", zap.String("kind", item.Kind))
	return item, nil
}

func (p *Pipeline) processImage(ctx context.Context, up Upload, class Classification, item *models.GalleryItem, written *artifacts) error {
	img, err := decodeImageFile(up.Path)
	if err != nil {
		return unsupported(up.Filename, "image could not be decoded")
	}

	thumb, err := encodeJPEG(Thumbnail(img, p.opts.ThumbSize))
	if err != nil {
		return failed("thumbnail", err)
	}

	original, err := p.putFile(ctx, up.Path, written.key("originals", up.ItemID, class.Extension), class.MIME)
	if err != nil {
		return failed("store original", err)
	}
	item.OriginalLocator = written.add(original)

	thumbLocator, err := p.storage.Put(ctx, written.key("thumbs", up.ItemID, ".jpg"), thumb, "image/jpeg")
	if err != nil {
		return failed("store thumbnail", err)
	}
	item.ThumbnailLocator = written.add(thumbLocator)
	return nil
}

func (p *Pipeline) processVideo(ctx context.Context, up Upload, class Classification, item *models.GalleryItem, written *artifacts) error {
	if p.video == nil {
		return failed("probe", errors.New("no video tool configured"))
	}

	probe, err := p.video.Probe(ctx, up.Path)
	if err != nil {
		// ffprobe exiting non-zero means it could not read the file; any other
		// failure is ours.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return unsupported(up.Filename, "not a readable video")
		}
		return failed("probe", err)
	}
	if !probe.HasVideo {
		return unsupported(up.Filename, "no video stream found")
	}
	item.DurationSeconds = probe.DurationSeconds

	work, err := os.MkdirTemp("", "media-"+up.ItemID+"-")
	if err != nil {
		return failed("workdir", err)
	}
	defer os.RemoveAll(work)

	offset := time.Second
	if probe.DurationSeconds < 1 {
		offset = 0
	}
	framePath := filepath.Join(work, "frame.jpg")
	if err := p.video.Frame(ctx, up.Path, framePath, offset, p.opts.ThumbSize); err != nil {
		return failed("extract frame", err)
	}

	original, err := p.putFile(ctx, up.Path, written.key("originals", up.ItemID, class.Extension), class.MIME)
	if err != nil {
		return failed("store original", err)
	}
	item.OriginalLocator = written.add(original)

	thumb, err := p.putFile(ctx, framePath, written.key("thumbs", up.ItemID, ".jpg"), "image/jpeg")
	if err != nil {
		return failed("store thumbnail", err)
	}
	item.ThumbnailLocator = written.add(thumb)

	if !p.opts.Transcode {
		return nil
	}
	transcodedPath := filepath.Join(work, "transcoded.mp4")
	if err := p.video.Transcode(ctx, up.Path, transcodedPath); err != nil {
		return failed("transcode", err)
	}
	transcoded, err := p.putFile(ctx, transcodedPath, written.key("videos", up.ItemID, ".mp4"), "video/mp4")
	if err != nil {
		return failed("store transcoded", err)
	}
	item.TranscodedLocator = written.add(transcoded)
	return nil
}

func (p *Pipeline) putFile(ctx context.Context, path, key, contentType string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return p.storage.Put(ctx, key, f, contentType)
}

// withoutLocators drops the locators item already references.
func withoutLocators(locators []string, item *models.GalleryItem) []string {
	var out []string
	for _, l := range locators {
		if l == item.OriginalLocator || l == item.ThumbnailLocator || l == item.TranscodedLocator {
			continue
		}
		out = append(out, l)
	}
	return out
}

// discard removes artifacts of a failed run. Artifacts that cannot be removed
// are recorded for the orphan collector.
func (p *Pipeline) discard(ctx context.Context, locators []string, log *zap.Logger) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	for _, locator := range locators {
		err := p.storage.Delete(cleanupCtx, locator)
		if err == nil {
			continue
		}
		log.Warn("artifact cleanup failed", zap.String("locator", locator), zap.Error(err))
		p.recordOrphan(cleanupCtx, locator, err, log)
	}
}

func (p *Pipeline) recordOrphan(ctx context.Context, locator string, cause error, log *zap.Logger) {
	if p.orphans == nil {
		return
	}
	orphan := &models.Orphan{
		Base:    models.Base{ID: uuid.NewString()},
		Locator: locator,
		Reason:  fmt.Sprintf("cleanup failed: %v", cause),
	}
	if err := p.orphans.Insert(ctx, orphan); err != nil {
		log.Error("orphan record failed", zap.String("locator", locator), zap.Error(err))
	}
}

// Remove deletes every stored artifact of item, orphaning what cannot be
// deleted.
func (p *Pipeline) Remove(ctx context.Context, item *models.GalleryItem) {
	var locators []string
	for _, l := range []string{item.OriginalLocator, item.ThumbnailLocator, item.TranscodedLocator} {
		if l != "" {
			locators = append(locators, l)
		}
	}
	p.discard(ctx, locators, p.log.With(zap.String("item_id", item.ID)))
}

// SignItem returns read URLs for item's artifacts.
func (p *Pipeline) SignItem(ctx context.Context, item *models.GalleryItem, ttl time.Duration) (SignedURLs, error) {
	var urls SignedURLs
	var err error
	if urls.Original, err = p.sign(ctx, item.OriginalLocator, ttl); err != nil {
		return SignedURLs{}, err
	}
	if urls.Thumbnail, err = p.sign(ctx, item.ThumbnailLocator, ttl); err != nil {
		return SignedURLs{}, err
	}
	if urls.Transcoded, err = p.sign(ctx, item.TranscodedLocator, ttl); err != nil {
		return SignedURLs{}, err
	}
	return urls, nil
}

type SignedURLs struct {
	Original   string `json:"original_url"`
	Thumbnail  string `json:"thumbnail_url"`
	Transcoded string `json:"transcoded_url,omitempty"`
}

func (p *Pipeline) sign(ctx context.Context, locator string, ttl time.Duration) (string, error) {
	if locator == "" {
		return "", nil
	}
	return p.storage.Sign(ctx, locator, ttl)
}
