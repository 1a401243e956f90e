package services

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/jobs"
	"github.com/sdcpainting/referral_site/media"
	"github.com/sdcpainting/referral_site/models"
)

func newGallery(t *testing.T, f *fixture) *GalleryService {
	t.Helper()
	root := t.TempDir()
	storage, err := media.NewLocalStorage(filepath.Join(root, "media"), "http://localhost:8080", "test-secret")
	require.NoError(t, err)
	pipeline := media.NewPipeline(storage, nil, f.store.Gallery, f.store.Orphans, media.PipelineOptions{ThumbSize: 320}, zap.NewNop())
	return NewGalleryService(f.store, pipeline, f.queue, f.events, GalleryOptions{
		PendingDir:     filepath.Join(root, "pending"),
		MaxUploadBytes: 1 << 20,
		SignedURLTTL:   time.Hour,
	}, zap.NewNop())
}

func pngUpload(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 600, 300))))
	return &buf
}

func (q *fakeQueue) mediaJobs() []jobs.ProcessMedia {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []jobs.ProcessMedia
	for _, j := range q.jobs {
		if m, ok := j.(jobs.ProcessMedia); ok {
			out = append(out, m)
		}
	}
	return out
}

func TestAcceptUploadAndProcess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := newGallery(t, f)

	itemID, err := g.AcceptUpload(ctx, UploadInput{Filename: "my deck.png", UploaderID: "u1", Body: pngUpload(t)})
	require.NoError(t, err)

	queued := f.queue.mediaJobs()
	require.Len(t, queued, 1)
	job := queued[0]
	assert.Equal(t, itemID, job.ItemID)
	assert.Equal(t, "my deck", job.Title)
	assert.Equal(t, itemID+"_my_deck.png", job.PendingFile)
	assert.FileExists(t, filepath.Join(g.opts.PendingDir, job.PendingFile))

	require.NoError(t, g.HandleProcessMedia(ctx, job))
	assert.NoFileExists(t, filepath.Join(g.opts.PendingDir, job.PendingFile))

	mine, err := g.ListForUploader(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.ModerationPending, mine[0].Moderation)
	assert.Contains(t, mine[0].Thumbnail, "/media/thumbs/"+itemID+"-")

	public, err := g.ListApproved(ctx)
	require.NoError(t, err)
	assert.Empty(t, public)

	_, err = g.Approve(ctx, itemID)
	require.NoError(t, err)
	public, err = g.ListApproved(ctx)
	require.NoError(t, err)
	assert.Len(t, public, 1)

	_, err = g.Reject(ctx, itemID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// A redelivered job after success is a no-op.
	require.NoError(t, g.HandleProcessMedia(ctx, job))
}

func TestAcceptUploadRejectsBadExtension(t *testing.T) {
	f := newFixture(t)
	g := newGallery(t, f)

	_, err := g.AcceptUpload(context.Background(), UploadInput{Filename: "virus.exe", UploaderID: "u1", Body: strings.NewReader("MZ")})
	assert.True(t, media.IsUnsupported(err))
	assert.Empty(t, f.queue.jobs)
}

func TestAcceptUploadEnforcesSizeLimit(t *testing.T) {
	f := newFixture(t)
	g := newGallery(t, f)
	g.opts.MaxUploadBytes = 10

	_, err := g.AcceptUpload(context.Background(), UploadInput{Filename: "big.png", UploaderID: "u1", Body: pngUpload(t)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "file")

	entries, err := os.ReadDir(g.opts.PendingDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcessUnsupportedContentIsPermanent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := newGallery(t, f)

	_, err := g.AcceptUpload(ctx, UploadInput{Filename: "fake.png", UploaderID: "u1", Body: strings.NewReader("plain text, not a picture")})
	require.NoError(t, err)
	job := f.queue.mediaJobs()[0]

	err = g.HandleProcessMedia(ctx, job)
	assert.True(t, jobs.IsPermanent(err))
	assert.True(t, media.IsUnsupported(err))
	assert.NoFileExists(t, filepath.Join(g.opts.PendingDir, job.PendingFile))

	items, err := f.store.Gallery.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDeleteGalleryItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := newGallery(t, f)

	itemID, err := g.AcceptUpload(ctx, UploadInput{Filename: "porch.png", UploaderID: "u1", Body: pngUpload(t)})
	require.NoError(t, err)
	require.NoError(t, g.HandleProcessMedia(ctx, f.queue.mediaJobs()[0]))

	require.NoError(t, g.Delete(ctx, itemID))
	assert.ErrorIs(t, g.Delete(ctx, itemID), ErrNotFound)

	all, err := g.ListAll(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}
