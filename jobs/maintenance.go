package jobs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/store"
)

// ArtifactDeleter removes a stored media artifact by locator.
type ArtifactDeleter interface {
	Delete(ctx context.Context, locator string) error
}

// PendingLister reports envelopes that have not been acked yet.
type PendingLister interface {
	Pending(ctx context.Context) ([]models.JobEnvelope, error)
}

// Maintenance holds the periodic cleanup tasks run by the worker process.
type Maintenance struct {
	orphans     store.Collection[*models.Orphan]
	deadLetters store.Collection[*models.DeadLetter]
	queue       PendingLister
	artifacts   ArtifactDeleter
	pendingDir  string
	pendingTTL  time.Duration
	log         *zap.Logger
	now         func() time.Time
}

func NewMaintenance(orphans store.Collection[*models.Orphan], deadLetters store.Collection[*models.DeadLetter], queue PendingLister, artifacts ArtifactDeleter, pendingDir string, pendingTTL time.Duration, log *zap.Logger) *Maintenance {
	return &Maintenance{
		orphans:     orphans,
		deadLetters: deadLetters,
		queue:       queue,
		artifacts:   artifacts,
		pendingDir:  pendingDir,
		pendingTTL:  pendingTTL,
		log:         log,
		now:         time.Now,
	}
}

// Schedule registers the maintenance tasks on c.
func (m *Maintenance) Schedule(ctx context.Context, c *cron.Cron) error {
	if _, err := c.AddFunc("*/15 * * * *", func() { m.CollectOrphans(ctx) }); err != nil {
		return err
	}
	if _, err := c.AddFunc("@hourly", func() { m.SweepPendingUploads(ctx) }); err != nil {
		return err
	}
	return nil
}

// CollectOrphans retries deleting artifacts whose cleanup failed earlier.
// It returns how many were removed.
func (m *Maintenance) CollectOrphans(ctx context.Context) int {
	orphans, err := m.orphans.List(ctx)
	if err != nil {
		m.log.Error("list orphans failed", zap.Error(err))
		return 0
	}
	if len(orphans) == 0 {
		return 0
	}

	removed := 0
	for _, o := range orphans {
		if err := m.artifacts.Delete(ctx, o.Locator); err != nil {
			m.log.Warn("orphan delete failed", zap.String("locator", o.Locator), zap.Error(err))
			o.Attempts++
			o.Reason = err.Error()
			if err := m.orphans.Put(ctx, o); err != nil {
				m.log.Error("orphan update failed", zap.String("id", o.ID), zap.Error(err))
			}
			continue
		}
		if err := m.orphans.Delete(ctx, o.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			m.log.Error("orphan record delete failed", zap.String("id", o.ID), zap.Error(err))
			continue
		}
		removed++
	}

	m.log.Info("orphan collection finished", zap.Int("removed", removed), zap.Int("remaining", len(orphans)-removed))
	return removed
}

// SweepPendingUploads removes pending upload files older than the TTL that no
// unacked process-media job or un-requeued dead letter still names.
func (m *Maintenance) SweepPendingUploads(ctx context.Context) int {
	referenced, err := m.referencedUploads(ctx)
	if err != nil {
		m.log.Error("pending sweep skipped", zap.Error(err))
		return 0
	}

	entries, err := os.ReadDir(m.pendingDir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0
	}
	if err != nil {
		m.log.Error("read pending dir failed", zap.Error(err))
		return 0
	}

	cutoff := m.now().Add(-m.pendingTTL)
	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if entry.IsDir() || referenced[entry.Name()] {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(m.pendingDir, entry.Name())); err != nil {
			m.log.Warn("remove stale upload failed", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		m.log.Info("stale pending uploads removed", zap.Int("count", removed))
	}
	return removed
}

func (m *Maintenance) referencedUploads(ctx context.Context) (map[string]bool, error) {
	var envs []models.JobEnvelope
	if m.queue != nil {
		pending, err := m.queue.Pending(ctx)
		if err != nil {
			return nil, fmt.Errorf("list queued jobs: %w", err)
		}
		envs = append(envs, pending...)
	}
	if m.deadLetters != nil {
		dead, err := m.deadLetters.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list dead letters: %w", err)
		}
		for _, dl := range dead {
			if dl.RequeuedAt == nil {
				envs = append(envs, dl.Envelope)
			}
		}
	}

	referenced := make(map[string]bool)
	for _, env := range envs {
		if Kind(env.JobName) != KindProcessMedia {
			continue
		}
		job, err := Decode(env)
		if err != nil {
			continue
		}
		if pm, ok := job.(ProcessMedia); ok && pm.PendingFile != "" {
			referenced[pm.PendingFile] = true
		}
	}
	return referenced, nil
}
