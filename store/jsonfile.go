package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sdcpainting/referral_site/models"
)

// OpenJSON opens (creating if needed) one JSON document per collection under dir.
func OpenJSON(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	return &Store{
		Users:        NewJSONCollection[*models.User](dir, "users", "email"),
		Referrals:    NewJSONCollection[*models.ReferralCode](dir, "referrals", "code"),
		Estimates:    NewJSONCollection[*models.Estimate](dir, "estimates"),
		Gallery:      NewJSONCollection[*models.GalleryItem](dir, "gallery"),
		Testimonials: NewJSONCollection[*models.Testimonial](dir, "testimonials"),
		DeadLetters:  NewJSONCollection[*models.DeadLetter](dir, "dead_letters"),
		Jobs:         NewJSONCollection[*models.QueuedJob](dir, "jobs"),
		Orphans:      NewJSONCollection[*models.Orphan](dir, "orphans"),
	}, nil
}

// JSONCollection keeps a collection as an ordered JSON array in a single
// file. Every operation re-reads the file under an in-process mutex and an
// advisory file lock, so separate processes sharing dir see each other's
// writes. Writes go to a temp file which is then renamed over the original.
type JSONCollection[T Record] struct {
	path     string
	lockPath string
	unique   []string
	mu       sync.Mutex
	now      func() time.Time
}

func NewJSONCollection[T Record](dir, name string, unique ...string) *JSONCollection[T] {
	return &JSONCollection[T]{
		path:     filepath.Join(dir, name+".json"),
		lockPath: filepath.Join(dir, "."+name+".lock"),
		unique:   unique,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (c *JSONCollection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	var found T
	err := c.read(ctx, func(recs []T) error {
		idx := indexOf(recs, id)
		if idx < 0 {
			return ErrNotFound
		}
		found = recs[idx]
		return nil
	})
	if err != nil {
		return zero, err
	}
	return found, nil
}

func (c *JSONCollection[T]) List(ctx context.Context) ([]T, error) {
	var out []T
	err := c.read(ctx, func(recs []T) error {
		out = recs
		return nil
	})
	return out, err
}

func (c *JSONCollection[T]) FindBy(ctx context.Context, field, value string) ([]T, error) {
	var out []T
	err := c.read(ctx, func(recs []T) error {
		for _, rec := range recs {
			v, err := fieldValue(rec, field)
			if err != nil {
				return err
			}
			if v == value {
				out = append(out, rec)
			}
		}
		return nil
	})
	return out, err
}

func (c *JSONCollection[T]) Insert(ctx context.Context, rec T) error {
	return c.write(ctx, func(recs []T) ([]T, error) {
		if indexOf(recs, rec.RecordID()) >= 0 {
			return nil, fmt.Errorf("%w: id %s", ErrDuplicate, rec.RecordID())
		}
		for _, field := range c.unique {
			want, err := fieldValue(rec, field)
			if err != nil {
				return nil, err
			}
			if want == "" {
				continue
			}
			for _, existing := range recs {
				got, err := fieldValue(existing, field)
				if err != nil {
					return nil, err
				}
				if got == want {
					return nil, fmt.Errorf("%w: %s %q", ErrDuplicate, field, want)
				}
			}
		}
		rec.SetRecordVersion(1)
		rec.Stamp(c.now())
		return append(recs, rec), nil
	})
}

func (c *JSONCollection[T]) Put(ctx context.Context, rec T) error {
	return c.write(ctx, func(recs []T) ([]T, error) {
		rec.Stamp(c.now())
		idx := indexOf(recs, rec.RecordID())
		if idx < 0 {
			rec.SetRecordVersion(1)
			return append(recs, rec), nil
		}
		rec.SetRecordVersion(recs[idx].RecordVersion() + 1)
		recs[idx] = rec
		return recs, nil
	})
}

func (c *JSONCollection[T]) CompareAndSwap(ctx context.Context, rec T) error {
	return c.write(ctx, func(recs []T) ([]T, error) {
		idx := indexOf(recs, rec.RecordID())
		if idx < 0 {
			return nil, ErrNotFound
		}
		if recs[idx].RecordVersion() != rec.RecordVersion() {
			return nil, ErrConflict
		}
		rec.SetRecordVersion(rec.RecordVersion() + 1)
		rec.Stamp(c.now())
		recs[idx] = rec
		return recs, nil
	})
}

func (c *JSONCollection[T]) Delete(ctx context.Context, id string) error {
	return c.write(ctx, func(recs []T) ([]T, error) {
		idx := indexOf(recs, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		return append(recs[:idx], recs[idx+1:]...), nil
	})
}

func (c *JSONCollection[T]) read(ctx context.Context, fn func([]T) error) error {
	return c.locked(ctx, func() error {
		recs, err := c.load()
		if err != nil {
			return err
		}
		return fn(recs)
	})
}

func (c *JSONCollection[T]) write(ctx context.Context, fn func([]T) ([]T, error)) error {
	return c.locked(ctx, func() error {
		recs, err := c.load()
		if err != nil {
			return err
		}
		next, err := fn(recs)
		if err != nil {
			return err
		}
		return c.save(next)
	})
}

func (c *JSONCollection[T]) locked(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	unlock, err := lockFile(c.lockPath)
	if err != nil {
		return fmt.Errorf("lock %s: %w", c.lockPath, err)
	}
	defer unlock()

	return fn()
}

func (c *JSONCollection[T]) load() ([]T, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var recs []T
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.path, err)
	}
	return recs, nil
}

func (c *JSONCollection[T]) save(recs []T) error {
	if recs == nil {
		recs = []T{}
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		return fmt.Errorf("replace %s: %w", c.path, err)
	}
	return nil
}

func indexOf[T Record](recs []T, id string) int {
	for i, rec := range recs {
		if rec.RecordID() == id {
			return i
		}
	}
	return -1
}

// fieldValue reads a top-level JSON field of rec as a string so FindBy and
// the unique checks compare the same representation the file stores.
func fieldValue(rec any, field string) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return "", err
	}
	switch v := m[field].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}
