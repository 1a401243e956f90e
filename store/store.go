// Package store defines the Record Store capability shared by every backend
// and implements the flat-file JSON backend.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sdcpainting/referral_site/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrConflict  = errors.New("record version conflict")
	ErrDuplicate = errors.New("record already exists")
)

// Record is implemented by every model through models.Base.
type Record interface {
	RecordID() string
	RecordVersion() int64
	SetRecordVersion(int64)
	Stamp(now time.Time)
}

// Collection is a durable mapping from id to record for one entity type.
//
// Put is last-write-wins. CompareAndSwap only succeeds when the stored version
// equals rec's version, and is the primitive callers must use for any
// read-modify-write that has to be race free.
type Collection[T Record] interface {
	Get(ctx context.Context, id string) (T, error)
	List(ctx context.Context) ([]T, error)
	// FindBy returns records whose top-level field (JSON name, which is also
	// the column name) equals value.
	FindBy(ctx context.Context, field, value string) ([]T, error)
	// Insert fails with ErrDuplicate if the id or any unique field is taken.
	Insert(ctx context.Context, rec T) error
	Put(ctx context.Context, rec T) error
	CompareAndSwap(ctx context.Context, rec T) error
	Delete(ctx context.Context, id string) error
}

// Store groups the collections the application persists.
type Store struct {
	Users        Collection[*models.User]
	Referrals    Collection[*models.ReferralCode]
	Estimates    Collection[*models.Estimate]
	Gallery      Collection[*models.GalleryItem]
	Testimonials Collection[*models.Testimonial]
	DeadLetters  Collection[*models.DeadLetter]
	Jobs         Collection[*models.QueuedJob]
	Orphans      Collection[*models.Orphan]
}
