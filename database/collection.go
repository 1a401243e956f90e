package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sdcpainting/referral_site/store"
)

// Collection implements store.Collection on a gorm table. Unique fields are
// enforced by the table's unique indexes; CompareAndSwap is a conditional
// UPDATE on the version column.
type Collection[T store.Record] struct {
	db     *gorm.DB
	newRec func() T
	now    func() time.Time
}

func NewCollection[T store.Record](db *gorm.DB, newRec func() T) *Collection[T] {
	return &Collection[T]{
		db:     db,
		newRec: newRec,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	rec := c.newRec()
	if err := c.db.WithContext(ctx).First(rec, "id = ?", id).Error; err != nil {
		var zero T
		return zero, translate(err)
	}
	return rec, nil
}

func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	var recs []T
	if err := c.db.WithContext(ctx).Order("created_at asc").Find(&recs).Error; err != nil {
		return nil, translate(err)
	}
	return recs, nil
}

func (c *Collection[T]) FindBy(ctx context.Context, field, value string) ([]T, error) {
	var recs []T
	err := c.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: field}, Value: value}).
		Order("created_at asc").
		Find(&recs).Error
	if err != nil {
		return nil, translate(err)
	}
	return recs, nil
}

func (c *Collection[T]) Insert(ctx context.Context, rec T) error {
	rec.SetRecordVersion(1)
	rec.Stamp(c.now())
	return translate(c.db.WithContext(ctx).Create(rec).Error)
}

func (c *Collection[T]) Put(ctx context.Context, rec T) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current := c.newRec()
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(current, "id = ?", rec.RecordID()).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec.SetRecordVersion(1)
			rec.Stamp(c.now())
			return translate(tx.Create(rec).Error)
		case err != nil:
			return translate(err)
		}

		rec.SetRecordVersion(current.RecordVersion() + 1)
		rec.Stamp(c.now())
		return translate(tx.Select("*").Updates(rec).Error)
	})
}

func (c *Collection[T]) CompareAndSwap(ctx context.Context, rec T) error {
	expected := rec.RecordVersion()
	rec.SetRecordVersion(expected + 1)
	rec.Stamp(c.now())

	res := c.db.WithContext(ctx).Model(rec).
		Where("version = ?", expected).
		Select("*").
		Updates(rec)
	if res.Error != nil {
		rec.SetRecordVersion(expected)
		return translate(res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	rec.SetRecordVersion(expected)
	var count int64
	if err := c.db.WithContext(ctx).Model(c.newRec()).Where("id = ?", rec.RecordID()).Count(&count).Error; err != nil {
		return translate(err)
	}
	if count == 0 {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	res := c.db.WithContext(ctx).Delete(c.newRec(), "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	default:
		return err
	}
}
