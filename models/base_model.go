package models

import "time"

// Base carries the identity and optimistic-concurrency fields every stored
// record shares. Version starts at 1 and is bumped on each successful write.
type Base struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Version   int64     `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Base) RecordID() string { return b.ID }

func (b *Base) RecordVersion() int64 { return b.Version }

func (b *Base) SetRecordVersion(v int64) { b.Version = v }

// Stamp sets CreatedAt on first write and UpdatedAt on every write.
func (b *Base) Stamp(now time.Time) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}
