package models

import (
	"encoding/json"
	"time"
)

// JobEnvelope is the queue wire format shared by every transport.
type JobEnvelope struct {
	ID         string          `gorm:"size:36" json:"id"`
	JobName    string          `gorm:"size:50;index" json:"job_name"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Attempts   int             `json:"attempts"`
}

// QueuedJob is a pending envelope in the durable queue. A non-nil
// LeaseUntil in the future means a worker is processing it.
type QueuedJob struct {
	Base
	Envelope   JobEnvelope `gorm:"embedded;embeddedPrefix:job_" json:"envelope"`
	Sequence   int64       `gorm:"not null;index" json:"sequence"`
	Deliveries int         `gorm:"not null;default:0" json:"deliveries"`
	LeaseUntil *time.Time  `json:"lease_until"`
}

type DeadLetter struct {
	Base
	Envelope   JobEnvelope `gorm:"embedded;embeddedPrefix:job_" json:"envelope"`
	Attempts   int         `gorm:"not null" json:"attempts"`
	Reason     string      `gorm:"type:text;not null" json:"reason"`
	FailedAt   time.Time   `json:"failed_at"`
	RequeuedAt *time.Time  `json:"requeued_at"`
}

// Orphan records a stored artifact whose cleanup failed.
type Orphan struct {
	Base
	Locator  string `gorm:"type:text;not null" json:"locator"`
	Reason   string `gorm:"type:text" json:"reason"`
	Attempts int    `gorm:"not null;default:0" json:"attempts"`
}
