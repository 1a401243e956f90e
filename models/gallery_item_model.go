package models

import "time"

const (
	MediaKindImage = "image"
	MediaKindVideo = "video"
)

const (
	ModerationPending  = "pending"
	ModerationApproved = "approved"
	ModerationRejected = "rejected"
)

type GalleryItem struct {
	Base
	Kind              string     `gorm:"size:10;not null" json:"kind"`
	Title             string     `gorm:"size:255" json:"title"`
	Description       string     `gorm:"type:text" json:"description"`
	OriginalLocator   string     `gorm:"type:text;not null" json:"original_locator"`
	TranscodedLocator string     `gorm:"type:text" json:"transcoded_locator"`
	ThumbnailLocator  string     `gorm:"type:text;not null" json:"thumbnail_locator"`
	DurationSeconds   float64    `json:"duration_seconds"`
	Moderation        string     `gorm:"size:20;not null;default:'pending';index" json:"moderation"`
	ModeratedAt       *time.Time `json:"moderated_at"`
	UploaderID        string     `gorm:"size:36;not null;index" json:"uploader_id"`
}
