package models

import "time"

type Testimonial struct {
	Base
	UserID      string     `gorm:"size:36;not null;index" json:"user_id"`
	AuthorName  string     `gorm:"size:255;not null" json:"author_name"`
	Text        string     `gorm:"type:text" json:"text"`
	VideoURL    string     `gorm:"size:500" json:"video_url"`
	Moderation  string     `gorm:"size:20;not null;default:'pending';index" json:"moderation"`
	ModeratedAt *time.Time `json:"moderated_at"`
}
