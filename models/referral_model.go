package models

import "time"

// ReferralCode is a single-use token owned by a user. Once Used is true it
// never flips back; only the audit fields are written afterwards.
type ReferralCode struct {
	Base
	OwnerID          string     `gorm:"size:36;not null;index" json:"owner_id"`
	Code             string     `gorm:"size:32;not null;unique" json:"code"`
	Used             bool       `gorm:"not null;default:false" json:"used"`
	UsedByEstimateID *string    `gorm:"size:36" json:"used_by_estimate_id"`
	UsedAt           *time.Time `json:"used_at"`
}
