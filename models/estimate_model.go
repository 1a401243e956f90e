package models

import "time"

const (
	EstimateStatusNew       = "new"
	EstimateStatusContacted = "contacted"
	EstimateStatusClosed    = "closed"
)

type Address struct {
	Street string `gorm:"size:255" json:"street"`
	City   string `gorm:"size:120" json:"city"`
	State  string `gorm:"size:60" json:"state"`
	Postal string `gorm:"size:20" json:"postal"`
}

type Estimate struct {
	Base
	UserID        *string `gorm:"size:36;index" json:"user_id"`
	FullName      string  `gorm:"size:255;not null" json:"full_name"`
	Email         string  `gorm:"size:255;not null;index" json:"email"`
	Phone         string  `gorm:"size:50" json:"phone"`
	Address       Address `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	Budget        string  `gorm:"size:100;not null" json:"budget"`
	BudgetMin     int64   `gorm:"not null;default:0" json:"budget_min"`
	BudgetMax     *int64  `json:"budget_max"`
	Scope         string  `gorm:"type:text;not null" json:"scope"`
	PreferredDate string  `gorm:"size:20" json:"preferred_date"`

	// ReferralCode is kept verbatim even when it matches nothing.
	ReferralCode    string  `gorm:"size:32;index" json:"referral_code"`
	ReferralMatched bool    `gorm:"not null;default:false" json:"referral_matched"`
	ReferralOwnerID *string `gorm:"size:36" json:"referral_owner_id"`
	DiscountPercent int     `gorm:"not null;default:0" json:"discount_percent"`

	Status          string     `gorm:"size:20;not null;default:'new'" json:"status"`
	StatusChangedBy string     `gorm:"size:255" json:"status_changed_by"`
	StatusChangedAt *time.Time `json:"status_changed_at"`
}
