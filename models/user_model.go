package models

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type User struct {
	Base
	FullName     string `gorm:"size:255;not null" json:"full_name"`
	Email        string `gorm:"size:255;not null;unique" json:"email"`
	PasswordHash string `gorm:"not null" json:"password_hash"`
	Role         string `gorm:"size:20;not null;default:'customer'" json:"role"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
