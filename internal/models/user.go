package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Permission flags carried in the token's permissions map.
const (
	PermAdmin          = "admin"
	PermTimeTable      = "timeTable"
	PermTimeTableAdmin = "timeTableAdmin"
)

type Permissions map[string]bool

func (p Permissions) Has(name string) bool {
	return p[name]
}

// AllPermissions is granted to the first registered user.
func AllPermissions() Permissions {
	return Permissions{
		PermAdmin:          true,
		PermTimeTable:      true,
		PermTimeTableAdmin: true,
	}
}

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"size:60;not null" json:"name"`
	Email        string         `gorm:"size:60;uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"size:64;not null" json:"-"`
	Permissions  Permissions    `gorm:"type:text;serializer:json" json:"permissions"`
	IsActive     bool           `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) IsAdmin() bool {
	return u.Permissions.Has(PermAdmin)
}

func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}
