package models

import (
	"time"

	"gorm.io/datatypes"
)

// User roles recognised by the support subsystem.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the minimal account projection the support subsystem needs:
// display data for message authors, the role for broadcast-group routing and
// the device tokens for push delivery.
type User struct {
	ID         uint                         `gorm:"primaryKey" json:"id"`
	Name       string                       `gorm:"size:120;index" json:"name"`
	Avatar     string                       `gorm:"size:512" json:"avatar"`
	Role       string                       `gorm:"size:32;not null;default:user" json:"role"`
	PushTokens datatypes.JSONSlice[string]  `gorm:"type:json" json:"-"`
	CreatedAt  time.Time                    `json:"created_at"`
	UpdatedAt  time.Time                    `json:"updated_at"`
}
