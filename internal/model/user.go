package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// User roles
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// User is a staff or admin account. It is not linked to a Contact.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;type:text"`
	Email        string    `json:"email" gorm:"type:text;uniqueIndex" validate:"required,email"`
	PasswordHash string    `json:"-" gorm:"column:password_hash;type:text"`
	FullName     string    `json:"full_name,omitempty" gorm:"type:text"`
	Role         string    `json:"role" gorm:"type:text;default:staff" validate:"oneof=admin staff"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM, respecting the Namer.
func (User) TableName(namer schema.Namer) string {
	return namer.TableName("users")
}

// PatientLogin is the portal credential of exactly one Contact.
type PatientLogin struct {
	ID           string     `json:"id" gorm:"primaryKey;type:text"`
	ContactID    string     `json:"contact_id" gorm:"column:contact_id;type:text;uniqueIndex" validate:"required"`
	Email        string     `json:"email" gorm:"type:text;uniqueIndex" validate:"required,email"`
	PasswordHash string     `json:"-" gorm:"column:password_hash;type:text"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TableName specifies the table name for GORM, respecting the Namer.
func (PatientLogin) TableName(namer schema.Namer) string {
	return namer.TableName("patient_logins")
}
