package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient   Role = "patient"
	RoleCaregiver Role = "caregiver"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleCaregiver, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID          uuid.UUID  `db:"id"`
	FirstName   string     `db:"first_name"`
	LastName    string     `db:"last_name"`
	Email       string     `db:"email"`
	Password    string     `db:"password"`
	Phone       string     `db:"phone"`
	Role        Role       `db:"role"`
	CaregiverID *uuid.UUID `db:"caregiver_id"`
	IsActive    bool       `db:"is_active"`
	LastLogin   *time.Time `db:"last_login"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
