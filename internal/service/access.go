package service

import (
	"fmt"

	"lifetrack/internal/models"

	"github.com/google/uuid"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   uuid.UUID
	Role models.Role
}

func NewActor(id string, role string) (Actor, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: malformed user id", ErrForbidden)
	}
	return Actor{ID: uid, Role: models.Role(role)}, nil
}

// IsStaff reports whether the actor may see every patient's records.
func (a Actor) IsStaff() bool {
	return a.Role == models.RoleCaregiver || a.Role == models.RoleAdmin
}

// CanAccess allows staff and the record's patient or uploader.
func (a Actor) CanAccess(patientID, uploadedBy uuid.UUID) bool {
	return a.IsStaff() || a.ID == patientID || a.ID == uploadedBy
}
