package dto

import "lifetrack/internal/models"

type RegisterRequest struct {
	FirstName   string `json:"firstName" validate:"required,min=2,max=50"`
	LastName    string `json:"lastName" validate:"required,min=2,max=50"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,strongpassword"`
	Phone       string `json:"phone" validate:"omitempty,phone"`
	Role        string `json:"role" validate:"omitempty,oneof=patient caregiver"`
	CaregiverID string `json:"caregiverId" validate:"omitempty,uuid"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type UpdateProfileRequest struct {
	FirstName   *string `json:"firstName" validate:"omitempty,min=2,max=50"`
	LastName    *string `json:"lastName" validate:"omitempty,min=2,max=50"`
	Phone       *string `json:"phone" validate:"omitempty,phone"`
	CaregiverID *string `json:"caregiverId" validate:"omitempty,uuid"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,strongpassword"`
}

type AuthResponse struct {
	AccessToken  string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
	TokenType    string       `json:"tokenType"`
	ExpiresIn    int64        `json:"expiresIn"`
	User         UserResponse `json:"user"`
}

type UserResponse struct {
	ID          string  `json:"id"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone,omitempty"`
	Role        string  `json:"role"`
	CaregiverID *string `json:"caregiverId,omitempty"`
	IsActive    bool    `json:"isActive"`
	LastLogin   *string `json:"lastLogin,omitempty"`
	CreatedAt   string  `json:"createdAt"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:          u.ID.String(),
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		Phone:       u.Phone,
		Role:        string(u.Role),
		CaregiverID: idString(u.CaregiverID),
		IsActive:    u.IsActive,
		LastLogin:   formatTimePtr(u.LastLogin),
		CreatedAt:   formatTime(u.CreatedAt),
	}
}

func NewUserResponses(users []*models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserResponse(u))
	}
	return out
}
