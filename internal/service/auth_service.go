package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"lifetrack/internal/dto"
	"lifetrack/internal/models"
	"lifetrack/internal/repository"
	"lifetrack/pkg/auth"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthService struct {
	userRepo   UserRepository
	jwtManager *auth.JWTManager
	logger     *zap.Logger
}

func NewAuthService(userRepo UserRepository, jwtManager *auth.JWTManager, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		logger:     logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	email := normalizeEmail(req.Email)

	existingUser, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil && existingUser != nil:
		return nil, ErrUserExists
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	role := models.Role(req.Role)
	if req.Role == "" {
		role = models.RolePatient
	}
	if role == models.RoleAdmin {
		return nil, invalidInput("admin accounts cannot self-register")
	}

	var caregiverID *uuid.UUID
	if req.CaregiverID != "" {
		if role != models.RolePatient {
			return nil, invalidInput("only patients can be assigned a caregiver")
		}
		id, err := s.caregiverID(ctx, req.CaregiverID)
		if err != nil {
			return nil, err
		}
		caregiverID = &id
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &models.User{
		ID:          uuid.New(),
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Email:       email,
		Password:    hashedPassword,
		Phone:       req.Phone,
		Role:        role,
		CaregiverID: caregiverID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()), zap.String("role", string(role)))

	return s.issueTokens(user)
}

func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.authenticate(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.issueTokens(user)
}

// AdminLogin is Login restricted to admin accounts.
func (s *AuthService) AdminLogin(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.authenticate(ctx, req)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	return s.issueTokens(user)
}

func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*dto.AuthResponse, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	return s.issueTokens(user)
}

func (s *AuthService) Me(ctx context.Context, actor Actor) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, repoError(err)
	}
	resp := dto.NewUserResponse(user)
	return &resp, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, actor Actor, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, repoError(err)
	}

	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.CaregiverID != nil {
		if user.Role != models.RolePatient {
			return nil, invalidInput("only patients can be assigned a caregiver")
		}
		id, err := s.caregiverID(ctx, *req.CaregiverID)
		if err != nil {
			return nil, err
		}
		user.CaregiverID = &id
	}
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, repoError(err)
	}

	resp := dto.NewUserResponse(user)
	return &resp, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, actor Actor, req *dto.ChangePasswordRequest) error {
	user, err := s.userRepo.GetByID(ctx, actor.ID)
	if err != nil {
		return repoError(err)
	}

	if !auth.CheckPasswordHash(req.CurrentPassword, user.Password) {
		return invalidInput("Current password is incorrect")
	}

	hashedPassword, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	user.Password = hashedPassword
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return repoError(err)
	}

	s.logger.Info("Password changed", zap.String("user_id", user.ID.String()))
	return nil
}

// ListUsers returns every account, admins only.
func (s *AuthService) ListUsers(ctx context.Context, actor Actor, page repository.Page) ([]*models.User, int, error) {
	if actor.Role != models.RoleAdmin {
		return nil, 0, ErrForbidden
	}
	return s.userRepo.List(ctx, repository.UserFilter{Page: page})
}

// ListPatients returns the patients assigned to a caregiver.
func (s *AuthService) ListPatients(ctx context.Context, actor Actor, page repository.Page) ([]*models.User, int, error) {
	if !actor.IsStaff() {
		return nil, 0, ErrForbidden
	}
	role := models.RolePatient
	filter := repository.UserFilter{Role: &role, Page: page}
	if actor.Role == models.RoleCaregiver {
		filter.CaregiverID = &actor.ID
	}
	return s.userRepo.List(ctx, filter)
}

// SeedAdmin creates the admin account unless the email is already taken.
// It reports whether a new account was created.
func (s *AuthService) SeedAdmin(ctx context.Context, email, password, firstName, lastName string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return false, invalidInput("admin email and password are required")
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}

	now := time.Now()
	admin := &models.User{
		ID:        uuid.New(),
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Password:  hashedPassword,
		Role:      models.RoleAdmin,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}

	s.logger.Info("Admin account created", zap.String("email", email))
	return true, nil
}

func (s *AuthService) authenticate(ctx context.Context, req *dto.LoginRequest) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPasswordHash(req.Password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Warn("Failed to record last login", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	return user, nil
}

func (s *AuthService) caregiverID(ctx context.Context, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalidInput("caregiverId must be a valid id")
	}
	caregiver, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return uuid.Nil, invalidInput("caregiver not found")
		}
		return uuid.Nil, err
	}
	if caregiver.Role != models.RoleCaregiver {
		return uuid.Nil, invalidInput("caregiverId does not refer to a caregiver")
	}
	return id, nil
}

func (s *AuthService) issueTokens(user *models.User) (*dto.AuthResponse, error) {
	accessToken, err := s.jwtManager.GenerateToken(user.ID.String(), user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID.String())
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.jwtManager.GetTokenDuration().Seconds()),
		User:         dto.NewUserResponse(user),
	}, nil
}
