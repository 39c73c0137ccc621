package handlers

import (
	"errors"

	"lifetrack/internal/dto"
	"lifetrack/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *service.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Register godoc
// @Summary Register a new user
// @Description Register a patient or caregiver account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Registration request"
// @Success 201 {object} dto.AuthResponse
// @Failure 400 {object} dto.Response
// @Failure 409 {object} dto.Response
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	resp, err := h.authService.Register(c.Context(), &req)
	if err != nil {
		return handleError(c, h.logger, err, "Registration failed")
	}

	return respond(c, fiber.StatusCreated, "User registered successfully", resp)
}

// Login godoc
// @Summary Login user
// @Description Login with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login request"
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.Response
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	resp, err := h.authService.Login(c.Context(), &req)
	if err != nil {
		return handleError(c, h.logger, err, "Login failed")
	}

	return respond(c, fiber.StatusOK, "Login successful", resp)
}

// AdminLogin godoc
// @Summary Login administrator
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login request"
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.Response
// @Router /api/auth/admin-login [post]
func (h *AuthHandler) AdminLogin(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	resp, err := h.authService.AdminLogin(c.Context(), &req)
	if err != nil {
		return handleError(c, h.logger, err, "Login failed")
	}

	return respond(c, fiber.StatusOK, "Admin login successful", resp)
}

// RefreshToken godoc
// @Summary Refresh access token
// @Description Refresh access token using refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RefreshRequest true "Refresh token request"
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.Response
// @Router /api/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	resp, err := h.authService.RefreshToken(c.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return fail(c, fiber.StatusUnauthorized, "Invalid refresh token")
		}
		return handleError(c, h.logger, err, "Token refresh failed")
	}

	return respond(c, fiber.StatusOK, "", resp)
}

// Me godoc
// @Summary Current user profile
// @Tags auth
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.UserResponse
// @Failure 401 {object} dto.Response
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	user, err := h.authService.Me(c.Context(), actor)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to load profile")
	}

	return respond(c, fiber.StatusOK, "", user)
}

// UpdateProfile godoc
// @Summary Update the current user's profile
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.UpdateProfileRequest true "Profile fields"
// @Security Bearer
// @Success 200 {object} dto.UserResponse
// @Failure 400 {object} dto.Response
// @Router /api/auth/profile [put]
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req dto.UpdateProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.authService.UpdateProfile(c.Context(), actor, &req)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to update profile")
	}

	return respond(c, fiber.StatusOK, "Profile updated successfully", user)
}

// ChangePassword godoc
// @Summary Change the current user's password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.ChangePasswordRequest true "Passwords"
// @Security Bearer
// @Success 200 {object} dto.Response
// @Failure 400 {object} dto.Response
// @Router /api/auth/change-password [put]
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req dto.ChangePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.authService.ChangePassword(c.Context(), actor, &req); err != nil {
		return handleError(c, h.logger, err, "Failed to change password")
	}

	return respond(c, fiber.StatusOK, "Password changed successfully", nil)
}

// ListUsers godoc
// @Summary List all users
// @Tags users
// @Produce json
// @Param page query int false "Page" default(1)
// @Param limit query int false "Limit" default(10)
// @Security Bearer
// @Success 200 {object} dto.Response
// @Failure 403 {object} dto.Response
// @Router /api/auth/users [get]
func (h *AuthHandler) ListUsers(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	page := pageQuery(c)
	users, total, err := h.authService.ListUsers(c.Context(), actor, page)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to list users")
	}

	return respond(c, fiber.StatusOK, "", paged(dto.NewUserResponses(users), "users", page, total))
}

// ListPatients godoc
// @Summary List the caregiver's patients
// @Tags users
// @Produce json
// @Param page query int false "Page" default(1)
// @Param limit query int false "Limit" default(10)
// @Security Bearer
// @Success 200 {object} dto.Response
// @Router /api/caregiver/patients [get]
func (h *AuthHandler) ListPatients(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	page := pageQuery(c)
	patients, total, err := h.authService.ListPatients(c.Context(), actor, page)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to list patients")
	}

	return respond(c, fiber.StatusOK, "", paged(dto.NewUserResponses(patients), "patients", page, total))
}
