package dto

import (
	"github.com/spec-kit/leadcrm/internal/domain"
)

// LoginRequest payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest payload for POST /auth/register.
type RegisterRequest struct {
	Name       string      `json:"name" validate:"required"`
	Email      string      `json:"email" validate:"required,email"`
	Password   string      `json:"password" validate:"required,min=6"`
	Role       domain.Role `json:"role" validate:"required,oneof=admin agent"`
	Phone      string      `json:"phone,omitempty"`
	Department string      `json:"department,omitempty"`
}

// ToDomain converts the request.
func (r RegisterRequest) ToDomain() domain.RegisterData {
	return domain.RegisterData{
		Name:       r.Name,
		Email:      r.Email,
		Password:   r.Password,
		Role:       r.Role,
		Phone:      r.Phone,
		Department: r.Department,
	}
}

// ChangePasswordRequest payload for POST /auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

// ProfileUpdateRequest payload for PUT /auth/profile.
type ProfileUpdateRequest struct {
	Name        *string                 `json:"name,omitempty" validate:"omitempty,min=1"`
	Phone       *string                 `json:"phone,omitempty"`
	Department  *string                 `json:"department,omitempty"`
	Avatar      *string                 `json:"avatar,omitempty" validate:"omitempty,url"`
	Preferences *domain.UserPreferences `json:"preferences,omitempty"`
}

// ToDomain converts the request.
func (r ProfileUpdateRequest) ToDomain() domain.ProfileUpdate {
	return domain.ProfileUpdate{
		Name:        r.Name,
		Phone:       r.Phone,
		Department:  r.Department,
		Avatar:      r.Avatar,
		Preferences: r.Preferences,
	}
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	Token   string       `json:"token"`
	User    *domain.User `json:"user"`
	Message string       `json:"message,omitempty"`
}

// UserResponse wraps a single user.
type UserResponse struct {
	User    *domain.User `json:"user"`
	Message string       `json:"message,omitempty"`
}

// UsersResponse wraps a user listing.
type UsersResponse struct {
	Users []domain.User `json:"users"`
}

// AuthURLResponse carries the Google consent URL.
type AuthURLResponse struct {
	AuthURL string `json:"authUrl"`
}

// GoogleCallbackQuery is the query string of the Google OAuth callback.
type GoogleCallbackQuery struct {
	State string `query:"state" validate:"required"`
	Code  string `query:"code"`
	Email string `query:"email" validate:"omitempty,email"`
	Name  string `query:"name"`
}

// MessageResponse is a bare acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}
