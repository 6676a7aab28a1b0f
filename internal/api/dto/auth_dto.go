package dto

import (
	"time"

	"github.com/spec-kit/admin-console/internal/domain"
)

// LoginRequest payload for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdateRequest payload for PUT /api/auth/profile.
type ProfileUpdateRequest struct {
	Name string `json:"name"`
}

// CreateAdminRequest payload for POST /api/system/admins.
type CreateAdminRequest struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
}

// ProfileResponse is the operator record as the console sees it.
type ProfileResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// LoginResponse flattens the token next to the profile fields.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ProfileResponse
}

// AdminResponse is a row of GET /api/system/admins.
type AdminResponse struct {
	ProfileResponse
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProfileResponse maps an admin to its public profile.
func NewProfileResponse(admin *domain.AdminUser) ProfileResponse {
	return ProfileResponse{
		ID:          admin.ID,
		Name:        admin.Name,
		Email:       admin.Email,
		Role:        string(admin.Role),
		Permissions: admin.EffectivePermissions().Strings(),
	}
}

// NewAdminResponse maps an admin to its management view.
func NewAdminResponse(admin *domain.AdminUser) AdminResponse {
	return AdminResponse{
		ProfileResponse: NewProfileResponse(admin),
		Status:          string(admin.Status),
		CreatedAt:       admin.CreatedAt,
		UpdatedAt:       admin.UpdatedAt,
	}
}
