package session

import (
	"errors"
	"strings"

	"github.com/spec-kit/admin-console/internal/domain"
)

// API paths relative to the client's base URL.
const (
	LoginPath   = "/auth/login"
	ProfilePath = "/auth/profile"
)

var errMalformedProfile = errors.New("malformed profile response")

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profile struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// loginResponse is the token plus the user record fields, flattened.
type loginResponse struct {
	Token string `json:"token"`
	profile
}

type profileUpdate struct {
	Name string `json:"name"`
}

func (p profile) identity() (*domain.Identity, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, errMalformedProfile
	}
	role := p.Role
	if role == "" {
		role = domain.GuestRole
	}
	return &domain.Identity{
		ID:          p.ID,
		DisplayName: p.Name,
		Email:       p.Email,
		Role:        role,
		Permissions: domain.PermissionSetFromStrings(p.Permissions),
	}, nil
}
