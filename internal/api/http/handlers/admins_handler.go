package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/admin-console/internal/api/dto"
	"github.com/spec-kit/admin-console/internal/domain"
	"github.com/spec-kit/admin-console/internal/service"
)

// AdminsHandler exposes operator account management.
type AdminsHandler struct {
	auth *service.AuthService
}

// NewAdminsHandler constructs handler.
func NewAdminsHandler(authService *service.AuthService) *AdminsHandler {
	return &AdminsHandler{auth: authService}
}

// List handles GET /api/system/admins.
func (h *AdminsHandler) List(c *fiber.Ctx) error {
	admins, err := h.auth.ListAdmins(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]dto.AdminResponse, 0, len(admins))
	for _, admin := range admins {
		out = append(out, dto.NewAdminResponse(admin))
	}
	return c.JSON(fiber.Map{"data": out})
}

// Create handles POST /api/system/admins.
func (h *AdminsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateAdminRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	admin, err := h.auth.CreateAdmin(c.UserContext(), service.CreateAdminInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		Role:        domain.AdminRole(req.Role),
		Permissions: req.Permissions,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAdminResponse(admin)})
}
