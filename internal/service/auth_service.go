package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/admin-console/internal/auth"
	"github.com/spec-kit/admin-console/internal/config"
	"github.com/spec-kit/admin-console/internal/domain"
	"github.com/spec-kit/admin-console/internal/events"
	"github.com/spec-kit/admin-console/internal/repository"
	apperrors "github.com/spec-kit/admin-console/pkg/util/errorutil"
)

// LoginFailedMessage is the only message a failed sign-in ever reveals.
const LoginFailedMessage = "Login failed"

// AuthService coordinates operator sign-in, profiles and account management.
type AuthService struct {
	admins      repository.AdminRepository
	revocations auth.Revocations
	dispatcher  events.Dispatcher
	tokenMgr    *auth.TokenManager
	bcryptCost  int
	logger      *zap.Logger
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	AdminRepo   repository.AdminRepository
	Revocations auth.Revocations
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	if deps.Revocations == nil {
		deps.Revocations = auth.NewMemoryRevocations()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &AuthService{
		admins:      deps.AdminRepo,
		revocations: deps.Revocations,
		dispatcher:  deps.Dispatcher,
		tokenMgr:    auth.NewTokenManager(cfg.JWTSecret, cfg.TokenLifetime()),
		bcryptCost:  cfg.BcryptCost,
		logger:      deps.Logger,
	}
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Revocations exposes the revocation list for middleware wiring.
func (s *AuthService) Revocations() auth.Revocations {
	return s.revocations
}

// Login authenticates an operator and issues a bearer token. Unknown
// accounts, wrong passwords and disabled accounts fail identically.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*domain.AdminUser, string, domain.Token, error) {
	email = strings.TrimSpace(email)
	fail := func(reason string) (*domain.AdminUser, string, domain.Token, error) {
		s.publish(ctx, events.New(events.EventLoginFailed, "", events.LoginPayload{Email: email, IP: ip, Reason: reason}))
		return nil, "", domain.Token{}, apperrors.NewUnauthorized(LoginFailedMessage)
	}

	if email == "" || password == "" {
		return fail("missing credentials")
	}
	admin, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fail("unknown account")
		}
		return nil, "", domain.Token{}, err
	}
	if err := auth.ComparePassword(admin.PasswordHash, password); err != nil {
		return fail("invalid password")
	}
	if admin.Status != domain.AdminStatusActive {
		return fail("account disabled")
	}
	if auth.NeedsRehash(admin.PasswordHash, s.bcryptCost) {
		s.rehash(ctx, admin, password)
	}

	raw, token, err := s.tokenMgr.GenerateToken(admin)
	if err != nil {
		return nil, "", domain.Token{}, err
	}
	s.publish(ctx, events.New(events.EventLoginSucceeded, admin.ID, events.LoginPayload{Email: admin.Email, IP: ip}))
	return admin, raw, token, nil
}

// rehash upgrades a stored hash to the configured cost. Failures only cost
// the upgrade, never the sign-in.
func (s *AuthService) rehash(ctx context.Context, admin *domain.AdminUser, password string) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		s.logger.Warn("password rehash failed", zap.String("admin_id", admin.ID), zap.Error(err))
		return
	}
	updated := *admin
	updated.PasswordHash = hash
	if err := s.admins.Update(ctx, &updated); err != nil {
		s.logger.Warn("password rehash not saved", zap.String("admin_id", admin.ID), zap.Error(err))
		return
	}
	*admin = updated
	s.logger.Debug("password hash upgraded", zap.String("admin_id", admin.ID))
}

// Profile loads the operator behind a token.
func (s *AuthService) Profile(ctx context.Context, adminID string) (*domain.AdminUser, error) {
	admin, err := s.admins.GetByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("admin", map[string]any{"id": adminID})
		}
		return nil, err
	}
	return admin, nil
}

// UpdateProfile changes the operator's display name.
func (s *AuthService) UpdateProfile(ctx context.Context, adminID, name string) (*domain.AdminUser, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	admin, err := s.Profile(ctx, adminID)
	if err != nil {
		return nil, err
	}
	admin.Name = name
	if err := s.admins.Update(ctx, admin); err != nil {
		return nil, apperrors.MapError(err)
	}
	return admin, nil
}

// Logout revokes the token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, token domain.Token) error {
	if err := s.revocations.Revoke(ctx, token.ID, token.ExpiresAt); err != nil {
		return apperrors.NewInternalError(err)
	}
	s.publish(ctx, events.New(events.EventLogout, token.SubjectID, nil))
	return nil
}

// CreateAdminInput carries the fields of a new operator account.
type CreateAdminInput struct {
	Name        string
	Email       string
	Password    string
	Role        domain.AdminRole
	Permissions []string
}

// CreateAdmin provisions an operator account.
func (s *AuthService) CreateAdmin(ctx context.Context, in CreateAdminInput) (*domain.AdminUser, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)

	details := map[string]any{}
	if in.Name == "" {
		details["name"] = "required"
	}
	if !strings.Contains(in.Email, "@") {
		details["email"] = "must be an email address"
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		details["password"] = err.Error()
	}
	if !domain.ValidRole(in.Role) {
		details["role"] = "unknown role"
	}
	permissions := make([]domain.Capability, 0, len(in.Permissions))
	for _, raw := range in.Permissions {
		tag, ok := domain.ParseCapability(raw)
		if !ok {
			details["permissions"] = "unknown capability " + raw
			break
		}
		permissions = append(permissions, tag)
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid admin", details)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	admin := &domain.AdminUser{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Permissions:  permissions,
		Status:       domain.AdminStatusActive,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": in.Email})
		}
		return nil, err
	}
	return admin, nil
}

// ListAdmins returns every operator account.
func (s *AuthService) ListAdmins(ctx context.Context) ([]*domain.AdminUser, error) {
	return s.admins.List(ctx)
}

// EnsureBootstrapAdmin creates the first superadmin when its email is not
// registered yet. Without a password nothing is created.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, cfg config.AuthConfig) error {
	if cfg.BootstrapAdminPassword == "" {
		s.logger.Warn("AUTH_BOOTSTRAP_ADMIN_PASSWORD not set; skipping bootstrap admin")
		return nil
	}
	if _, err := s.admins.GetByEmail(ctx, cfg.BootstrapAdminEmail); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	admin, err := s.CreateAdmin(ctx, CreateAdminInput{
		Name:     cfg.BootstrapAdminName,
		Email:    cfg.BootstrapAdminEmail,
		Password: cfg.BootstrapAdminPassword,
		Role:     domain.RoleSuperAdmin,
	})
	if err != nil {
		return err
	}
	s.logger.Info("bootstrap admin created", zap.String("admin_id", admin.ID), zap.String("email", admin.Email))
	return nil
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
