package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/admin-console/internal/domain"
)

type memoryAdminRepository struct {
	mu     sync.RWMutex
	admins map[string]domain.AdminUser
	now    func() time.Time
}

// NewMemoryAdminRepository builds an in-memory admin store used when no
// database is configured and in tests.
func NewMemoryAdminRepository() AdminRepository {
	return &memoryAdminRepository{
		admins: make(map[string]domain.AdminUser),
		now:    time.Now,
	}
}

func (r *memoryAdminRepository) Create(_ context.Context, admin *domain.AdminUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailTaken(admin.Email, "") {
		return ErrEmailTaken
	}
	now := r.now().UTC()
	admin.ID = uuid.NewString()
	admin.CreatedAt = now
	admin.UpdatedAt = now
	r.admins[admin.ID] = copyAdmin(admin)
	return nil
}

func (r *memoryAdminRepository) Update(_ context.Context, admin *domain.AdminUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.admins[admin.ID]; !ok {
		return pgx.ErrNoRows
	}
	if r.emailTaken(admin.Email, admin.ID) {
		return ErrEmailTaken
	}
	admin.UpdatedAt = r.now().UTC()
	r.admins[admin.ID] = copyAdmin(admin)
	return nil
}

func (r *memoryAdminRepository) GetByID(_ context.Context, id string) (*domain.AdminUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	admin, ok := r.admins[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := copyAdmin(&admin)
	return &out, nil
}

func (r *memoryAdminRepository) GetByEmail(_ context.Context, email string) (*domain.AdminUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, admin := range r.admins {
		if sameEmail(admin.Email, email) {
			out := copyAdmin(&admin)
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memoryAdminRepository) List(_ context.Context) ([]*domain.AdminUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	admins := make([]*domain.AdminUser, 0, len(r.admins))
	for _, admin := range r.admins {
		out := copyAdmin(&admin)
		admins = append(admins, &out)
	}
	sort.Slice(admins, func(i, j int) bool {
		if admins[i].CreatedAt.Equal(admins[j].CreatedAt) {
			return admins[i].Email < admins[j].Email
		}
		return admins[i].CreatedAt.Before(admins[j].CreatedAt)
	})
	return admins, nil
}

func (r *memoryAdminRepository) emailTaken(email, exceptID string) bool {
	for id, admin := range r.admins {
		if id != exceptID && sameEmail(admin.Email, email) {
			return true
		}
	}
	return false
}

func sameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func copyAdmin(admin *domain.AdminUser) domain.AdminUser {
	out := *admin
	out.Permissions = append([]domain.Capability(nil), admin.Permissions...)
	return out
}
