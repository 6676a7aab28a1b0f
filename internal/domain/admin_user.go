package domain

import "time"

// AdminStatus represents lifecycle states for a console operator account.
type AdminStatus string

const (
	AdminStatusActive   AdminStatus = "ACTIVE"
	AdminStatusDisabled AdminStatus = "DISABLED"
)

// AdminRole names a permission preset.
type AdminRole string

const (
	RoleSuperAdmin AdminRole = "superadmin"
	RoleOperator   AdminRole = "operator"
	RoleFinance    AdminRole = "finance"
	RoleRisk       AdminRole = "risk"
)

var rolePresets = map[AdminRole][]Capability{
	RoleSuperAdmin: vocabulary,
	RoleOperator: {
		CapabilityDashboard,
		CapabilityUsers,
		CapabilityBets,
		CapabilityVIP,
		CapabilityPromotions,
		CapabilityReports,
	},
	RoleFinance: {CapabilityDashboard, CapabilityFinance, CapabilityReports},
	RoleRisk:    {CapabilityDashboard, CapabilityRisk, CapabilityBets, CapabilityReports},
}

// ValidRole reports whether role has a preset.
func ValidRole(role AdminRole) bool {
	_, ok := rolePresets[role]
	return ok
}

// AdminUser is the persisted console operator account.
type AdminUser struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         AdminRole
	// Permissions overrides the role preset when non-empty.
	Permissions []Capability
	Status      AdminStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EffectivePermissions resolves explicit permissions or the role preset.
func (u *AdminUser) EffectivePermissions() PermissionSet {
	if len(u.Permissions) > 0 {
		return NewPermissionSet(u.Permissions...)
	}
	return NewPermissionSet(rolePresets[u.Role]...)
}
