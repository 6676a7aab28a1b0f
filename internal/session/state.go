package session

import "github.com/spec-kit/admin-console/internal/domain"

// State is the session lifecycle state.
type State int

const (
	StateInitializing State = iota
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Well-known navigation targets.
const (
	LandingRoute = "/"
	SignInRoute  = "/login"
)

// Intent tells the caller where to navigate. Navigation itself is left to the
// caller.
type Intent struct {
	Redirect string
}

// LoginResult is the outcome of Login. Failures are values, never errors.
type LoginResult struct {
	Success bool
	Message string
	Intent  Intent
}

// Snapshot is the read-only projection handed to the rest of the console.
// Role and Permissions are always populated: "guest" and the empty set when
// no identity is present.
type Snapshot struct {
	State       State
	Identity    *domain.Identity
	Role        string
	Permissions domain.PermissionSet
}

// Has reports whether the current identity holds tag.
func (s Snapshot) Has(tag domain.Capability) bool {
	return s.Permissions.Has(tag)
}

func project(state State, identity *domain.Identity) Snapshot {
	if identity == nil {
		return Snapshot{
			State:       state,
			Role:        domain.GuestRole,
			Permissions: domain.PermissionSet{},
		}
	}
	ident := identity.Clone()
	return Snapshot{
		State:       state,
		Identity:    ident,
		Role:        ident.Role,
		Permissions: ident.Permissions.Clone(),
	}
}
