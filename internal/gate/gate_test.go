package gate

import (
	"testing"

	"github.com/spec-kit/admin-console/internal/domain"
	"github.com/spec-kit/admin-console/internal/session"
)

func snapshot(state session.State, tags ...domain.Capability) session.Snapshot {
	snap := session.Snapshot{State: state, Role: domain.GuestRole, Permissions: domain.PermissionSet{}}
	if state == session.StateAuthenticated {
		snap.Identity = &domain.Identity{ID: "adm-1", Role: "operator", Permissions: domain.NewPermissionSet(tags...)}
		snap.Role = "operator"
		snap.Permissions = domain.NewPermissionSet(tags...)
	}
	return snap
}

func TestAdmitDecisionTable(t *testing.T) {
	held := []domain.Capability{domain.CapabilityDashboard, domain.CapabilityUsers}
	required := append([]domain.Capability{""}, domain.Capabilities()...)

	for _, state := range []session.State{session.StateInitializing, session.StateAnonymous, session.StateAuthenticated} {
		snap := snapshot(state, held...)
		for _, tag := range required {
			t.Run(state.String()+"/"+string(tag), func(t *testing.T) {
				got := Admit(snap, tag, "/somewhere")

				var want Decision
				switch {
				case state == session.StateInitializing:
					want = Decision{Outcome: OutcomeSuspend}
				case state == session.StateAnonymous:
					want = Decision{Outcome: OutcomeSignIn, Redirect: "/login?redirect=%2Fsomewhere"}
				case tag == "" || snap.Permissions.Has(tag):
					want = Decision{Outcome: OutcomeRender}
				default:
					want = Decision{Outcome: OutcomeForbidden, Redirect: ForbiddenRoute}
				}
				if got != want {
					t.Fatalf("Admit = %+v, want %+v", got, want)
				}
				if again := Admit(snap, tag, "/somewhere"); again != got {
					t.Fatalf("Admit is not deterministic: %+v then %+v", got, again)
				}
			})
		}
	}
}

func TestAdmitIgnoresUnknownTagsInPermissionSet(t *testing.T) {
	snap := snapshot(session.StateAuthenticated, "finance:read")
	if got := Admit(snap, domain.CapabilityFinance, "/finance"); got.Outcome != OutcomeForbidden {
		t.Fatalf("expected forbidden, got %s", got.Outcome)
	}
}

func TestSignInLocation(t *testing.T) {
	cases := map[string]string{
		"":                     "/login",
		"/login":               "/login",
		"/users":               "/login?redirect=%2Fusers",
		"/finance?tab=payouts": "/login?redirect=%2Ffinance%3Ftab%3Dpayouts",
	}
	for in, want := range cases {
		if got := SignInLocation(in); got != want {
			t.Errorf("SignInLocation(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReturnLocation(t *testing.T) {
	cases := map[string]string{
		"/login?redirect=%2Fusers":                   "/users",
		"/login?redirect=%2Ffinance%3Ftab%3Dpayouts": "/finance?tab=payouts",
		"/login": "/",
		"/login?redirect=https%3A%2F%2Fevil.example": "/",
		"/login?redirect=%2F%2Fevil.example":         "/",
	}
	for in, want := range cases {
		if got := ReturnLocation(in); got != want {
			t.Errorf("ReturnLocation(%q) = %q, want %q", in, got, want)
		}
	}
}
