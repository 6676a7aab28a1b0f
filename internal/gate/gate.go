// Package gate decides whether a navigation may render its target view.
package gate

import (
	"net/url"

	"github.com/spec-kit/admin-console/internal/domain"
	"github.com/spec-kit/admin-console/internal/session"
)

// ForbiddenRoute is where authenticated operators lacking a capability land.
const ForbiddenRoute = "/403"

// Outcome is the admission verdict.
type Outcome int

const (
	// OutcomeSuspend means the session is still initializing; render nothing.
	OutcomeSuspend Outcome = iota
	OutcomeRender
	OutcomeSignIn
	OutcomeForbidden
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuspend:
		return "suspend"
	case OutcomeRender:
		return "render"
	case OutcomeSignIn:
		return "redirect-sign-in"
	case OutcomeForbidden:
		return "redirect-forbidden"
	default:
		return "unknown"
	}
}

// Decision is an Outcome plus the redirect target, if any.
type Decision struct {
	Outcome  Outcome
	Redirect string
}

// Admit evaluates one navigation. It is deterministic and side-effect free.
//
//	Initializing                    -> suspend
//	Anonymous                       -> sign-in, carrying location for return
//	Authenticated, no tag           -> render
//	Authenticated, tag held         -> render
//	Authenticated, tag not held     -> forbidden
func Admit(snap session.Snapshot, required domain.Capability, location string) Decision {
	switch snap.State {
	case session.StateInitializing:
		return Decision{Outcome: OutcomeSuspend}
	case session.StateAuthenticated:
		if required == "" || snap.Permissions.Has(required) {
			return Decision{Outcome: OutcomeRender}
		}
		return Decision{Outcome: OutcomeForbidden, Redirect: ForbiddenRoute}
	default:
		return Decision{Outcome: OutcomeSignIn, Redirect: SignInLocation(location)}
	}
}

// SignInLocation builds the sign-in URL preserving the requested location.
func SignInLocation(location string) string {
	if location == "" || location == session.SignInRoute {
		return session.SignInRoute
	}
	return session.SignInRoute + "?redirect=" + url.QueryEscape(location)
}

// ReturnLocation extracts the preserved location from a sign-in URL, falling
// back to the landing route. Only same-origin paths are honoured.
func ReturnLocation(signIn string) string {
	u, err := url.Parse(signIn)
	if err != nil {
		return session.LandingRoute
	}
	target := u.Query().Get("redirect")
	if target == "" || target[0] != '/' || (len(target) > 1 && target[1] == '/') {
		return session.LandingRoute
	}
	return target
}
