package gate

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/admin-console/internal/domain"
	"github.com/spec-kit/admin-console/internal/session"
)

// Route declares a console view and the capability it requires.
type Route struct {
	Path       string            `yaml:"path"`
	Title      string            `yaml:"title"`
	Capability domain.Capability `yaml:"capability,omitempty"`
	// Public routes (sign-in, forbidden) bypass admission entirely.
	Public bool `yaml:"public,omitempty"`
}

// notFound is resolved for unknown locations: any authenticated operator may
// see it.
var notFound = Route{Path: "/404", Title: "Not found"}

// DefaultRoutes returns the built-in console route table.
func DefaultRoutes() []Route {
	return []Route{
		{Path: session.LandingRoute, Title: "Dashboard", Capability: domain.CapabilityDashboard},
		{Path: "/users", Title: "Players", Capability: domain.CapabilityUsers},
		{Path: "/finance", Title: "Finance", Capability: domain.CapabilityFinance},
		{Path: "/bets", Title: "Bets", Capability: domain.CapabilityBets},
		{Path: "/vip", Title: "VIP tiers", Capability: domain.CapabilityVIP},
		{Path: "/risk", Title: "Risk rules", Capability: domain.CapabilityRisk},
		{Path: "/promotions", Title: "Promotions", Capability: domain.CapabilityPromotions},
		{Path: "/reports", Title: "Reports", Capability: domain.CapabilityReports},
		{Path: "/system", Title: "System settings", Capability: domain.CapabilitySystem},
		{Path: "/profile", Title: "My profile"},
		{Path: session.SignInRoute, Title: "Sign in", Public: true},
		{Path: ForbiddenRoute, Title: "Forbidden", Public: true},
	}
}

type manifest struct {
	Routes []Route `yaml:"routes"`
}

// LoadRoutes reads a YAML route manifest of the form
//
//	routes:
//	  - path: /finance
//	    title: Finance
//	    capability: finance
func LoadRoutes(path string) ([]Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse route manifest %s: %w", path, err)
	}
	if len(m.Routes) == 0 {
		return nil, fmt.Errorf("route manifest %s declares no routes", path)
	}
	return m.Routes, nil
}

// Router resolves locations to routes and applies Admit.
type Router struct {
	routes []Route
}

// NewRouter validates the table: absolute unique paths and capabilities from
// the fixed vocabulary.
func NewRouter(routes []Route) (*Router, error) {
	seen := make(map[string]struct{}, len(routes))
	table := make([]Route, 0, len(routes))
	for _, r := range routes {
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("route %q: path must start with /", r.Path)
		}
		if r.Path != "/" {
			r.Path = strings.TrimRight(r.Path, "/")
		}
		if _, dup := seen[r.Path]; dup {
			return nil, fmt.Errorf("route %q declared twice", r.Path)
		}
		seen[r.Path] = struct{}{}
		if r.Capability != "" {
			tag, ok := domain.ParseCapability(string(r.Capability))
			if !ok {
				return nil, fmt.Errorf("route %q: unknown capability %q", r.Path, r.Capability)
			}
			r.Capability = tag
		}
		table = append(table, r)
	}
	return &Router{routes: table}, nil
}

// Routes returns the table in declaration order.
func (r *Router) Routes() []Route {
	return append([]Route(nil), r.routes...)
}

// Resolve finds the most specific route for location. "/" only matches
// itself; other routes also match their sub-paths.
func (r *Router) Resolve(location string) (Route, bool) {
	path := location
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		path = "/"
	}

	candidates := make([]Route, 0, 1)
	for _, route := range r.routes {
		if path == route.Path || (route.Path != "/" && strings.HasPrefix(path, route.Path+"/")) {
			candidates = append(candidates, route)
		}
	}
	if len(candidates) == 0 {
		return notFound, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].Path) > len(candidates[j].Path)
	})
	return candidates[0], true
}

// Navigation is the result of Navigate.
type Navigation struct {
	Route    Route
	Found    bool
	Decision Decision
}

// Navigate resolves location and decides admission against snap.
func (r *Router) Navigate(snap session.Snapshot, location string) Navigation {
	route, found := r.Resolve(location)
	if route.Public {
		return Navigation{Route: route, Found: found, Decision: Decision{Outcome: OutcomeRender}}
	}
	return Navigation{Route: route, Found: found, Decision: Admit(snap, route.Capability, location)}
}
