package domain

import (
	"sort"
	"strings"
)

// Capability identifies a protected functional area of the console.
type Capability string

const (
	CapabilityDashboard  Capability = "dashboard"
	CapabilityUsers      Capability = "users"
	CapabilityFinance    Capability = "finance"
	CapabilityBets       Capability = "bets"
	CapabilityVIP        Capability = "vip"
	CapabilityRisk       Capability = "risk"
	CapabilityPromotions Capability = "promotions"
	CapabilityReports    Capability = "reports"
	CapabilitySystem     Capability = "system"
)

var vocabulary = []Capability{
	CapabilityDashboard,
	CapabilityUsers,
	CapabilityFinance,
	CapabilityBets,
	CapabilityVIP,
	CapabilityRisk,
	CapabilityPromotions,
	CapabilityReports,
	CapabilitySystem,
}

// Capabilities returns the fixed capability vocabulary in menu order.
func Capabilities() []Capability {
	return append([]Capability(nil), vocabulary...)
}

// ParseCapability validates a tag against the vocabulary.
func ParseCapability(raw string) (Capability, bool) {
	tag := normalizeCapability(raw)
	if !tag.Known() {
		return "", false
	}
	return tag, true
}

// Known reports whether tag belongs to the vocabulary.
func (c Capability) Known() bool {
	for _, known := range vocabulary {
		if known == c {
			return true
		}
	}
	return false
}

func normalizeCapability(raw string) Capability {
	return Capability(strings.ToLower(strings.TrimSpace(raw)))
}

// PermissionSet is the set of capabilities granted to an identity. The zero
// value is an empty set and is safe to query.
type PermissionSet map[Capability]struct{}

// NewPermissionSet builds a set from the given capabilities.
func NewPermissionSet(tags ...Capability) PermissionSet {
	set := make(PermissionSet, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		set[tag] = struct{}{}
	}
	return set
}

// PermissionSetFromStrings builds a set from raw tags as they arrive on the
// wire, normalised the same way as ParseCapability. Tags outside the
// vocabulary are kept; they simply never match a declared route.
func PermissionSetFromStrings(tags []string) PermissionSet {
	set := make(PermissionSet, len(tags))
	for _, raw := range tags {
		tag := normalizeCapability(raw)
		if tag == "" {
			continue
		}
		set[tag] = struct{}{}
	}
	return set
}

// Unknown lists the members outside the vocabulary, sorted.
func (p PermissionSet) Unknown() []string {
	var out []string
	for tag := range p {
		if !tag.Known() {
			out = append(out, string(tag))
		}
	}
	sort.Strings(out)
	return out
}

// Has reports whether tag is an element of the set.
func (p PermissionSet) Has(tag Capability) bool {
	_, ok := p[tag]
	return ok
}

// Clone returns an independent copy.
func (p PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(p))
	for tag := range p {
		out[tag] = struct{}{}
	}
	return out
}

// Strings returns the tags sorted alphabetically.
func (p PermissionSet) Strings() []string {
	out := make([]string, 0, len(p))
	for tag := range p {
		out = append(out, string(tag))
	}
	sort.Strings(out)
	return out
}
