package domain

// GuestRole is reported whenever no identity is present.
const GuestRole = "guest"

// Identity is the authenticated operator as seen by the console. It is always
// derived from a profile fetch and never persisted on the client.
type Identity struct {
	ID          string
	DisplayName string
	Email       string
	Role        string
	Permissions PermissionSet
}

// Clone returns a deep copy so callers can never mutate session state.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	out := *i
	out.Permissions = i.Permissions.Clone()
	return &out
}
