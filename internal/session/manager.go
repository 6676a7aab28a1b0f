// Package session owns "who is logged in" for the console.
//
// The Manager is the only writer of the credential store and the only owner
// of the Identity. All mutation goes through Initialize, Login and Logout (plus
// Refresh for profile edits); everyone else reads a Snapshot.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/admin-console/internal/apiclient"
	"github.com/spec-kit/admin-console/internal/credential"
	"github.com/spec-kit/admin-console/internal/domain"
)

const defaultLoginFailure = "Login failed"

var (
	// ErrNotAuthenticated is returned by Refresh without an identity.
	ErrNotAuthenticated = errors.New("session is not authenticated")
	// ErrStale is returned when the session changed while a request was in flight.
	ErrStale = errors.New("session changed while request was in flight")
)

// Transport is the part of the API client the manager needs.
type Transport interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
}

// Signals is the unauthorized notification source.
type Signals interface {
	OnUnauthorized(fn func(context.Context)) (unsubscribe func())
}

// Manager is the single authority for the console session.
type Manager struct {
	store  credential.Store
	api    Transport
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	identity *domain.Identity
	// generation changes on every committed transition; results of requests
	// issued under an older generation are discarded.
	generation uint64
	settled    chan struct{}
	settleOnce sync.Once
}

// NewManager returns a manager in the Initializing state.
func NewManager(store credential.Store, api Transport, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:   store,
		api:     api,
		logger:  logger,
		state:   StateInitializing,
		settled: make(chan struct{}),
	}
}

// Listen wires Logout to the unauthorized notification. navigate, when not
// nil, receives the sign-in intent after each forced logout.
func (m *Manager) Listen(signals Signals, navigate func(Intent)) (unsubscribe func()) {
	return signals.OnUnauthorized(func(ctx context.Context) {
		if loginAttempt(ctx) {
			// The rejected credentials are the ones being submitted, not the
			// stored session.
			m.logger.Debug("ignoring unauthorized notification from login attempt")
			return
		}
		intent := m.Logout()
		if navigate != nil {
			navigate(intent)
		}
	})
}

// Initialize restores the session from a stored credential. Without a live
// credential no request is made. Any failure clears the credential and leaves
// the session Anonymous.
func (m *Manager) Initialize(ctx context.Context) State {
	m.mu.Lock()
	if m.state != StateInitializing {
		state := m.state
		m.mu.Unlock()
		return state
	}
	gen := m.generation
	m.mu.Unlock()

	if _, ok := m.store.Get(); !ok {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.generation == gen {
			m.commit(StateAnonymous, nil)
		}
		return m.state
	}

	var p profile
	err := m.api.Get(ctx, ProfilePath, &p)
	var identity *domain.Identity
	if err == nil {
		identity, err = p.identity()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		m.logger.Debug("discarding stale session restore")
		return m.state
	}
	if err != nil {
		m.logger.Info("session restore failed", zap.Error(err))
		m.store.Clear()
		m.commit(StateAnonymous, nil)
		return m.state
	}
	m.commit(StateAuthenticated, identity)
	m.logger.Info("session restored", zap.String("admin_id", identity.ID), zap.String("role", identity.Role))
	return m.state
}

// Login authenticates against the backend. On success the token is stored
// with a 12 hour lifetime and the caller is told to go to the landing route.
// On failure nothing changes, including a 401 answer from the backend.
func (m *Manager) Login(ctx context.Context, email, password string) LoginResult {
	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()

	ctx = context.WithValue(ctx, loginAttemptKey{}, true)

	var resp loginResponse
	if err := m.api.Post(ctx, LoginPath, credentials{Email: email, Password: password}, &resp); err != nil {
		return LoginResult{Message: failureMessage(err)}
	}
	identity, err := resp.identity()
	if err != nil || resp.Token == "" {
		m.logger.Warn("login response missing token or profile")
		return LoginResult{Message: defaultLoginFailure}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return LoginResult{Message: ErrStale.Error()}
	}
	m.store.Set(resp.Token, credential.SessionLifetime)
	m.commit(StateAuthenticated, identity)
	m.logger.Info("logged in", zap.String("admin_id", identity.ID), zap.String("role", identity.Role))
	return LoginResult{Success: true, Intent: Intent{Redirect: LandingRoute}}
}

// Logout clears the credential and identity. It is idempotent and is the
// handler bound to the unauthorized notification. The credential is cleared
// before the intent is returned.
func (m *Manager) Logout() Intent {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store.Clear()
	wasAuthenticated := m.state == StateAuthenticated
	m.commit(StateAnonymous, nil)
	if wasAuthenticated {
		m.logger.Info("logged out")
	}
	return Intent{Redirect: SignInRoute}
}

// Refresh re-fetches the profile of the current identity. A 401 is handled by
// the notification path; any other failure keeps the current identity.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateAuthenticated {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	gen := m.generation
	m.mu.Unlock()

	var p profile
	if err := m.api.Get(ctx, ProfilePath, &p); err != nil {
		return err
	}
	identity, err := p.identity()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen || m.state != StateAuthenticated {
		return ErrStale
	}
	m.commit(StateAuthenticated, identity)
	return nil
}

// UpdateProfile changes the display name and refreshes the identity.
func (m *Manager) UpdateProfile(ctx context.Context, displayName string) error {
	if m.Snapshot().State != StateAuthenticated {
		return ErrNotAuthenticated
	}
	if err := m.api.Put(ctx, ProfilePath, profileUpdate{Name: displayName}, nil); err != nil {
		return err
	}
	return m.Refresh(ctx)
}

// Snapshot returns the current read-only projection.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return project(m.state, m.identity)
}

// Wait blocks until the session leaves Initializing or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	select {
	case <-m.settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// commit must be called with mu held.
func (m *Manager) commit(state State, identity *domain.Identity) {
	m.state = state
	m.identity = identity
	m.generation++
	if identity != nil {
		if unknown := identity.Permissions.Unknown(); len(unknown) > 0 {
			m.logger.Debug("identity carries permissions no route requires",
				zap.String("admin_id", identity.ID), zap.Strings("permissions", unknown))
		}
	}
	if state != StateInitializing {
		m.settleOnce.Do(func() { close(m.settled) })
	}
}

type loginAttemptKey struct{}

func loginAttempt(ctx context.Context) bool {
	v, _ := ctx.Value(loginAttemptKey{}).(bool)
	return v
}

func failureMessage(err error) string {
	if msg := apiclient.MessageOf(err); msg != "" {
		return msg
	}
	return defaultLoginFailure
}
