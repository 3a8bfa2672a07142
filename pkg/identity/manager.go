// Package identity resolves who the client is acting as.
//
// Manager is a small state machine over core.State: it restores a persisted
// session, negotiates with the delegated identity provider in production,
// and offers a fixed menu of simulated identities everywhere else.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/orbit/pkg/core"
)

// Phase is the state of the session manager.
type Phase string

const (
	PhaseUninitialized     Phase = "uninitialized"
	PhaseUnauthenticated   Phase = "unauthenticated"
	PhaseSelectingIdentity Phase = "selecting_identity"
	PhaseAuthenticated     Phase = "authenticated"
)

// Identity provider locations.
const (
	ProductionProviderURL = "https://identity.ic0.app"
	LocalProviderURL      = "http://127.0.0.1:4943/?canisterId=rdmx6-jaaaa-aaaaa-aaadq-cai"
)

// ProviderURL returns the default provider URL for env.
func ProviderURL(env core.Environment) string {
	if env.IsProduction() {
		return ProductionProviderURL
	}
	return LocalProviderURL
}

// Config configures a Manager.
type Config struct {
	Environment core.Environment
	// ProviderURL overrides the environment default.
	ProviderURL string
	Logger      *slog.Logger
}

// Manager owns every transition of the session held in core.State.
type Manager struct {
	mu       sync.Mutex
	state    *core.State
	store    core.SessionStore
	provider core.IdentityProvider
	cfg      Config
	logger   *slog.Logger
	phase    Phase
}

// NewManager creates a manager in PhaseUninitialized.
// provider may be nil, in which case only simulated sessions are possible.
func NewManager(state *core.State, store core.SessionStore, provider core.IdentityProvider, cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.ProviderURL) == "" {
		cfg.ProviderURL = ProviderURL(cfg.Environment)
	}
	return &Manager{
		state:    state,
		store:    store,
		provider: provider,
		cfg:      cfg,
		logger:   logger.With("component", "identity"),
		phase:    PhaseUninitialized,
	}
}

// Phase returns the current state.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Session returns the active session.
func (m *Manager) Session() (core.Session, bool) {
	return m.state.Session()
}

// CurrentIdentity returns the active identity or core.NoIdentity.
func (m *Manager) CurrentIdentity() core.Identity {
	return m.state.Identity()
}

// Identities returns the simulated identity menu.
func (m *Manager) Identities() []core.Identity {
	return core.SimulatedIdentities()
}

// Bootstrap resolves the startup session. It never fails on a broken
// store or an unreachable provider: both degrade to PhaseUnauthenticated.
func (m *Manager) Bootstrap(ctx context.Context) (Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseUninitialized {
		return m.phase, nil
	}
	m.bootstrap(ctx)
	return m.phase, nil
}

func (m *Manager) bootstrap(ctx context.Context) {
	persisted, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn("session store unavailable, continuing unauthenticated", "error", err)
		persisted = nil
	}

	if persisted != nil {
		if persisted.Mode == core.ModeSimulated {
			m.adopt(*persisted)
			m.logger.Debug("restored simulated session", "identity", persisted.Identity.Handle)
			return
		}
		if m.validateDelegated(ctx, *persisted) {
			return
		}
		if err := m.store.Clear(ctx); err != nil {
			m.logger.Warn("failed to clear stale delegated session", "error", err)
		}
	}

	if m.provider == nil {
		m.phase = PhaseUnauthenticated
		return
	}
	ok, err := m.provider.IsAuthenticated(ctx)
	if err != nil {
		m.logger.Warn("identity provider check failed", "error", err)
		m.phase = PhaseUnauthenticated
		return
	}
	if !ok {
		m.phase = PhaseUnauthenticated
		return
	}
	id, err := m.provider.GetIdentity(ctx)
	if err != nil || id.IsZero() || id.IsAnonymous() {
		m.logger.Warn("identity provider returned no identity", "error", err)
		m.phase = PhaseUnauthenticated
		return
	}
	m.adopt(m.persist(ctx, core.Session{Identity: id, Mode: core.ModeDelegated}))
}

// validateDelegated adopts a persisted delegated session if the provider
// still holds a matching authenticated client.
func (m *Manager) validateDelegated(ctx context.Context, persisted core.Session) bool {
	if m.provider == nil {
		return false
	}
	ok, err := m.provider.IsAuthenticated(ctx)
	if err != nil || !ok {
		m.logger.Debug("persisted delegated session no longer valid", "identity", persisted.Identity.Handle, "error", err)
		return false
	}
	id, err := m.provider.GetIdentity(ctx)
	if err != nil || id.IsZero() || id.IsAnonymous() {
		return false
	}
	if !id.Equal(persisted.Identity) {
		// The provider is authoritative for delegated identities.
		m.adopt(m.persist(ctx, core.Session{Identity: id, Mode: core.ModeDelegated}))
		return true
	}
	m.adopt(persisted)
	return true
}

// Login starts the login flow. In production it runs the provider's
// interactive flow; elsewhere it moves to PhaseSelectingIdentity.
// Calling it while authenticated or selecting is a no-op.
func (m *Manager) Login(ctx context.Context) (Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseUninitialized {
		m.bootstrap(ctx)
	}
	if m.phase == PhaseAuthenticated || m.phase == PhaseSelectingIdentity {
		return m.phase, nil
	}

	if !m.cfg.Environment.IsProduction() {
		m.phase = PhaseSelectingIdentity
		return m.phase, nil
	}

	if m.provider == nil {
		return m.phase, fmt.Errorf("login: %w", core.ErrIdentityProviderUnavailable)
	}
	if err := m.provider.Login(ctx, core.LoginConfig{IdentityProviderURL: m.cfg.ProviderURL}); err != nil {
		m.logger.Error("login failed", "error", err)
		return m.phase, loginError(err)
	}
	id, err := m.provider.GetIdentity(ctx)
	if err != nil {
		return m.phase, loginError(err)
	}
	if id.IsZero() || id.IsAnonymous() {
		return m.phase, fmt.Errorf("login: %w: provider returned anonymous identity", core.ErrLoginRejected)
	}

	m.adopt(m.persist(ctx, core.Session{Identity: id, Mode: core.ModeDelegated}))
	m.logger.Info("logged in", "identity", id.Handle, "mode", core.ModeDelegated)
	return m.phase, nil
}

func loginError(err error) error {
	if errors.Is(err, core.ErrLoginRejected) || errors.Is(err, core.ErrIdentityProviderUnavailable) {
		return fmt.Errorf("login: %w", err)
	}
	return fmt.Errorf("login: %w: %w", core.ErrIdentityProviderUnavailable, err)
}

// Select picks a simulated identity by handle or display name.
func (m *Manager) Select(ctx context.Context, key string) (core.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseSelectingIdentity {
		return core.Session{}, fmt.Errorf("select identity: not selecting (phase %s)", m.phase)
	}
	id, ok := core.LookupSimulated(key)
	if !ok {
		return core.Session{}, fmt.Errorf("select identity %q: %w", key, core.ErrUnknownIdentity)
	}

	sess := m.persist(ctx, core.Session{Identity: id, Mode: core.ModeSimulated})
	m.adopt(sess)
	m.logger.Info("logged in", "identity", id.Handle, "mode", core.ModeSimulated)
	return sess, nil
}

// CancelSelection abandons the identity menu.
func (m *Manager) CancelSelection() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseSelectingIdentity {
		m.phase = PhaseUnauthenticated
	}
	return m.phase
}

// Logout ends the session. Local state is always cleared; a provider
// failure is reported after the fact.
func (m *Manager) Logout(ctx context.Context) (Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case PhaseSelectingIdentity:
		m.phase = PhaseUnauthenticated
		return m.phase, nil
	case PhaseAuthenticated:
	default:
		return m.phase, nil
	}

	var providerErr error
	sess, _ := m.state.Session()
	if sess.Mode == core.ModeDelegated && m.provider != nil {
		if err := m.provider.Logout(ctx); err != nil {
			m.logger.Warn("identity provider logout failed", "error", err)
			providerErr = fmt.Errorf("logout: %w: %w", core.ErrIdentityProviderUnavailable, err)
		}
	}
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("failed to clear persisted session", "error", err)
	}
	m.state.ClearSession()
	m.phase = PhaseUnauthenticated
	m.logger.Info("logged out", "identity", sess.Identity.Handle)
	return m.phase, providerErr
}

// Reload re-reads the persisted session after an external change.
func (m *Manager) Reload(ctx context.Context) (Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	persisted, err := m.store.Load(ctx)
	if err != nil {
		return m.phase, fmt.Errorf("reload session: %w", err)
	}
	if persisted == nil {
		if m.phase == PhaseAuthenticated {
			m.state.ClearSession()
			m.phase = PhaseUnauthenticated
			m.logger.Info("session cleared externally")
		}
		return m.phase, nil
	}
	cur, ok := m.state.Session()
	if ok && cur.Identity.Equal(persisted.Identity) && cur.Mode == persisted.Mode {
		return m.phase, nil
	}
	if persisted.Mode == core.ModeDelegated && !m.validateDelegated(ctx, *persisted) {
		// The record stays: it belongs to whichever process holds the delegation.
		m.state.ClearSession()
		m.phase = PhaseUnauthenticated
		m.logger.Info("external delegated session not held by this client", "identity", persisted.Identity.Handle)
		return m.phase, nil
	}
	if persisted.Mode == core.ModeSimulated {
		m.adopt(*persisted)
	}
	m.logger.Info("session changed externally", "identity", persisted.Identity.Handle)
	return m.phase, nil
}

func (m *Manager) adopt(sess core.Session) {
	m.state.SetSession(sess)
	m.phase = PhaseAuthenticated
}

// persist saves sess; a failing store leaves the session in memory only.
func (m *Manager) persist(ctx context.Context, sess core.Session) core.Session {
	if err := m.store.Save(ctx, sess); err != nil {
		m.logger.Warn("failed to persist session", "identity", sess.Identity.Handle, "error", err)
		sess.Persisted = false
		return sess
	}
	sess.Persisted = true
	return sess
}

// ManagerState exposes internal state for observability.
type ManagerState struct {
	Phase       Phase     `json:"phase"`
	Environment string    `json:"environment"`
	ProviderURL string    `json:"provider_url"`
	Identity    string    `json:"identity,omitempty"`
	Mode        core.Mode `json:"mode,omitempty"`
	Persisted   bool      `json:"persisted"`
	CheckedAt   time.Time `json:"checked_at"`
}
