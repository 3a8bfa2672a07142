package identity

import (
	"time"

	"github.com/aretw0/introspection"
)

// State implements introspection.Introspectable.
func (m *Manager) State() any {
	sess, _ := m.state.Session()
	return ManagerState{
		Phase:       m.Phase(),
		Environment: string(m.cfg.Environment),
		ProviderURL: m.cfg.ProviderURL,
		Identity:    sess.Identity.Handle,
		Mode:        sess.Mode,
		Persisted:   sess.Persisted,
		CheckedAt:   time.Now(),
	}
}

// ComponentType implements introspection.Component.
func (m *Manager) ComponentType() string {
	return "identity-manager"
}

var _ introspection.Introspectable = (*Manager)(nil)
var _ introspection.Component = (*Manager)(nil)
