package timeline

import (
	"github.com/aretw0/introspection"
)

// EngineState is the observable state of an Engine.
type EngineState struct {
	Identity       string `json:"identity,omitempty"`
	Cached         int    `json:"cached"`
	RequestsIssued uint64 `json:"requests_issued"`
	RequestApplied uint64 `json:"request_applied"`
	Fallback       bool   `json:"fallback_route"`
	Timeout        string `json:"timeout"`
	Stats          Stats  `json:"stats"`
}

// State implements introspection.Introspectable.
func (e *Engine) State() any {
	issued, applied := e.state.Sequence()
	e.statsMu.Lock()
	stats := e.stats
	e.statsMu.Unlock()
	return EngineState{
		Identity:       e.state.Identity().Handle,
		Cached:         len(e.state.Timeline()),
		RequestsIssued: issued,
		RequestApplied: applied,
		Fallback:       e.fallback != nil,
		Timeout:        e.timeout.String(),
		Stats:          stats,
	}
}

// ComponentType implements introspection.Component.
func (e *Engine) ComponentType() string {
	return "timeline-engine"
}

var _ introspection.Introspectable = (*Engine)(nil)
var _ introspection.Component = (*Engine)(nil)
