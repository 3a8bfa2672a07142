// Package lifecycle exposes session store events as a lifecycle.Source.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/orbit/pkg/core"
)

// Option configures a session source.
type Option func(*sessionSource)

// WithTypes forwards only the given event types.
func WithTypes(types ...core.EventType) Option {
	return func(s *sessionSource) {
		s.types = make(map[core.EventType]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}
}

type sessionSource struct {
	events <-chan core.Event
	out    chan lifecycle.Event
	types  map[core.EventType]bool
}

// NewSource bridges a session event channel to the generic lifecycle.Event
// interface. core.Event satisfies it through its String method.
//
// The session is a single record, so only its latest change matters: while
// the consumer is busy, a newer event replaces the one still waiting.
func NewSource(events <-chan core.Event, opts ...Option) lifecycle.Source {
	s := &sessionSource{
		events: events,
		out:    make(chan lifecycle.Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *sessionSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *sessionSource) accepts(e core.Event) bool {
	return s.types == nil || s.types[e.Type]
}

func (s *sessionSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		var pending *core.Event
		for {
			var out chan lifecycle.Event
			var next lifecycle.Event
			if pending != nil {
				out, next = s.out, *pending
			}
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					if pending != nil {
						select {
						case s.out <- *pending:
						case <-ctx.Done():
						}
					}
					return nil
				}
				if s.accepts(e) {
					pending = &e
				}
			case out <- next:
				pending = nil
			}
		}
	})
	return nil
}
