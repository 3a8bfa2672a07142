// Package timeline keeps the local timeline cache in step with the remote
// content service.
//
// The remote service is the single source of truth. Every successful
// mutation is followed by a full re-fetch; the cache is never patched in
// place.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/orbit/pkg/core"
)

// DefaultTimeout bounds every remote call made by the engine.
const DefaultTimeout = 10 * time.Second

const tracerName = "github.com/aretw0/orbit/pkg/timeline"

// Config configures an Engine.
type Config struct {
	// Timeout per remote call. Zero means DefaultTimeout, negative disables it.
	Timeout time.Duration
	Logger  *slog.Logger
	Tracer  trace.Tracer
}

// Engine synchronizes core.State's timeline with a core.ContentService.
type Engine struct {
	state    *core.State
	content  core.ContentService
	fallback core.FallbackLister
	timeout  time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer

	statsMu sync.Mutex
	stats   Stats
}

// Stats counts engine activity for introspection.
type Stats struct {
	Fetches     int       `json:"fetches"`
	Fallbacks   int       `json:"fallbacks"`
	Discarded   int       `json:"discarded"`
	Mutations   int       `json:"mutations"`
	LastFetchAt time.Time `json:"last_fetch_at,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// NewEngine creates an engine. If content also implements
// core.FallbackLister, its alternate route is used when the primary listing
// fails at the transport level.
func NewEngine(state *core.State, content core.ContentService, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	e := &Engine{
		state:   state,
		content: content,
		timeout: timeout,
		logger:  logger.With("component", "timeline"),
		tracer:  tracer,
	}
	if fl, ok := content.(core.FallbackLister); ok {
		e.fallback = fl
	}
	return e
}

// Timeline returns a copy of the cached timeline.
func (e *Engine) Timeline() []core.Dweet {
	return e.state.Timeline()
}

// Owns reports whether the active session owns d.
func (e *Engine) Owns(d core.Dweet) bool {
	sess, ok := e.state.Session()
	if !ok {
		return false
	}
	return core.Owns(&sess, d)
}

func (e *Engine) session() (core.Session, error) {
	sess, ok := e.state.Session()
	if !ok {
		return core.Session{}, core.ErrNoIdentity
	}
	return sess, nil
}

// call runs fn under the per-call timeout. A timeout is reported as a
// transport failure.
func (e *Engine) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	err := fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, core.ErrTransportFailure) {
		return fmt.Errorf("%w: %w", core.ErrTransportFailure, err)
	}
	return err
}

// FetchTimeline replaces the cache with the normalized remote timeline and
// returns it. On failure the previous cache is kept.
//
// A response that arrives after a newer one has been applied, or after the
// session changed, is returned to the caller but not cached.
func (e *Engine) FetchTimeline(ctx context.Context) ([]core.Dweet, error) {
	ctx, span := e.tracer.Start(ctx, "timeline.FetchTimeline")
	defer span.End()

	sess, err := e.session()
	if err != nil {
		return nil, e.fail(span, "fetch timeline", err)
	}
	seq := e.state.BeginFetch()
	span.SetAttributes(attribute.Int64("orbit.request_id", int64(seq)))

	var batch []core.Dweet
	err = e.call(ctx, func(ctx context.Context) error {
		var err error
		batch, err = e.content.ListDweets(ctx)
		return err
	})
	if err != nil {
		if !core.IsTransportFailure(err) {
			return nil, e.fail(span, "fetch timeline", err)
		}
		if e.fallback == nil {
			return nil, e.fail(span, "fetch timeline", transportFailure(err))
		}

		reason := core.FailureReason(err)
		e.logger.Warn("primary listing failed, trying alternate route", "reason", reason, "error", err)
		span.AddEvent("fallback", trace.WithAttributes(attribute.String("orbit.fallback_reason", reason)))
		e.count(func(s *Stats) { s.Fallbacks++ })

		ferr := e.call(ctx, func(ctx context.Context) error {
			var err error
			batch, err = e.fallback.ListDweetsFallback(ctx)
			return err
		})
		if ferr != nil {
			return nil, e.fail(span, "fetch timeline", transportFailure(errors.Join(err, ferr)))
		}
	}

	normalized := core.Normalize(&sess, batch)
	applied := e.state.ApplyTimeline(seq, normalized)
	if !applied {
		e.logger.Debug("discarding stale timeline response", "request_id", seq)
		span.AddEvent("stale_response_discarded")
	}
	e.count(func(s *Stats) {
		s.Fetches++
		s.LastFetchAt = time.Now()
		s.LastError = ""
		if !applied {
			s.Discarded++
		}
	})
	span.SetAttributes(attribute.Int("orbit.dweets", len(normalized)), attribute.Bool("orbit.applied", applied))
	return normalized, nil
}

func transportFailure(err error) error {
	if errors.Is(err, core.ErrTransportFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrTransportFailure, err)
}

// FetchByAuthor lists the dweets of author. If the server-side filter
// fails, it falls back to a full fetch filtered locally. Simulated
// handles are unknown to the server, so in simulated mode they are always
// filtered locally over the normalized timeline.
func (e *Engine) FetchByAuthor(ctx context.Context, author core.Identity) ([]core.Dweet, error) {
	ctx, span := e.tracer.Start(ctx, "timeline.FetchByAuthor", trace.WithAttributes(attribute.String("orbit.author", author.Handle)))
	defer span.End()

	sess, err := e.session()
	if err != nil {
		return nil, e.fail(span, "fetch by author", err)
	}
	if author.IsZero() {
		return nil, e.fail(span, "fetch by author", core.InvalidInput("author is required"))
	}

	if sess.Mode == core.ModeSimulated && isSimulatedAuthor(sess, author) {
		e.logger.Debug("simulated author, filtering locally", "author", author.Handle, "reason", ReasonSimulatedAuthor)
		return e.filterLocally(ctx, span, author, ReasonSimulatedAuthor)
	}

	var batch []core.Dweet
	err = e.call(ctx, func(ctx context.Context) error {
		var err error
		batch, err = e.content.ListDweetsByAuthor(ctx, author)
		return err
	})
	if err == nil {
		return core.Normalize(&sess, batch), nil
	}

	reason := core.FailureReason(err)
	e.logger.Warn("server-side author filter failed, filtering locally", "author", author.Handle, "reason", reason, "error", err)
	return e.filterLocally(ctx, span, author, reason)
}

// ReasonSimulatedAuthor is the fallback reason recorded when a simulated
// author is filtered locally without asking the server.
const ReasonSimulatedAuthor = "simulated_author"

func isSimulatedAuthor(sess core.Session, author core.Identity) bool {
	if author.Equal(sess.Identity) {
		return true
	}
	_, ok := core.LookupSimulated(author.Handle)
	return ok
}

func (e *Engine) filterLocally(ctx context.Context, span trace.Span, author core.Identity, reason string) ([]core.Dweet, error) {
	span.AddEvent("fallback", trace.WithAttributes(attribute.String("orbit.fallback_reason", reason)))
	all, err := e.FetchTimeline(ctx)
	if err != nil {
		return nil, e.fail(span, "fetch by author", err)
	}
	return core.FilterByAuthor(all, author), nil
}

// FetchByAuthorPattern fetches the timeline and keeps dweets whose author
// handle matches a doublestar glob such as "alice-*" or "{bob,carol}-*".
func (e *Engine) FetchByAuthorPattern(ctx context.Context, pattern string) ([]core.Dweet, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, core.InvalidInput(fmt.Sprintf("bad author pattern %q", pattern))
	}
	all, err := e.FetchTimeline(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Dweet, 0, len(all))
	for _, d := range all {
		if ok, _ := doublestar.Match(pattern, d.Author.Handle); ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// Post publishes a new dweet and refreshes the timeline.
func (e *Engine) Post(ctx context.Context, message string) (core.Dweet, error) {
	ctx, span := e.tracer.Start(ctx, "timeline.Post")
	defer span.End()

	sess, err := e.session()
	if err != nil {
		return core.Dweet{}, e.fail(span, "post", err)
	}
	if err := core.ValidateMessage(message); err != nil {
		return core.Dweet{}, e.fail(span, "post", err)
	}

	var created core.Dweet
	err = e.call(ctx, func(ctx context.Context) error {
		var err error
		created, err = e.content.PostDweet(ctx, message)
		return err
	})
	if err != nil {
		return core.Dweet{}, e.fail(span, "post", err)
	}
	span.SetAttributes(attribute.Int64("orbit.dweet_id", int64(created.ID)))
	e.afterMutation(ctx, "post")
	return core.Normalize(&sess, []core.Dweet{created})[0], nil
}

// Edit replaces the message of dweet id. Ownership is enforced remotely.
func (e *Engine) Edit(ctx context.Context, id uint64, message string) error {
	ctx, span := e.tracer.Start(ctx, "timeline.Edit", trace.WithAttributes(attribute.Int64("orbit.dweet_id", int64(id))))
	defer span.End()

	if _, err := e.session(); err != nil {
		return e.fail(span, "edit", err)
	}
	if err := core.ValidateMessage(message); err != nil {
		return e.fail(span, "edit", err)
	}
	if err := e.call(ctx, func(ctx context.Context) error {
		return e.content.EditDweet(ctx, id, message)
	}); err != nil {
		return e.fail(span, "edit", err)
	}
	e.afterMutation(ctx, "edit")
	return nil
}

// Delete removes dweet id.
func (e *Engine) Delete(ctx context.Context, id uint64) error {
	ctx, span := e.tracer.Start(ctx, "timeline.Delete", trace.WithAttributes(attribute.Int64("orbit.dweet_id", int64(id))))
	defer span.End()

	if _, err := e.session(); err != nil {
		return e.fail(span, "delete", err)
	}
	if err := e.call(ctx, func(ctx context.Context) error {
		return e.content.DeleteDweet(ctx, id)
	}); err != nil {
		return e.fail(span, "delete", err)
	}
	e.afterMutation(ctx, "delete")
	return nil
}

// afterMutation re-fetches the timeline. A failed refresh leaves the cache
// stale and does not fail the mutation.
func (e *Engine) afterMutation(ctx context.Context, op string) {
	e.count(func(s *Stats) { s.Mutations++ })
	if _, err := e.FetchTimeline(ctx); err != nil {
		e.logger.Warn("refresh after mutation failed", "op", op, "error", err)
	}
}

func (e *Engine) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, core.FailureReason(err))
	e.count(func(s *Stats) { s.LastError = err.Error() })
	var rej *core.ServerRejection
	if errors.As(err, &rej) || errors.Is(err, core.ErrNoIdentity) || errors.Is(err, core.ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (e *Engine) count(fn func(*Stats)) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	fn(&e.stats)
}
