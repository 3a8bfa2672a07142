package timeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/orbit/internal/fakes"
	"github.com/aretw0/orbit/pkg/core"
	"github.com/aretw0/orbit/pkg/timeline"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var errRefused = errors.New("dial tcp 127.0.0.1:4943: connection refused")

func simulatedState(t *testing.T, handle string) *core.State {
	t.Helper()
	id, ok := core.LookupSimulated(handle)
	require.True(t, ok)
	state := core.NewState()
	state.SetSession(core.Session{Identity: id, Mode: core.ModeSimulated})
	return state
}

func newEngine(state *core.State, content core.ContentService) *timeline.Engine {
	return timeline.NewEngine(state, content, timeline.Config{Logger: quiet})
}

func TestPostThenFetch(t *testing.T) {
	ctx := context.Background()
	content := fakes.NewContent()
	content.Seed(core.NewIdentity("someone-else"), "hello")
	state := simulatedState(t, "alice-1")
	engine := newEngine(state, content)

	before, err := engine.FetchTimeline(ctx)
	require.NoError(t, err)

	created, err := engine.Post(ctx, "first post")
	require.NoError(t, err)
	assert.Equal(t, "alice-1", created.Author.Handle, "anonymous author should normalize to the simulated identity")

	after := engine.Timeline()
	require.Len(t, after, len(before)+1)

	var matches []core.Dweet
	for _, d := range after {
		if d.Message == "first post" {
			matches = append(matches, d)
		}
	}
	require.Len(t, matches, 1)
	assert.Equal(t, "alice-1", matches[0].Author.Handle)
	assert.True(t, engine.Owns(matches[0]))
	assert.Equal(t, 1, content.CallCount("post"))
	assert.Equal(t, 2, content.CallCount("list"), "post must be followed by a full re-fetch")
}

func TestPostValidation(t *testing.T) {
	ctx := context.Background()
	content := fakes.NewContent()
	engine := newEngine(simulatedState(t, "alice-1"), content)

	cases := []struct {
		name    string
		message string
	}{
		{"Empty", ""},
		{"Blank", "   \n\t"},
		{"Too Long", strings.Repeat("x", core.MaxMessageLength+1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Post(ctx, tc.message)
			assert.ErrorIs(t, err, core.ErrInvalidInput)
			assert.ErrorIs(t, engine.Edit(ctx, 0, tc.message), core.ErrInvalidInput)
		})
	}
	assert.Zero(t, content.TotalCalls(), "invalid input must not reach the network")

	_, err := engine.Post(ctx, strings.Repeat("é", core.MaxMessageLength))
	assert.NoError(t, err, "length is counted in characters")
}

func TestNoSession(t *testing.T) {
	ctx := context.Background()
	content := fakes.NewContent()
	engine := newEngine(core.NewState(), content)

	_, err := engine.FetchTimeline(ctx)
	assert.ErrorIs(t, err, core.ErrNoIdentity)
	_, err = engine.Post(ctx, "hi")
	assert.ErrorIs(t, err, core.ErrNoIdentity)
	assert.ErrorIs(t, engine.Delete(ctx, 0), core.ErrNoIdentity)
	assert.Zero(t, content.TotalCalls())
	assert.False(t, engine.Owns(core.Dweet{Author: core.NewIdentity(core.AnonymousHandle)}))
}

func TestEdit(t *testing.T) {
	ctx := context.Background()
	content := fakes.NewContent()
	engine := newEngine(simulatedState(t, "bob-2"), content)

	created, err := engine.Post(ctx, "draft")
	require.NoError(t, err)

	require.NoError(t, engine.Edit(ctx, created.ID, "final"))
	tl := engine.Timeline()
	require.Len(t, tl, 1)
	assert.Equal(t, created.ID, tl[0].ID)
	assert.Equal(t, "final", tl[0].Message)
	assert.Equal(t, "bob-2", tl[0].Author.Handle)

	t.Run("Rejected Remotely", func(t *testing.T) {
		other := content.Seed(core.NewIdentity("stranger-9"), "not yours")
		err := engine.Edit(ctx, other.ID, "mine now")
		var rej *core.ServerRejection
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, "Unauthorized", rej.Message)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	content := fakes.NewContent()
	engine := newEngine(simulatedState(t, "carol-3"), content)

	created, err := engine.Post(ctx, "ephemeral")
	require.NoError(t, err)
	require.NoError(t, engine.Delete(ctx, created.ID))

	for _, d := range engine.Timeline() {
		assert.NotEqual(t, created.ID, d.ID)
	}

	err = engine.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, core.ErrServerRejection)
	assert.Contains(t, err.Error(), "Dweet not found")
}

func TestFetchFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("Alternate Route", func(t *testing.T) {
		content := fakes.NewContent()
		content.Seed(core.NewIdentity(core.AnonymousHandle+"-cai"), "from anon")
		content.FailList = errRefused
		engine := newEngine(simulatedState(t, "dave-4"), content)

		got, err := engine.FetchTimeline(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "dave-4", got[0].Author.Handle)
		assert.Equal(t, 1, content.CallCount("list_fallback"))
	})

	t.Run("Both Fail Keeps Cache", func(t *testing.T) {
		content := fakes.NewContent()
		content.Seed(core.NewIdentity("x"), "cached")
		engine := newEngine(simulatedState(t, "dave-4"), content)
		_, err := engine.FetchTimeline(ctx)
		require.NoError(t, err)

		content.FailList = errRefused
		content.FailFallback = errRefused
		_, err = engine.FetchTimeline(ctx)
		assert.ErrorIs(t, err, core.ErrTransportFailure)
		require.Len(t, engine.Timeline(), 1)
		assert.Equal(t, "cached", engine.Timeline()[0].Message)
	})

	t.Run("Rejection Does Not Fall Back", func(t *testing.T) {
		content := fakes.NewContent()
		content.FailList = core.Reject("getDweets", "Forbidden")
		engine := newEngine(simulatedState(t, "dave-4"), content)

		_, err := engine.FetchTimeline(ctx)
		assert.ErrorIs(t, err, core.ErrServerRejection)
		assert.Zero(t, content.CallCount("list_fallback"))
	})
}

func TestMutationSucceedsWhenRefreshFails(t *testing.T) {
	ctx := context.Background()
	content := fakes.NewContent()
	engine := newEngine(simulatedState(t, "alice-1"), content)
	content.FailList = errRefused
	content.FailFallback = errRefused

	created, err := engine.Post(ctx, "still posted")
	require.NoError(t, err)
	assert.Equal(t, "still posted", created.Message)
	assert.Empty(t, engine.Timeline())
}

func TestFetchByAuthor(t *testing.T) {
	ctx := context.Background()
	content := fakes.NewContent()
	content.Seed(core.NewIdentity("bob-2"), "bob says")
	content.Seed(core.NewIdentity(core.AnonymousHandle), "anon says")
	content.Seed(core.NewIdentity("eve-5"), "eve says")
	engine := newEngine(simulatedState(t, "alice-1"), content)

	t.Run("Server Side", func(t *testing.T) {
		got, err := engine.FetchByAuthor(ctx, core.NewIdentity("eve-5"))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "eve says", got[0].Message)
		assert.Equal(t, 1, content.CallCount("list_by_author"))
	})

	t.Run("Active Simulated Identity Matches Owns", func(t *testing.T) {
		before := content.CallCount("list_by_author")
		_, err := engine.Post(ctx, "alice writes")
		require.NoError(t, err)

		owned := 0
		for _, d := range engine.Timeline() {
			if engine.Owns(d) {
				owned++
			}
		}
		got, err := engine.FetchByAuthor(ctx, core.NewIdentity("alice-1"))
		require.NoError(t, err)
		assert.Len(t, got, owned)
		assert.Len(t, got, 2, "anonymous dweets belong to the active simulated identity")
		assert.Equal(t, before, content.CallCount("list_by_author"), "simulated handles never reach the server filter")
	})

	t.Run("Other Simulated Identity", func(t *testing.T) {
		before := content.CallCount("list_by_author")
		got, err := engine.FetchByAuthor(ctx, core.NewIdentity("bob-2"))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "bob says", got[0].Message)
		assert.Equal(t, before, content.CallCount("list_by_author"))
	})

	t.Run("Client Side Fallback", func(t *testing.T) {
		content.FailByAuthor = errors.New("method not supported")
		defer func() { content.FailByAuthor = nil }()
		listed := content.CallCount("list")
		got, err := engine.FetchByAuthor(ctx, core.NewIdentity("eve-5"))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "eve says", got[0].Message)
		assert.Equal(t, listed+1, content.CallCount("list"))
	})

	t.Run("Fallback Failure", func(t *testing.T) {
		content.FailByAuthor = errors.New("method not supported")
		content.FailList = errRefused
		content.FailFallback = errRefused
		_, err := engine.FetchByAuthor(ctx, core.NewIdentity("eve-5"))
		assert.ErrorIs(t, err, core.ErrTransportFailure)
	})
}

func TestFetchByAuthor_DelegatedAsksServer(t *testing.T) {
	ctx := context.Background()
	content := fakes.NewContent()
	content.Seed(core.NewIdentity("alice-1"), "real principal named like a simulated one")
	state := core.NewState()
	state.SetSession(core.Session{Identity: core.NewIdentity("principal-aaaa"), Mode: core.ModeDelegated})
	engine := newEngine(state, content)

	got, err := engine.FetchByAuthor(ctx, core.NewIdentity("alice-1"))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, content.CallCount("list_by_author"))
}

func TestFetchByAuthorPattern(t *testing.T) {
	ctx := context.Background()
	content := fakes.NewContent()
	content.Seed(core.NewIdentity("bob-2"), "b")
	content.Seed(core.NewIdentity("carol-3"), "c")
	content.Seed(core.NewIdentity("eve-5"), "e")
	engine := newEngine(simulatedState(t, "alice-1"), content)

	got, err := engine.FetchByAuthorPattern(ctx, "{bob,carol}-*")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = engine.FetchByAuthorPattern(ctx, "[")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

type slowContent struct {
	*fakes.Content
}

func (s slowContent) ListDweets(ctx context.Context) ([]core.Dweet, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestTimeout(t *testing.T) {
	content := slowContent{fakes.NewContent()}
	content.FailFallback = errRefused
	engine := timeline.NewEngine(simulatedState(t, "alice-1"), content, timeline.Config{
		Timeout: 20 * time.Millisecond,
		Logger:  quiet,
	})

	_, err := engine.FetchTimeline(context.Background())
	assert.ErrorIs(t, err, core.ErrTransportFailure)
}

// gatedContent blocks the first listing until release is closed.
type gatedContent struct {
	*fakes.Content
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedContent) ListDweets(ctx context.Context) ([]core.Dweet, error) {
	first := false
	g.once.Do(func() { first = true })
	batch, err := g.Content.ListDweets(ctx)
	if first {
		close(g.entered)
		<-g.release
	}
	return batch, err
}

func TestStaleResponseDiscarded(t *testing.T) {
	ctx := context.Background()
	content := &gatedContent{
		Content: fakes.NewContent(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	state := simulatedState(t, "alice-1")
	engine := newEngine(state, content)

	done := make(chan []core.Dweet)
	go func() {
		batch, err := engine.FetchTimeline(ctx)
		assert.NoError(t, err)
		done <- batch
	}()
	<-content.entered

	content.Seed(core.NewIdentity("bob-2"), "newer")
	fresh, err := engine.FetchTimeline(ctx)
	require.NoError(t, err)
	require.Len(t, fresh, 1)

	close(content.release)
	stale := <-done
	assert.Empty(t, stale)

	tl := engine.Timeline()
	require.Len(t, tl, 1, "older response must not overwrite the newer one")
	assert.Equal(t, "newer", tl[0].Message)

	st := engine.State().(timeline.EngineState)
	assert.Equal(t, 1, st.Stats.Discarded)
}

func TestSessionChangeDropsInflight(t *testing.T) {
	ctx := context.Background()
	content := &gatedContent{
		Content: fakes.NewContent(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	content.Seed(core.NewIdentity(core.AnonymousHandle), "anon")
	state := simulatedState(t, "alice-1")
	engine := newEngine(state, content)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = engine.FetchTimeline(ctx)
	}()
	<-content.entered

	bob, _ := core.LookupSimulated("bob-2")
	state.SetSession(core.Session{Identity: bob, Mode: core.ModeSimulated})
	close(content.release)
	<-done

	assert.Empty(t, engine.Timeline(), "a response normalized for alice must not be cached for bob")
}

func TestDelegatedPassThrough(t *testing.T) {
	ctx := context.Background()
	content := fakes.NewContent()
	content.Seed(core.NewIdentity(core.AnonymousHandle), "anon")
	state := core.NewState()
	state.SetSession(core.Session{Identity: core.NewIdentity("real-principal"), Mode: core.ModeDelegated})
	engine := newEngine(state, content)

	got, err := engine.FetchTimeline(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Author.IsAnonymous())
	assert.False(t, engine.Owns(got[0]))
	assert.Equal(t, "timeline-engine", engine.ComponentType())
}
