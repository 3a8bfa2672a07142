// Package fakes provides in-process doubles of the remote collaborators,
// for tests only.
package fakes

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/aretw0/orbit/pkg/core"
)

// Content is an in-memory content service. Writes are attributed to Caller,
// or to the anonymous identity when Caller is unset, mirroring an
// unauthenticated call against the real service.
type Content struct {
	mu     sync.Mutex
	dweets []core.Dweet
	nextID uint64
	clock  int64

	Caller core.Identity

	// Injected failures, consulted on every call.
	FailList     error
	FailFallback error
	FailByAuthor error
	FailPost     error

	Calls map[string]int
}

// NewContent returns an empty content service.
func NewContent() *Content {
	return &Content{
		clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano(),
		Calls: make(map[string]int),
	}
}

func (c *Content) count(op string) {
	c.Calls[op]++
}

// CallCount returns how many times op was invoked.
func (c *Content) CallCount(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Calls[op]
}

// TotalCalls returns the number of remote calls of any kind.
func (c *Content) TotalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.Calls {
		n += v
	}
	return n
}

// Seed stores a dweet as if written by author, bypassing validation.
func (c *Content) Seed(author core.Identity, message string) core.Dweet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insert(author, message)
}

func (c *Content) insert(author core.Identity, message string) core.Dweet {
	c.clock += int64(time.Second)
	d := core.Dweet{
		ID:        c.nextID,
		Author:    core.NewIdentity(author.Handle),
		Message:   message,
		CreatedAt: time.Unix(0, c.clock).UTC(),
	}
	c.nextID++
	c.dweets = append(c.dweets, d)
	return d
}

func (c *Content) caller() core.Identity {
	if c.Caller.IsZero() {
		return core.NewIdentity(core.AnonymousHandle)
	}
	return core.NewIdentity(c.Caller.Handle)
}

func (c *Content) snapshot() []core.Dweet {
	out := make([]core.Dweet, len(c.dweets))
	copy(out, c.dweets)
	return out
}

func (c *Content) ListDweets(ctx context.Context) ([]core.Dweet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("list")
	if c.FailList != nil {
		return nil, c.FailList
	}
	return c.snapshot(), nil
}

func (c *Content) ListDweetsFallback(ctx context.Context) ([]core.Dweet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("list_fallback")
	if c.FailFallback != nil {
		return nil, c.FailFallback
	}
	return c.snapshot(), nil
}

func (c *Content) ListDweetsByAuthor(ctx context.Context, author core.Identity) ([]core.Dweet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("list_by_author")
	if c.FailByAuthor != nil {
		return nil, c.FailByAuthor
	}
	return core.FilterByAuthor(c.dweets, author), nil
}

func (c *Content) PostDweet(ctx context.Context, message string) (core.Dweet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("post")
	if c.FailPost != nil {
		return core.Dweet{}, c.FailPost
	}
	if utf8.RuneCountInString(message) > core.MaxMessageLength {
		return core.Dweet{}, core.Reject("postDweet", "Message too long")
	}
	return c.insert(c.caller(), message), nil
}

func (c *Content) EditDweet(ctx context.Context, id uint64, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("edit")
	i := c.find(id)
	if i < 0 {
		return core.Reject("editDweet", "Dweet not found")
	}
	if !c.dweets[i].Author.Equal(c.caller()) {
		return core.Reject("editDweet", "Unauthorized")
	}
	c.dweets[i].Message = message
	return nil
}

func (c *Content) DeleteDweet(ctx context.Context, id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("delete")
	i := c.find(id)
	if i < 0 {
		return core.Reject("deleteDweet", "Dweet not found")
	}
	if !c.dweets[i].Author.Equal(c.caller()) {
		return core.Reject("deleteDweet", "Unauthorized")
	}
	c.dweets = append(c.dweets[:i], c.dweets[i+1:]...)
	return nil
}

func (c *Content) find(id uint64) int {
	for i, d := range c.dweets {
		if d.ID == id {
			return i
		}
	}
	return -1
}

var (
	_ core.ContentService = (*Content)(nil)
	_ core.FallbackLister = (*Content)(nil)
)
