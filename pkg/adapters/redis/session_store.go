// Package redis shares one session across processes through Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/redis/go-redis/v9"

	"github.com/aretw0/orbit/pkg/core"
)

// DefaultTTL bounds how long an idle session survives.
const DefaultTTL = 30 * 24 * time.Hour

// Options configures the Redis session store.
type Options struct {
	// Namespace separates sessions of different users or profiles.
	// Empty uses core.SessionKey.
	Namespace string
	// TTL of the session key. Zero means DefaultTTL.
	TTL    time.Duration
	Logger *slog.Logger
}

// SessionStore keeps the session at "orbit:session:<namespace>" and
// announces changes on "<key>:events".
type SessionStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionStore connects to redisURL and verifies the connection.
func NewSessionStore(redisURL string, opts Options) (*SessionStore, error) {
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(ropts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewSessionStoreWithClient(client, opts), nil
}

// NewSessionStoreWithClient creates a store from an existing client.
func NewSessionStoreWithClient(client *redis.Client, opts Options) *SessionStore {
	ns := strings.TrimSpace(opts.Namespace)
	if ns == "" {
		ns = core.SessionKey
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		client: client,
		key:    "orbit:session:" + ns,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Key returns the Redis key holding the session.
func (s *SessionStore) Key() string {
	return s.key
}

func (s *SessionStore) channel() string {
	return s.key + ":events"
}

func (s *SessionStore) Load(ctx context.Context) (*core.Session, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	sess, err := core.DecodeRecord(data)
	if err != nil {
		s.logger.Warn("discarding malformed session record", "key", s.key, "error", err)
		if delErr := s.client.Del(ctx, s.key).Err(); delErr != nil {
			s.logger.Warn("failed to delete malformed session record", "error", delErr)
		}
		return nil, nil
	}
	return &sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess core.Session) error {
	data, err := core.EncodeRecord(sess, s.now())
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.publish(ctx, core.EventSessionSaved)
	return nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.publish(ctx, core.EventSessionCleared)
	return nil
}

func (s *SessionStore) publish(ctx context.Context, t core.EventType) {
	if err := s.client.Publish(ctx, s.channel(), string(t)).Err(); err != nil {
		s.logger.Debug("failed to publish session event", "type", t, "error", err)
	}
}

// Watch subscribes to session changes made by any process sharing the key.
func (s *SessionStore) Watch(ctx context.Context) (<-chan core.Event, error) {
	sub := s.client.Subscribe(ctx, s.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe to session events: %w", err)
	}

	out := make(chan core.Event)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-msgs:
				if !ok {
					return nil
				}
				e := core.Event{
					Type:      core.EventType(msg.Payload),
					Key:       core.SessionKey,
					Timestamp: time.Now().Unix(),
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("session subscription failed", "error", err)
	}))
	return out, nil
}

// Ping checks if Redis is reachable.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *SessionStore) Close() error {
	return s.client.Close()
}

var (
	_ core.SessionStore   = (*SessionStore)(nil)
	_ core.WatchableStore = (*SessionStore)(nil)
)
