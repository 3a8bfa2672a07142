package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/orbit/pkg/core"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// dweetServer is a minimal content service speaking the envelope format.
type dweetServer struct {
	mu      sync.Mutex
	dweets  []core.Dweet
	nextID  uint64
	headers http.Header
	hits    map[string]int
}

func newDweetServer(t *testing.T) (*dweetServer, *httptest.Server) {
	s := &dweetServer{hits: map[string]int{}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/dweets", s.list)
	mux.HandleFunc("GET /api/query/dweets", s.list)
	mux.HandleFunc("POST /api/dweets", s.post)
	mux.HandleFunc("PUT /api/dweets/{id}", s.edit)
	mux.HandleFunc("DELETE /api/dweets/{id}", s.remove)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return s, srv
}

func writeOk(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"Ok": v})
}

func writeErr(w http.ResponseWriter, msg string) {
	_ = json.NewEncoder(w).Encode(map[string]any{"Err": msg})
}

func (s *dweetServer) record(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers = r.Header.Clone()
	s.hits[r.Method+" "+r.URL.Path]++
}

func (s *dweetServer) list(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []wireDweet{}
	author := r.URL.Query().Get("author")
	for _, d := range s.dweets {
		if author == "" || d.Author.Handle == author {
			out = append(out, toWire(d))
		}
	}
	writeOk(w, out)
}

func (s *dweetServer) post(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	var body messageBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if len([]rune(body.Message)) > core.MaxMessageLength {
		writeErr(w, "Message too long")
		return
	}
	author := r.Header.Get(HeaderIdentity)
	if author == "" {
		author = core.AnonymousHandle
	}
	s.mu.Lock()
	d := core.Dweet{ID: s.nextID, Author: core.NewIdentity(author), Message: body.Message, CreatedAt: time.Unix(0, 1_700_000_000_000_000_000)}
	s.nextID++
	s.dweets = append(s.dweets, d)
	s.mu.Unlock()
	writeOk(w, toWire(d))
}

func (s *dweetServer) find(r *http.Request) int {
	id, _ := strconv.ParseUint(r.PathValue("id"), 10, 64)
	for i, d := range s.dweets {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func (s *dweetServer) edit(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	var body messageBody
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(r)
	if i < 0 {
		writeErr(w, "Dweet not found")
		return
	}
	if s.dweets[i].Author.Handle != r.Header.Get(HeaderIdentity) {
		w.WriteHeader(http.StatusForbidden)
		writeErr(w, "Unauthorized")
		return
	}
	s.dweets[i].Message = body.Message
	writeOk(w, nil)
}

func (s *dweetServer) remove(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(r)
	if i < 0 {
		writeErr(w, "Dweet not found")
		return
	}
	s.dweets = append(s.dweets[:i], s.dweets[i+1:]...)
	writeOk(w, nil)
}

func newClient(t *testing.T, cfg ContentConfig) *ContentClient {
	t.Helper()
	cfg.Logger = quiet
	c, err := NewContentClient(cfg)
	require.NoError(t, err)
	return c
}

func TestContentClient_CRUD(t *testing.T) {
	ctx := context.Background()
	srv, ts := newDweetServer(t)
	client := newClient(t, ContentConfig{
		BaseURL: ts.URL,
		Caller:  func() (string, string) { return "principal-a", "tok-123" },
	})

	created, err := client.PostDweet(ctx, "hello orbit")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), created.ID)
	assert.Equal(t, "principal-a", created.Author.Handle)
	assert.Equal(t, int64(1_700_000_000_000_000_000), created.CreatedAt.UnixNano())
	assert.Equal(t, "Bearer tok-123", srv.headers.Get(HeaderAuth))

	require.NoError(t, client.EditDweet(ctx, created.ID, "edited"))

	list, err := client.ListDweets(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "edited", list[0].Message)

	byAuthor, err := client.ListDweetsByAuthor(ctx, core.NewIdentity("someone-else"))
	require.NoError(t, err)
	assert.Empty(t, byAuthor)

	require.NoError(t, client.DeleteDweet(ctx, created.ID))

	err = client.DeleteDweet(ctx, created.ID)
	var rej *core.ServerRejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "Dweet not found", rej.Message)
	assert.False(t, core.IsTransportFailure(err))
}

func TestContentClient_Rejections(t *testing.T) {
	ctx := context.Background()
	srv, ts := newDweetServer(t)
	srv.dweets = []core.Dweet{{ID: 7, Author: core.NewIdentity("owner"), Message: "x"}}
	client := newClient(t, ContentConfig{BaseURL: ts.URL, Caller: func() (string, string) { return "intruder", "" }})

	err := client.EditDweet(ctx, 7, "mine")
	assert.ErrorIs(t, err, core.ErrServerRejection)
	assert.Contains(t, err.Error(), "Unauthorized")
	assert.Empty(t, srv.headers.Get(HeaderAuth), "simulated callers send no bearer token")

	_, err = client.PostDweet(ctx, strings.Repeat("a", core.MaxMessageLength+1))
	assert.ErrorIs(t, err, core.ErrServerRejection)
}

func TestContentClient_TransportFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("Server Down", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()
		client := newClient(t, ContentConfig{BaseURL: url})

		_, err := client.ListDweets(ctx)
		assert.ErrorIs(t, err, core.ErrTransportFailure)
		assert.True(t, core.IsTransportFailure(err))
	})

	t.Run("Untrusted Certificate", func(t *testing.T) {
		ts := httptest.NewTLSServer(http.NotFoundHandler())
		defer ts.Close()
		client := newClient(t, ContentConfig{BaseURL: ts.URL})

		_, err := client.ListDweets(ctx)
		require.Error(t, err)
		assert.True(t, core.IsTransportFailure(err))
		assert.Equal(t, "certificate_verification", core.FailureReason(err))
	})

	t.Run("Server Error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer ts.Close()
		client := newClient(t, ContentConfig{BaseURL: ts.URL})

		_, err := client.ListDweets(ctx)
		assert.ErrorIs(t, err, core.ErrTransportFailure)
	})
}

func TestContentClient_FallbackRoute(t *testing.T) {
	srv, ts := newDweetServer(t)
	srv.dweets = []core.Dweet{{ID: 1, Author: core.NewIdentity("a"), Message: "m"}}
	client := newClient(t, ContentConfig{BaseURL: "http://127.0.0.1:1", FallbackURL: ts.URL})

	got, err := client.ListDweetsFallback(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, srv.hits["GET /api/query/dweets"])
}

func TestContentClient_RateLimit(t *testing.T) {
	_, ts := newDweetServer(t)
	client := newClient(t, ContentConfig{BaseURL: ts.URL, RateLimit: 1, Burst: 1})

	ctx := context.Background()
	_, err := client.ListDweets(ctx)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = client.ListDweets(short)
	require.Error(t, err, "second call inside the same second should wait past the deadline")
}

func TestNewContentClient_BadURL(t *testing.T) {
	_, err := NewContentClient(ContentConfig{BaseURL: "ftp://example.com"})
	assert.Error(t, err)
	_, err = NewContentClient(ContentConfig{BaseURL: "http://ok", FallbackURL: "::"})
	assert.Error(t, err)
}

func TestDecodeResult(t *testing.T) {
	_, err := decodeResult[unit]("op", []byte("not json"))
	assert.True(t, errors.Is(err, core.ErrTransportFailure))

	v, err := decodeResult[[]wireDweet]("op", []byte(`{"Ok":[{"id":3,"author":"x","message":"m","createdAt":5}]}`))
	require.NoError(t, err)
	require.Len(t, v, 1)
	assert.Equal(t, uint64(3), v[0].ID)
}
