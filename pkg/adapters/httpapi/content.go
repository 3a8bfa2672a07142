package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/aretw0/orbit/pkg/core"
)

// Header names sent with every content request.
const (
	HeaderIdentity = "X-Orbit-Identity"
	HeaderAuth     = "Authorization"
)

// Caller reports the identity to act as and, for delegated sessions, the
// bearer delegation token. Either may be empty.
type Caller func() (handle, token string)

// ContentConfig configures a ContentClient.
type ContentConfig struct {
	BaseURL string
	// FallbackURL serves the alternate listing route. Empty means BaseURL.
	FallbackURL string
	Timeout     time.Duration
	// RateLimit is the sustained requests per second. Zero disables limiting.
	RateLimit float64
	Burst     int
	Caller    Caller
	Client    *http.Client
	Logger    *slog.Logger
}

// ContentClient implements core.ContentService and core.FallbackLister.
type ContentClient struct {
	base     *url.URL
	fallback *url.URL
	client   *http.Client
	limiter  *rate.Limiter
	caller   Caller
	logger   *slog.Logger
}

// NewContentClient validates the URLs and builds a client.
func NewContentClient(cfg ContentConfig) (*ContentClient, error) {
	base, err := parseBase(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("content url: %w", err)
	}
	fallback := base
	if strings.TrimSpace(cfg.FallbackURL) != "" {
		if fallback, err = parseBase(cfg.FallbackURL); err != nil {
			return nil, fmt.Errorf("fallback url: %w", err)
		}
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	caller := cfg.Caller
	if caller == nil {
		caller = func() (string, string) { return "", "" }
	}

	return &ContentClient{
		base:     base,
		fallback: fallback,
		client:   client,
		limiter:  rate.NewLimiter(limit, burst),
		caller:   caller,
		logger:   logger.With("component", "content-client"),
	}, nil
}

func parseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u, nil
}

func endpoint(base *url.URL, path string, query url.Values) string {
	u := *base
	u.Path = base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *ContentClient) ListDweets(ctx context.Context) ([]core.Dweet, error) {
	out, err := do[[]wireDweet](ctx, c, "getDweets", http.MethodGet, endpoint(c.base, "/api/dweets", nil), nil)
	return dweets(out), err
}

func (c *ContentClient) ListDweetsFallback(ctx context.Context) ([]core.Dweet, error) {
	out, err := do[[]wireDweet](ctx, c, "getDweets", http.MethodGet, endpoint(c.fallback, "/api/query/dweets", nil), nil)
	return dweets(out), err
}

func (c *ContentClient) ListDweetsByAuthor(ctx context.Context, author core.Identity) ([]core.Dweet, error) {
	q := url.Values{"author": {author.Handle}}
	out, err := do[[]wireDweet](ctx, c, "getDweetsByAuthor", http.MethodGet, endpoint(c.base, "/api/dweets", q), nil)
	return dweets(out), err
}

func (c *ContentClient) PostDweet(ctx context.Context, message string) (core.Dweet, error) {
	out, err := do[wireDweet](ctx, c, "postDweet", http.MethodPost, endpoint(c.base, "/api/dweets", nil), messageBody{message})
	if err != nil {
		return core.Dweet{}, err
	}
	return out.dweet(), nil
}

func (c *ContentClient) EditDweet(ctx context.Context, id uint64, message string) error {
	_, err := do[unit](ctx, c, "editDweet", http.MethodPut, endpoint(c.base, "/api/dweets/"+strconv.FormatUint(id, 10), nil), messageBody{message})
	return err
}

func (c *ContentClient) DeleteDweet(ctx context.Context, id uint64) error {
	_, err := do[unit](ctx, c, "deleteDweet", http.MethodDelete, endpoint(c.base, "/api/dweets/"+strconv.FormatUint(id, 10), nil), nil)
	return err
}

// do performs one request. Network and certificate failures wrap
// core.ErrTransportFailure and keep the underlying error reachable through
// errors.As.
func do[T any](ctx context.Context, c *ContentClient, op, method, target string, body any) (T, error) {
	var zero T
	if err := c.limiter.Wait(ctx); err != nil {
		return zero, fmt.Errorf("%s: %w: %w", op, core.ErrTransportFailure, err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if handle, token := c.caller(); handle != "" {
		req.Header.Set(HeaderIdentity, handle)
		if token != "" {
			req.Header.Set(HeaderAuth, "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "op", op, "url", target, "reason", core.FailureReason(err), "error", err)
		return zero, fmt.Errorf("%s: %w: %w", op, core.ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return zero, fmt.Errorf("%s: %w: read response: %w", op, core.ErrTransportFailure, err)
	}
	c.logger.Debug("request done", "op", op, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode >= 500 {
		return zero, fmt.Errorf("%s: %w: status %d", op, core.ErrTransportFailure, resp.StatusCode)
	}
	if resp.StatusCode >= 400 && !looksLikeEnvelope(data) {
		return zero, core.Reject(op, http.StatusText(resp.StatusCode))
	}
	return decodeResult[T](op, data)
}

func looksLikeEnvelope(data []byte) bool {
	var probe map[string]json.RawMessage
	if json.Unmarshal(data, &probe) != nil {
		return false
	}
	_, ok := probe["Err"]
	return ok
}

var (
	_ core.ContentService = (*ContentClient)(nil)
	_ core.FallbackLister = (*ContentClient)(nil)
)
