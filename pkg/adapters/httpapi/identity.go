package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aretw0/orbit/pkg/adapters/fs"
	"github.com/aretw0/orbit/pkg/core"
)

// DefaultDelegationTTL is requested from the provider on login.
const DefaultDelegationTTL = 8 * time.Hour

// ErrUnverifiedDelegation is returned when a delegation cannot be verified
// because no secret is configured and unsigned delegations are not allowed.
var ErrUnverifiedDelegation = errors.New("delegation cannot be verified without a secret")

// IdentityConfig configures an IdentityClient.
type IdentityConfig struct {
	// Secret verifies HS256 delegations.
	Secret []byte
	// AllowUnsigned accepts delegations without verifying them when Secret
	// is empty. Only local replicas issue those.
	AllowUnsigned bool
	// TokenFile keeps the delegation across processes. Empty keeps it in
	// memory only.
	TokenFile string
	TTL       time.Duration
	Client    *http.Client
	Logger    *slog.Logger
	Now       func() time.Time
}

// DelegationClaims is the payload of a delegation token. The subject is
// the identity handle.
type DelegationClaims struct {
	DisplayName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// IdentityClient implements core.IdentityProvider against an HTTP identity
// provider that hands out delegation tokens.
type IdentityClient struct {
	cfg    IdentityConfig
	client *http.Client
	logger *slog.Logger

	mu       sync.RWMutex
	token    string
	claims   *DelegationClaims
	provider string
}

// NewIdentityClient creates a client. It resumes the delegation kept in
// cfg.TokenFile if that is still valid.
func NewIdentityClient(cfg IdentityConfig) *IdentityClient {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultDelegationTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &IdentityClient{cfg: cfg, client: client, logger: logger.With("component", "identity-client")}
	c.resume()
	return c
}

// storedDelegation is the TokenFile content.
type storedDelegation struct {
	Delegation string `json:"delegation"`
	Provider   string `json:"provider"`
}

func (c *IdentityClient) resume() {
	if c.cfg.TokenFile == "" {
		return
	}
	data, err := os.ReadFile(c.cfg.TokenFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("failed to read stored delegation", "path", c.cfg.TokenFile, "error", err)
		}
		return
	}
	var stored storedDelegation
	if err := json.Unmarshal(data, &stored); err != nil {
		c.logger.Warn("discarding malformed stored delegation", "path", c.cfg.TokenFile, "error", err)
		c.forget()
		return
	}
	claims, err := c.parse(stored.Delegation)
	if err != nil {
		c.logger.Debug("discarding stored delegation", "path", c.cfg.TokenFile, "error", err)
		c.forget()
		return
	}
	c.token, c.claims, c.provider = stored.Delegation, claims, stored.Provider
	if !c.valid() {
		c.logger.Debug("stored delegation expired", "subject", claims.Subject)
		c.token, c.claims, c.provider = "", nil, ""
		c.forget()
		return
	}
	c.logger.Debug("delegation resumed", "subject", claims.Subject)
}

func (c *IdentityClient) store(token, provider string) error {
	if c.cfg.TokenFile == "" {
		return nil
	}
	data, err := json.Marshal(storedDelegation{Delegation: token, Provider: provider})
	if err != nil {
		return err
	}
	return fs.WriteFileAtomic(c.cfg.TokenFile, data, 0o600)
}

func (c *IdentityClient) forget() {
	if c.cfg.TokenFile == "" {
		return
	}
	if err := os.Remove(c.cfg.TokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("failed to remove stored delegation", "path", c.cfg.TokenFile, "error", err)
	}
}

func (c *IdentityClient) valid() bool {
	if c.claims == nil {
		return false
	}
	if c.claims.ExpiresAt == nil {
		return true
	}
	return c.cfg.Now().Before(c.claims.ExpiresAt.Time)
}

// IsAuthenticated reports whether an unexpired delegation is held.
func (c *IdentityClient) IsAuthenticated(ctx context.Context) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.valid(), nil
}

// GetIdentity returns the delegated identity, or the anonymous identity
// when no valid delegation is held.
func (c *IdentityClient) GetIdentity(ctx context.Context) (core.Identity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid() {
		return core.NewIdentity(core.AnonymousHandle), nil
	}
	return core.Identity{Handle: c.claims.Subject, DisplayName: c.claims.DisplayName}, nil
}

// Token returns the held delegation, if still valid.
func (c *IdentityClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid() {
		return ""
	}
	return c.token
}

type loginRequest struct {
	MaxTimeToLive int64 `json:"maxTimeToLive"`
}

type loginResponse struct {
	Delegation string `json:"delegation"`
	Error      string `json:"error,omitempty"`
}

// Login asks the provider at cfg.IdentityProviderURL for a delegation.
func (c *IdentityClient) Login(ctx context.Context, cfg core.LoginConfig) error {
	target, err := providerEndpoint(cfg.IdentityProviderURL, "login")
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrIdentityProviderUnavailable, err)
	}
	body, _ := json.Marshal(loginRequest{MaxTimeToLive: c.cfg.TTL.Nanoseconds()})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrIdentityProviderUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrIdentityProviderUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrIdentityProviderUnavailable, err)
	}

	var lr loginResponse
	decodeErr := json.Unmarshal(data, &lr)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", core.ErrLoginRejected, firstNonEmpty(lr.Error, http.StatusText(resp.StatusCode)))
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d", core.ErrIdentityProviderUnavailable, resp.StatusCode)
	case decodeErr != nil:
		return fmt.Errorf("%w: decode login response: %w", core.ErrIdentityProviderUnavailable, decodeErr)
	case lr.Delegation == "":
		return fmt.Errorf("%w: empty delegation", core.ErrLoginRejected)
	}

	claims, err := c.parse(lr.Delegation)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrLoginRejected, err)
	}

	c.mu.Lock()
	c.token = lr.Delegation
	c.claims = claims
	c.provider = cfg.IdentityProviderURL
	c.mu.Unlock()

	if err := c.store(lr.Delegation, cfg.IdentityProviderURL); err != nil {
		c.logger.Warn("failed to store delegation, it will not survive a restart", "error", err)
	}

	c.logger.Debug("delegation received", "subject", claims.Subject)
	return nil
}

func (c *IdentityClient) parse(token string) (*DelegationClaims, error) {
	claims := &DelegationClaims{}
	if len(c.cfg.Secret) == 0 {
		if !c.cfg.AllowUnsigned {
			return nil, ErrUnverifiedDelegation
		}
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, err
		}
	} else {
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			return c.cfg.Secret, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(c.cfg.Now),
		)
		if err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("delegation has no subject")
	}
	return claims, nil
}

// Logout drops the delegation and tells the provider. The delegation is
// dropped even if the provider cannot be reached.
func (c *IdentityClient) Logout(ctx context.Context) error {
	c.mu.Lock()
	token, provider := c.token, c.provider
	c.token, c.claims, c.provider = "", nil, ""
	c.forget()
	c.mu.Unlock()

	if token == "" || provider == "" {
		return nil
	}
	target, err := providerEndpoint(provider, "logout")
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrIdentityProviderUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrIdentityProviderUnavailable, err)
	}
	req.Header.Set(HeaderAuth, "Bearer "+token)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrIdentityProviderUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", core.ErrIdentityProviderUnavailable, resp.StatusCode)
	}
	return nil
}

// providerEndpoint appends a route to the provider URL, keeping its query
// (local replicas are addressed with ?canisterId=...).
func providerEndpoint(raw, route string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported provider url %q", raw)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + route
	return u.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ core.IdentityProvider = (*IdentityClient)(nil)
