package fakes

import (
	"context"
	"sync"

	"github.com/aretw0/orbit/pkg/core"
)

// Provider is a scripted identity provider.
type Provider struct {
	mu            sync.Mutex
	authenticated bool
	identity      core.Identity

	// LoginIdentity is adopted on a successful Login.
	LoginIdentity core.Identity
	LoginErr      error
	CheckErr      error
	LogoutErr     error

	LastConfig core.LoginConfig
	Logins     int
	Logouts    int
	Checks     int
}

// NewProvider returns a provider that logs in as id.
func NewProvider(id core.Identity) *Provider {
	return &Provider{LoginIdentity: id}
}

// SetAuthenticated primes an existing delegated session.
func (p *Provider) SetAuthenticated(id core.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authenticated = true
	p.identity = id
}

func (p *Provider) IsAuthenticated(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Checks++
	if p.CheckErr != nil {
		return false, p.CheckErr
	}
	return p.authenticated, nil
}

func (p *Provider) GetIdentity(ctx context.Context) (core.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.authenticated {
		return core.NewIdentity(core.AnonymousHandle), nil
	}
	return p.identity, nil
}

func (p *Provider) Login(ctx context.Context, cfg core.LoginConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Logins++
	p.LastConfig = cfg
	if p.LoginErr != nil {
		return p.LoginErr
	}
	p.authenticated = true
	p.identity = p.LoginIdentity
	return nil
}

func (p *Provider) Logout(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Logouts++
	p.authenticated = false
	p.identity = core.NoIdentity
	return p.LogoutErr
}

var _ core.IdentityProvider = (*Provider)(nil)
