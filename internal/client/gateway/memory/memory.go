// Package memory is an in-process identity gateway. It applies the same
// account rules as the identity service and backs offline mode and tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/auth"
	"ecotrack/internal/auth/policy"
	"ecotrack/internal/client/gateway"
)

// Op names a gateway mutator for hooks and injected failures.
type Op string

const (
	OpCreateAccount     Op = "create_account"
	OpSignIn            Op = "sign_in"
	OpSignInInteractive Op = "sign_in_interactive"
	OpSignOut           Op = "sign_out"
	OpUpdateProfile     Op = "update_profile"
)

// InteractiveFunc stands in for the provider's consent screen. It returns
// the identity the provider vouches for.
type InteractiveFunc func(ctx context.Context, provider string) (*auth.Identity, error)

type Option func(*Gateway)

// WithoutProfileEvents makes profile updates silent on the change feed.
func WithoutProfileEvents() Option {
	return func(g *Gateway) { g.silentProfile = true }
}

func WithInteractive(fn InteractiveFunc) Option {
	return func(g *Gateway) { g.interactive = fn }
}

// WithManualSettle leaves the gateway unsettled until Settle is called.
func WithManualSettle() Option {
	return func(g *Gateway) { g.manualSettle = true }
}

// WithHook runs fn before every mutator. A non-nil error fails the call.
func WithHook(fn func(ctx context.Context, op Op) error) Option {
	return func(g *Gateway) { g.hook = fn }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

type account struct {
	identity *auth.Identity
	hash     []byte
}

type Gateway struct {
	feed          *gateway.Feed
	interactive   InteractiveFunc
	hook          func(context.Context, Op) error
	silentProfile bool
	manualSettle  bool
	now           func() time.Time

	emit sync.Mutex // orders state changes with their publication

	mu       sync.Mutex
	accounts map[string]*account
	current  *auth.Identity
	failures map[Op]error
}

var _ gateway.Gateway = (*Gateway)(nil)

func New(opts ...Option) *Gateway {
	g := &Gateway{
		feed:     gateway.NewFeed(),
		now:      time.Now,
		accounts: make(map[string]*account),
		failures: make(map[Op]error),
	}
	for _, opt := range opts {
		opt(g)
	}
	if !g.manualSettle {
		g.feed.Publish(nil)
	}
	return g
}

// Settle publishes the restored identity (nil for none).
func (g *Gateway) Settle(identity *auth.Identity) {
	g.setCurrent(identity)
}

// Emit publishes an out-of-band change such as an expired session.
func (g *Gateway) Emit(identity *auth.Identity) {
	g.setCurrent(identity)
}

// FailNext makes the next call of op fail with err.
func (g *Gateway) FailNext(op Op, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op] = err
}

// AddAccount creates a password account without signing it in.
func (g *Gateway) AddAccount(email, password string) (*auth.Identity, error) {
	return g.createAccount(email, password)
}

func (g *Gateway) CreateAccount(ctx context.Context, email, password string) (*auth.Identity, error) {
	if err := g.before(ctx, OpCreateAccount); err != nil {
		return nil, err
	}
	identity, err := g.createAccount(email, password)
	if err != nil {
		return nil, err
	}
	g.setCurrent(identity)
	return identity, nil
}

func (g *Gateway) SignIn(ctx context.Context, email, password string) (*auth.Identity, error) {
	if err := g.before(ctx, OpSignIn); err != nil {
		return nil, err
	}
	email = policy.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentialsFormat
	}

	g.mu.Lock()
	acc, ok := g.accounts[strings.ToLower(email)]
	g.mu.Unlock()
	if !ok || acc.hash == nil {
		return nil, apperrors.ErrAccountNotFound
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	identity := g.touch(acc)
	g.setCurrent(identity)
	return identity, nil
}

func (g *Gateway) SignInInteractive(ctx context.Context, provider string) (*auth.Identity, error) {
	if err := g.before(ctx, OpSignInInteractive); err != nil {
		return nil, err
	}
	if g.interactive == nil {
		return nil, apperrors.New(apperrors.CodeProviderError, "no interactive provider configured")
	}

	vouched, err := g.interactive(ctx, provider)
	if err != nil {
		return nil, err
	}
	if vouched == nil || vouched.Email == "" {
		return nil, apperrors.New(apperrors.CodeProviderError, "provider returned no identity")
	}

	key := strings.ToLower(vouched.Email)
	g.mu.Lock()
	acc, ok := g.accounts[key]
	if ok && acc.hash != nil {
		g.mu.Unlock()
		return nil, apperrors.New(apperrors.CodeEmailAlreadyInUse,
			"an account with this email exists; sign in the way you did before")
	}
	if !ok {
		identity := vouched.Clone()
		if identity.ID == "" {
			identity.ID = uuid.NewString()
		}
		identity.Provider = provider
		identity.CreatedAt = g.now()
		acc = &account{identity: identity}
		g.accounts[key] = acc
	}
	g.mu.Unlock()

	identity := g.touch(acc)
	g.setCurrent(identity)
	return identity, nil
}

func (g *Gateway) SignOut(ctx context.Context) error {
	if err := g.before(ctx, OpSignOut); err != nil {
		return err
	}
	g.setCurrent(nil)
	return nil
}

func (g *Gateway) UpdateProfileFields(ctx context.Context, fields gateway.ProfileFields) error {
	if err := g.before(ctx, OpUpdateProfile); err != nil {
		return err
	}

	g.emit.Lock()
	defer g.emit.Unlock()

	g.mu.Lock()
	if g.current == nil {
		g.mu.Unlock()
		return apperrors.ErrNotAuthenticated
	}
	acc, ok := g.accounts[strings.ToLower(g.current.Email)]
	if !ok {
		g.mu.Unlock()
		return apperrors.ErrNotAuthenticated
	}
	if fields.DisplayName != nil {
		acc.identity.DisplayName = *fields.DisplayName
	}
	if fields.PhotoURL != nil {
		acc.identity.PhotoURL = *fields.PhotoURL
	}
	g.current = acc.identity.Clone()
	updated := g.current.Clone()
	g.mu.Unlock()

	if !g.silentProfile {
		g.feed.Publish(updated)
	}
	return nil
}

func (g *Gateway) CurrentIdentity() *auth.Identity {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current.Clone()
}

func (g *Gateway) OnIdentityChange(fn func(*auth.Identity)) func() {
	return g.feed.Subscribe(fn)
}

func (g *Gateway) createAccount(email, password string) (*auth.Identity, error) {
	email = policy.NormalizeEmail(email)
	if err := policy.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := policy.ValidatePassword(password); err != nil {
		return nil, err
	}

	// MinCost: accounts here never leave the process.
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeWeakPassword, "password cannot be used", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	key := strings.ToLower(email)
	if _, ok := g.accounts[key]; ok {
		return nil, apperrors.ErrEmailAlreadyInUse
	}
	now := g.now()
	identity := &auth.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		Provider:     "password",
		CreatedAt:    now,
		LastSignInAt: now,
	}
	g.accounts[key] = &account{identity: identity, hash: hash}
	return identity.Clone(), nil
}

func (g *Gateway) touch(acc *account) *auth.Identity {
	g.mu.Lock()
	defer g.mu.Unlock()
	acc.identity.LastSignInAt = g.now()
	return acc.identity.Clone()
}

func (g *Gateway) setCurrent(identity *auth.Identity) {
	g.emit.Lock()
	defer g.emit.Unlock()

	g.mu.Lock()
	g.current = identity.Clone()
	g.mu.Unlock()

	g.feed.Publish(identity)
}

func (g *Gateway) before(ctx context.Context, op Op) error {
	if g.hook != nil {
		if err := g.hook(ctx, op); err != nil {
			return err
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.failures[op]; ok {
		delete(g.failures, op)
		return err
	}
	return nil
}
