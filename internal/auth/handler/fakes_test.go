package handler

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/auth"
	"ecotrack/internal/auth/account"
	"ecotrack/internal/auth/feed"
	"ecotrack/internal/auth/flow"
	"ecotrack/internal/auth/policy"
	"ecotrack/internal/auth/provider"
	"ecotrack/internal/session"
)

type fakeCredentials struct {
	mu       sync.Mutex
	accounts map[string]fakeAccount
	next     int
	onCreate func(userID, email string)
}

type fakeAccount struct {
	userID   string
	password string
}

func (f *fakeCredentials) Register(_ context.Context, email, password string) (string, error) {
	email = policy.NormalizeEmail(email)
	if err := policy.ValidateEmail(email); err != nil {
		return "", err
	}
	if err := policy.ValidatePassword(password); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[strings.ToLower(email)]; ok {
		return "", apperrors.ErrEmailAlreadyInUse
	}
	f.next++
	id := "user-" + strconv.Itoa(f.next)
	f.accounts[strings.ToLower(email)] = fakeAccount{userID: id, password: password}
	if f.onCreate != nil {
		f.onCreate(id, email)
	}
	return id, nil
}

func (f *fakeCredentials) Authenticate(_ context.Context, email, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[strings.ToLower(policy.NormalizeEmail(email))]
	if !ok {
		return "", apperrors.ErrAccountNotFound
	}
	if acc.password != password {
		return "", apperrors.ErrInvalidCredentials
	}
	return acc.userID, nil
}

type fakeAccounts struct {
	mu         sync.Mutex
	identities map[string]*auth.Identity
	touched    []string
}

func (f *fakeAccounts) put(identity *auth.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identities[identity.ID] = identity.Clone()
}

func (f *fakeAccounts) Get(_ context.Context, id string) (*auth.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.identities[id]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "account not found")
	}
	return identity.Clone(), nil
}

func (f *fakeAccounts) UpdateProfile(ctx context.Context, id string, fields account.ProfileFields) (*auth.Identity, error) {
	f.mu.Lock()
	identity, ok := f.identities[id]
	if ok {
		if fields.DisplayName != nil {
			identity.DisplayName = *fields.DisplayName
		}
		if fields.PhotoURL != nil {
			identity.PhotoURL = *fields.PhotoURL
		}
	}
	f.mu.Unlock()
	return f.Get(ctx, id)
}

func (f *fakeAccounts) TouchSignIn(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return nil
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]session.Session
}

func (m *memSessions) Create(_ context.Context, s session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s
	return nil
}

func (m *memSessions) Get(_ context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type memFlows struct {
	mu      sync.Mutex
	flows   map[string]flow.Flow
	byState map[string]string
}

func (m *memFlows) Create(_ context.Context, f flow.Flow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flows[f.ID] = f
	m.byState[f.State] = f.ID
	return nil
}

func (m *memFlows) Get(_ context.Context, id string) (*flow.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flows[id]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (m *memFlows) ByState(ctx context.Context, state string) (*flow.Flow, error) {
	m.mu.Lock()
	id, ok := m.byState[state]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return m.Get(ctx, id)
}

func (m *memFlows) Finish(_ context.Context, f flow.Flow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flows[f.ID] = f
	delete(m.byState, f.State)
	return nil
}

func (m *memFlows) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flows, id)
	return nil
}

type fakeProvider struct {
	name     string
	identity *auth.ProviderIdentity
	err      error

	mu       sync.Mutex
	verifier string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthCodeURL(state, challenge string) string {
	q := url.Values{"state": {state}, "code_challenge": {challenge}}
	return "https://idp.example.com/authorize?" + q.Encode()
}

func (p *fakeProvider) ExchangeCode(_ context.Context, code, verifier string) (*auth.ProviderIdentity, error) {
	p.mu.Lock()
	p.verifier = verifier
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	if !strings.HasPrefix(code, "ok-") {
		return nil, apperrors.New(apperrors.CodeProviderError, "bad code")
	}
	return p.identity, nil
}

type fakeResolver struct {
	userID string
}

func (r fakeResolver) Resolve(context.Context, *auth.ProviderIdentity) (string, error) {
	return r.userID, nil
}

type fakeLimiter struct {
	mu    sync.Mutex
	limit int
	hits  map[string]int
}

func (l *fakeLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hits[key]++
	return l.hits[key] <= l.limit, nil
}

type published struct {
	channel  string
	identity *auth.Identity
}

type fakeFeed struct {
	mu        sync.Mutex
	published []published
	stream    chan feed.Event
}

func (f *fakeFeed) PublishSession(_ context.Context, sid string, identity *auth.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{feed.SessionChannel(sid), identity.Clone()})
	return nil
}

func (f *fakeFeed) PublishUser(_ context.Context, uid string, identity *auth.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{feed.UserChannel(uid), identity.Clone()})
	return nil
}

func (f *fakeFeed) Subscribe(context.Context, string, string) (<-chan feed.Event, error) {
	return f.stream, nil
}

func (f *fakeFeed) all() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.published...)
}

var _ Providers = (*provider.Registry)(nil)
