package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecotrack/internal/auth"
	"ecotrack/internal/auth/feed"
	"ecotrack/internal/auth/flow"
	"ecotrack/internal/auth/provider"
	"ecotrack/internal/auth/token"
	"ecotrack/internal/metrics"
	"ecotrack/internal/middleware"
	"ecotrack/internal/session"
)

type testServer struct {
	router   *gin.Engine
	accounts *fakeAccounts
	sessions *memSessions
	flows    *memFlows
	google   *fakeProvider
	feed     *fakeFeed
	tokens   *token.Issuer
	now      time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &testServer{
		accounts: &fakeAccounts{identities: map[string]*auth.Identity{}},
		sessions: &memSessions{sessions: map[string]session.Session{}},
		flows:    &memFlows{flows: map[string]flow.Flow{}, byState: map[string]string{}},
		feed:     &fakeFeed{stream: make(chan feed.Event, 4)},
		now:      time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return s.now }
	s.tokens = token.NewIssuer("0123456789abcdef0123456789abcdef", "ecotrack-test", clock)
	s.google = &fakeProvider{
		name: "google",
		identity: &auth.ProviderIdentity{
			Provider: "google", ProviderUserID: "g-1", Email: "fed@example.com", Name: "Fed",
		},
	}
	s.accounts.put(&auth.Identity{ID: "fed-user", Email: "fed@example.com", DisplayName: "Fed", Provider: "google"})

	creds := &fakeCredentials{
		accounts: map[string]fakeAccount{},
		onCreate: func(id, email string) {
			s.accounts.put(&auth.Identity{ID: id, Email: email, Provider: "password", CreatedAt: s.now})
		},
	}

	h := NewHandler(Deps{
		Credentials: creds,
		Accounts:    s.accounts,
		Sessions:    s.sessions,
		Flows:       s.flows,
		Providers:   provider.NewRegistry(s.google),
		Resolver:    fakeResolver{userID: "fed-user"},
		Limiter:     &fakeLimiter{limit: 3, hits: map[string]int{}},
		Feed:        s.feed,
		Tokens:      s.tokens,
		Metrics:     metrics.New(),
		SessionTTL:  time.Hour,
		Now:         clock,
	})
	mw := &middleware.AuthMiddleware{Tokens: s.tokens, Store: s.sessions, Now: clock}

	s.router = gin.New()
	h.RegisterRoutes(s.router, middleware.GinRequireAuth(mw))
	return s
}

func (s *testServer) do(t *testing.T, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["code"]
}

func (s *testServer) register(t *testing.T, email string) signInResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/register", gin.H{"email": email, "password": "Abc123!"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[signInResponse](t, rec)
}

func TestRegister(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp := s.register(t, "x@y.com")

	require.NotNil(t, resp.Identity)
	assert.Equal(t, "x@y.com", resp.Identity.Email)
	assert.Empty(t, resp.Identity.DisplayName)
	assert.Empty(t, resp.Identity.PhotoURL)

	claims, err := s.tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.Identity.ID, claims.UserID)
	assert.Equal(t, 1, s.sessions.count())
	assert.Equal(t, []string{resp.Identity.ID}, s.accounts.touched)

	rec := s.do(t, http.MethodPost, "/auth/register", gin.H{"email": "X@Y.com", "password": "Abc123!"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EMAIL_ALREADY_IN_USE", errorCode(t, rec))
}

func TestRegisterRejectsBadInput(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	cases := []struct {
		email, password, code string
	}{
		{"not-an-email", "Abc123!", "INVALID_CREDENTIALS_FORMAT"},
		{"a@b.com", "", "INVALID_CREDENTIALS_FORMAT"},
		{"a@b.com", "abc", "WEAK_PASSWORD"},
		{"a@b.com", "abcdef!", "WEAK_PASSWORD"},
	}
	for _, tc := range cases {
		rec := s.do(t, http.MethodPost, "/auth/register", gin.H{"email": tc.email, "password": tc.password}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc)
		assert.Equal(t, tc.code, errorCode(t, rec), tc)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.register(t, "x@y.com")

	rec := s.do(t, http.MethodPost, "/auth/login", gin.H{"email": "x@y.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/auth/login", gin.H{"email": "nobody@y.com", "password": "Abc123!"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ACCOUNT_NOT_FOUND", errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/auth/login", gin.H{"email": " X@y.com ", "password": "Abc123!"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[signInResponse](t, rec)
	assert.Equal(t, "x@y.com", resp.Identity.Email)
	assert.True(t, s.now.Add(time.Hour).Equal(resp.ExpiresAt))
}

func TestLoginIsRateLimited(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	for i := 0; i < 3; i++ {
		rec := s.do(t, http.MethodPost, "/auth/login", gin.H{"email": "a@b.com", "password": "x"}, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
	rec := s.do(t, http.MethodPost, "/auth/login", gin.H{"email": "A@B.com", "password": "x"}, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", errorCode(t, rec))
}

func TestLogoutIsIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	resp := s.register(t, "x@y.com")

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/auth/me", nil, resp.Token).Code)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodPost, "/auth/logout", nil, resp.Token).Code)
	assert.Zero(t, s.sessions.count())

	pubs := s.feed.all()
	require.Len(t, pubs, 1)
	claims, err := s.tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, feed.SessionChannel(claims.SessionID), pubs[0].channel)
	assert.Nil(t, pubs[0].identity)

	rec := s.do(t, http.MethodGet, "/auth/me", nil, resp.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "NOT_AUTHENTICATED", errorCode(t, rec))

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodPost, "/auth/logout", nil, resp.Token).Code)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodPost, "/auth/logout", nil, "").Code)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodPost, "/auth/logout", nil, "junk").Code)
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	resp := s.register(t, "x@y.com")

	rec := s.do(t, http.MethodPatch, "/auth/profile",
		gin.H{"displayName": " Jane ", "photoURL": "http://img.example.com/1.png"}, resp.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[auth.Identity](t, rec)
	assert.Equal(t, "Jane", updated.DisplayName)
	assert.Equal(t, "http://img.example.com/1.png", updated.PhotoURL)
	assert.Equal(t, "x@y.com", updated.Email)

	pubs := s.feed.all()
	require.Len(t, pubs, 1)
	assert.Equal(t, feed.UserChannel(resp.Identity.ID), pubs[0].channel)
	assert.Equal(t, "Jane", pubs[0].identity.DisplayName)

	rec = s.do(t, http.MethodPatch, "/auth/profile", gin.H{"displayName": "June"}, resp.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	updated = decode[auth.Identity](t, rec)
	assert.Equal(t, "June", updated.DisplayName)
	assert.Equal(t, "http://img.example.com/1.png", updated.PhotoURL)

	rec = s.do(t, http.MethodPatch, "/auth/profile", gin.H{"photoURL": "ftp://x/1.txt"}, resp.Token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS_FORMAT", errorCode(t, rec))

	rec = s.do(t, http.MethodPatch, "/auth/profile", gin.H{"displayName": "Nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func startFlow(t *testing.T, s *testServer) (flowID, state string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/federated/google/start", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[startFederatedResponse](t, rec)

	u, err := url.Parse(resp.AuthURL)
	require.NoError(t, err)
	require.NotEmpty(t, u.Query().Get("state"))
	require.NotEmpty(t, u.Query().Get("code_challenge"))
	return resp.FlowID, u.Query().Get("state")
}

func TestFederatedSignIn(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	flowID, state := startFlow(t, s)

	rec := s.do(t, http.MethodGet, "/auth/federated/flows/"+flowID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", decode[flowStatusResponse](t, rec).Status)

	pending, _ := s.flows.Get(t.Context(), flowID)
	require.NotNil(t, pending)

	rec = s.do(t, http.MethodGet, "/oauth/callback/google?code=ok-1&state="+url.QueryEscape(state), nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pending.Verifier, s.google.verifier)

	rec = s.do(t, http.MethodGet, "/auth/federated/flows/"+flowID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	done := decode[flowStatusResponse](t, rec)
	assert.Equal(t, "complete", done.Status)
	require.NotNil(t, done.Identity)
	assert.Equal(t, "fed-user", done.Identity.ID)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/auth/me", nil, done.Token).Code)

	// handed out once
	rec = s.do(t, http.MethodGet, "/auth/federated/flows/"+flowID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// replayed callback
	rec = s.do(t, http.MethodGet, "/oauth/callback/google?code=ok-1&state="+url.QueryEscape(state), nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFederatedFailures(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/federated/github/start", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PROVIDER_ERROR", errorCode(t, rec))

	cases := []struct {
		query string
		code  string
	}{
		{"error=access_denied", "USER_CANCELLED"},
		{"error=server_error", "PROVIDER_ERROR"},
		{"code=bad", "PROVIDER_ERROR"},
		{"", "PROVIDER_ERROR"},
	}
	for _, tc := range cases {
		flowID, state := startFlow(t, s)
		q := "state=" + url.QueryEscape(state)
		if tc.query != "" {
			q += "&" + tc.query
		}
		rec := s.do(t, http.MethodGet, "/oauth/callback/google?"+q, nil, "")
		assert.Equal(t, http.StatusOK, rec.Code, tc.query)

		rec = s.do(t, http.MethodGet, "/auth/federated/flows/"+flowID, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[flowStatusResponse](t, rec)
		assert.Equal(t, "failed", res.Status, tc.query)
		assert.Equal(t, tc.code, string(res.Code), tc.query)
		assert.Empty(t, res.Token)
	}

	rec = s.do(t, http.MethodGet, "/oauth/callback/google?state=unknown&code=ok-1", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodGet, "/auth/federated/flows/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestEventsStream(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	resp := s.register(t, "x@y.com")

	renamed := resp.Identity.Clone()
	renamed.DisplayName = "Jane"
	s.feed.stream <- feed.Event{Identity: renamed}
	s.feed.stream <- feed.Event{Identity: nil}

	rec := s.do(t, http.MethodGet, "/auth/events", nil, resp.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Equal(t, 3, strings.Count(body, "event:identity\n"), body)
	assert.Contains(t, body, `"displayName":"Jane"`)
	assert.True(t, strings.HasSuffix(body, "data:null\n\n"), body)
}

func TestEventsRequiresAuth(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/auth/events", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
