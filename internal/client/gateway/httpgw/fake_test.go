package httpgw

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/auth"
)

type streamMsg struct {
	identity *auth.Identity
	drop     bool
}

// fakeService answers like the identity service over real HTTP.
type fakeService struct {
	mu        sync.Mutex
	passwords map[string]string
	accounts  map[string]*auth.Identity
	sessions  map[string]string // token -> email
	flows     map[string]*flowStatus
	streams   map[string]chan streamMsg
	logouts   []string
	seq       int

	connects chan string
}

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	t.Helper()
	f := &fakeService{
		passwords: map[string]string{},
		accounts:  map[string]*auth.Identity{},
		sessions:  map[string]string{},
		flows:     map[string]*flowStatus{},
		streams:   map[string]chan streamMsg{},
		connects:  make(chan string, 16),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", f.register)
	mux.HandleFunc("POST /auth/login", f.login)
	mux.HandleFunc("POST /auth/logout", f.logout)
	mux.HandleFunc("GET /auth/me", f.me)
	mux.HandleFunc("PATCH /auth/profile", f.profile)
	mux.HandleFunc("POST /auth/federated/{provider}/start", f.startFlow)
	mux.HandleFunc("GET /auth/federated/flows/{id}", f.pollFlow)
	mux.HandleFunc("GET /auth/events", f.events)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, err *apperrors.Error) {
	writeJSON(w, err.Code.HTTPStatus(), errorBody{Error: err.Message, Code: string(err.Code)})
}

// addAccount creates an account and returns a session token for it.
func (f *fakeService) addAccount(email, password string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwords[email] = password
	f.accounts[email] = &auth.Identity{
		ID:        fmt.Sprintf("u-%d", len(f.accounts)+1),
		Email:     email,
		Provider:  "password",
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	return f.issueLocked(email)
}

func (f *fakeService) issueLocked(email string) string {
	f.seq++
	tok := fmt.Sprintf("tok-%d", f.seq)
	f.sessions[tok] = email
	f.streams[tok] = make(chan streamMsg, 8)
	return tok
}

func (f *fakeService) signIn(w http.ResponseWriter, status int, email string) {
	f.mu.Lock()
	tok := f.issueLocked(email)
	identity := f.accounts[email].Clone()
	f.mu.Unlock()
	writeJSON(w, status, signInResponse{Token: tok, Identity: identity, ExpiresAt: time.Now().Add(time.Hour).UTC()})
}

func (f *fakeService) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	_, exists := f.accounts[req.Email]
	f.mu.Unlock()
	if exists {
		writeFailure(w, apperrors.ErrEmailAlreadyInUse)
		return
	}
	f.addAccount(req.Email, req.Password)
	f.signIn(w, http.StatusCreated, req.Email)
}

func (f *fakeService) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	pw, ok := f.passwords[req.Email]
	f.mu.Unlock()
	switch {
	case !ok:
		writeFailure(w, apperrors.ErrAccountNotFound)
	case pw != req.Password:
		writeFailure(w, apperrors.ErrInvalidCredentials)
	default:
		f.signIn(w, http.StatusOK, req.Email)
	}
}

func (f *fakeService) authorize(r *http.Request) (*auth.Identity, string, bool) {
	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.sessions[tok]
	if !ok {
		return nil, "", false
	}
	return f.accounts[email].Clone(), tok, true
}

func (f *fakeService) logout(w http.ResponseWriter, r *http.Request) {
	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	f.logouts = append(f.logouts, tok)
	delete(f.sessions, tok)
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeService) me(w http.ResponseWriter, r *http.Request) {
	identity, _, ok := f.authorize(r)
	if !ok {
		writeFailure(w, apperrors.ErrNotAuthenticated)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (f *fakeService) profile(w http.ResponseWriter, r *http.Request) {
	identity, _, ok := f.authorize(r)
	if !ok {
		writeFailure(w, apperrors.ErrNotAuthenticated)
		return
	}
	var fields struct {
		DisplayName *string `json:"displayName"`
		PhotoURL    *string `json:"photoURL"`
	}
	_ = json.NewDecoder(r.Body).Decode(&fields)

	f.mu.Lock()
	acc := f.accounts[identity.Email]
	if fields.DisplayName != nil {
		acc.DisplayName = *fields.DisplayName
	}
	if fields.PhotoURL != nil {
		acc.PhotoURL = *fields.PhotoURL
	}
	updated := acc.Clone()
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, updated)
}

func (f *fakeService) startFlow(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("provider") != "google" {
		writeFailure(w, apperrors.New(apperrors.CodeProviderError, "unknown provider"))
		return
	}
	f.mu.Lock()
	f.seq++
	id := fmt.Sprintf("flow-%d", f.seq)
	f.flows[id] = &flowStatus{Status: flowPending}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, startFlowResponse{FlowID: id, AuthURL: "https://accounts.example.com/auth?flow=" + id})
}

func (f *fakeService) pollFlow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.mu.Lock()
	st, ok := f.flows[id]
	if ok && st.Status != flowPending {
		delete(f.flows, id)
	}
	var out flowStatus
	if ok {
		out = *st
	}
	f.mu.Unlock()
	if !ok {
		writeFailure(w, apperrors.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// completeFlow finishes a flow for email, creating the account if needed.
func (f *fakeService) completeFlow(id, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[email]; !ok {
		f.accounts[email] = &auth.Identity{ID: "u-fed", Email: email, Provider: "google"}
	}
	tok := f.issueLocked(email)
	f.flows[id] = &flowStatus{Status: flowComplete, Token: tok, Identity: f.accounts[email].Clone()}
}

func (f *fakeService) failFlow(id string, code apperrors.Code) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flows[id] = &flowStatus{Status: flowFailed, Code: string(code), Error: "denied"}
}

func (f *fakeService) events(w http.ResponseWriter, r *http.Request) {
	identity, tok, ok := f.authorize(r)
	if !ok {
		writeFailure(w, apperrors.ErrNotAuthenticated)
		return
	}
	f.mu.Lock()
	ch := f.streams[tok]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher := w.(http.Flusher)
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	writeEvent(w, identity)
	flusher.Flush()

	select {
	case f.connects <- tok:
	default:
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-ch:
			if msg.drop {
				return
			}
			writeEvent(w, msg.identity)
			flusher.Flush()
			if msg.identity == nil {
				return
			}
		}
	}
}

// writeEvent frames an event the way gin's SSE renderer does.
func writeEvent(w http.ResponseWriter, identity *auth.Identity) {
	payload, _ := json.Marshal(identity)
	_, _ = fmt.Fprintf(w, "event:identity\ndata:%s\n\n", payload)
}

func (f *fakeService) push(tok string, identity *auth.Identity) {
	f.mu.Lock()
	ch := f.streams[tok]
	f.mu.Unlock()
	ch <- streamMsg{identity: identity}
}

func (f *fakeService) drop(tok string) {
	f.mu.Lock()
	ch := f.streams[tok]
	f.mu.Unlock()
	ch <- streamMsg{drop: true}
}

// revoke ends the session on the service side and cuts the stream.
func (f *fakeService) revoke(tok string) {
	f.mu.Lock()
	delete(f.sessions, tok)
	ch := f.streams[tok]
	f.mu.Unlock()
	ch <- streamMsg{drop: true}
}

func (f *fakeService) update(email string, fn func(*auth.Identity)) *auth.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.accounts[email])
	return f.accounts[email].Clone()
}

func (f *fakeService) loggedOut() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.logouts...)
}

func (f *fakeService) waitConnect(t *testing.T) string {
	t.Helper()
	select {
	case tok := <-f.connects:
		return tok
	case <-time.After(2 * time.Second):
		t.Fatal("event stream never connected")
		return ""
	}
}
