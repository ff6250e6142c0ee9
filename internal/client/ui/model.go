// Package ui is the EcoTrack terminal client. Every screen change goes
// through the route guard, and session changes arrive from the session
// store as messages.
package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"ecotrack/internal/client/api"
	"ecotrack/internal/client/guard"
	"ecotrack/internal/client/routepath"
	"ecotrack/internal/client/sessionstore"
	"ecotrack/internal/logger"
)

const maxHistory = 50

// DataClient is the EcoTrack API as the screens use it.
type DataClient interface {
	ListChallenges(ctx context.Context, f api.ChallengeFilter) ([]api.Challenge, error)
	GetChallenge(ctx context.Context, id string) (*api.Challenge, error)
	CreateChallenge(ctx context.Context, email string, ch api.NewChallenge) error
	JoinChallenge(ctx context.Context, id, email string) error
	ListUserChallenges(ctx context.Context, email string) ([]api.UserChallenge, error)
	UserChallenge(ctx context.Context, email, id string) (*api.UserChallenge, error)
	UpdateProgress(ctx context.Context, id string, progress int, status api.Status) error
	ListEvents(ctx context.Context) ([]api.Event, error)
	GetEvent(ctx context.Context, id string) (*api.Event, error)
	JoinEvent(ctx context.Context, id, email string) error
	ListTips(ctx context.Context) ([]api.Tip, error)
	Statistics(ctx context.Context) (*api.Statistics, error)
}

type Deps struct {
	Store *sessionstore.Store
	Guard *guard.Guard
	Data  DataClient
	// Provider is used for federated sign-in.
	Provider string
}

type Model struct {
	store    *sessionstore.Store
	guard    *guard.Guard
	data     DataClient
	provider string
	keys     KeyMap

	snapshots <-chan sessionstore.Snapshot
	stopWatch func()
	snap      sessionstore.Snapshot

	// path is the screen being shown, pattern and id its route match.
	path    string
	pattern string
	id      string
	outcome guard.Outcome
	gen     uint64
	history []string

	notice string
	status string
	errMsg string

	busy        bool // a session operation is in flight
	acting      bool // a data mutation is in flight
	loading     bool
	awaitSignIn bool
	cancelAuth  context.CancelFunc

	form   *form
	cursor int
	filter int // 0 is all categories, i is api.Categories[i-1]

	stats      *api.Statistics
	challenges []api.Challenge
	challenge  *api.Challenge
	events     []api.Event
	event      *api.Event
	tips       []api.Tip
	activities []api.UserChallenge
	activity   *api.UserChallenge
	progress   int
	progStatus api.Status
	impact     *api.Impact

	width, height int
}

func New(d Deps) Model {
	snapshots, stop := d.Store.Watch()
	return Model{
		store:     d.Store,
		guard:     d.Guard,
		data:      d.Data,
		provider:  d.Provider,
		keys:      DefaultKeyMap,
		snapshots: snapshots,
		stopWatch: stop,
		snap:      d.Store.Snapshot(),
		path:      routepath.Root,
		outcome:   guard.Pending,
	}
}

// Close stops the snapshot subscription and any federated sign-in.
func (m Model) Close() {
	if m.cancelAuth != nil {
		m.cancelAuth()
	}
	m.stopWatch()
}

func (m Model) Init() tea.Cmd {
	return listenForSnapshot(m.snapshots)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case snapshotMsg:
		return m.onSnapshot(msg.snap)

	case navigateMsg:
		return m.visit(msg.path)

	case loadedMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.errMsg = describe(msg.err)
			return m, nil
		}
		if msg.apply != nil {
			msg.apply(&m)
		}
		return m, nil

	case actionDoneMsg:
		m.acting = false
		if msg.gen != m.gen {
			return m, nil
		}
		if msg.err != nil {
			m.errMsg = describe(msg.err)
			return m, nil
		}
		if msg.next != "" {
			next, cmd := m.visit(msg.next)
			next.status = msg.success
			return next, cmd
		}
		m.status = msg.success
		return m, m.enter()

	case authDoneMsg:
		return m.onAuthDone(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.form != nil {
		return m, m.form.update(msg)
	}
	return m, nil
}

func (m Model) onSnapshot(snap sessionstore.Snapshot) (tea.Model, tea.Cmd) {
	listen := listenForSnapshot(m.snapshots)
	m.snap = snap

	if m.awaitSignIn && snap.SignedIn() {
		m.awaitSignIn = false
		status := m.status
		next, cmd := m.visit(m.guard.AfterSignIn())
		next.status = status
		return next, tea.Batch(listen, cmd)
	}
	if m.outcome == guard.Pending || (!snap.SignedIn() && routepath.IsProtected(m.path)) {
		next, cmd := m.navigate(m.path)
		return next, tea.Batch(listen, cmd)
	}
	return m, listen
}

// visit navigates to path and remembers the current screen for Back.
func (m Model) visit(path string) (Model, tea.Cmd) {
	if m.path != "" && m.path != path && m.outcome != guard.Pending {
		m.history = append(m.history, m.path)
		if len(m.history) > maxHistory {
			m.history = m.history[len(m.history)-maxHistory:]
		}
	}
	return m.navigate(path)
}

func (m Model) back() (Model, tea.Cmd) {
	if len(m.history) == 0 {
		return m, nil
	}
	prev := m.history[len(m.history)-1]
	m.history = m.history[:len(m.history)-1]
	return m.navigate(prev)
}

// navigate asks the guard about path and shows what it decides. Each
// call starts a new screen generation; results of earlier screens are
// dropped when they arrive.
func (m Model) navigate(path string) (Model, tea.Cmd) {
	if inSignInFlow(m.path) && !inSignInFlow(path) {
		m.guard.Discard()
	}

	m.gen++
	m.path = path
	m.resetScreen()
	m.snap = m.store.Snapshot()

	d := m.guard.Check(m.snap, path)
	m.outcome = d.Outcome
	switch d.Outcome {
	case guard.Pending:
		m.pattern, m.id = "", ""
		return m, nil
	case guard.Redirect:
		m.path = d.Path
		if n, ok := m.guard.TakeNotice(); ok {
			m.notice = n.Message
		}
		logger.Info("redirected to sign-in", map[string]any{"from": path})
	}

	pattern, id, ok := routepath.Match(m.path)
	if !ok {
		m.pattern, m.id = "", ""
		m.errMsg = "Page not found."
		return m, nil
	}
	m.pattern, m.id = pattern, id
	cmd := m.enter()
	return m, cmd
}

func (m *Model) resetScreen() {
	m.notice, m.status, m.errMsg = "", "", ""
	m.form = nil
	m.cursor = 0
	m.loading = false
	m.stats = nil
	m.challenges, m.challenge = nil, nil
	m.events, m.event = nil, nil
	m.tips = nil
	m.activities, m.activity = nil, nil
	m.impact = nil
}

func (m Model) onAuthDone(msg authDoneMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.op == opFederated && m.cancelAuth != nil {
		m.cancelAuth()
		m.cancelAuth = nil
	}

	var partial *profileError
	if errors.As(msg.err, &partial) {
		msg.err = nil
	}
	if msg.err != nil {
		if msg.gen == m.gen {
			m.errMsg = describe(msg.err)
		}
		return m, nil
	}

	switch msg.op {
	case opLogin, opRegister, opFederated:
		if msg.gen != m.gen {
			return m, nil
		}
		status := "Signed in."
		if partial != nil {
			status = "Account created, but the profile was not saved: " + describe(partial.err)
		}
		if m.store.Snapshot().SignedIn() {
			next, cmd := m.visit(m.guard.AfterSignIn())
			next.status = status
			return next, cmd
		}
		m.awaitSignIn = true
		m.status = status
	case opLogout:
		m.status = "Signed out."
	case opProfile:
		if msg.gen == m.gen {
			m.form = nil
			m.status = "Profile updated."
		}
	}
	return m, nil
}

// profileError marks a registration whose account was created but whose
// profile edit failed.
type profileError struct {
	err error
}

func (e *profileError) Error() string { return "profile not saved: " + e.err.Error() }

func (e *profileError) Unwrap() error { return e.err }

func inSignInFlow(path string) bool {
	p := routepath.Clean(path)
	return p == routepath.Login || p == routepath.Register
}

func (m Model) email() string {
	if m.snap.Identity == nil {
		return ""
	}
	return m.snap.Identity.Email
}
