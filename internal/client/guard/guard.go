// Package guard gates protected screens on the session snapshot and
// carries the requested destination through the sign-in detour.
package guard

import (
	"net/url"
	"strings"
	"sync"

	"ecotrack/internal/client/routepath"
	"ecotrack/internal/client/sessionstore"
)

type Outcome int

const (
	// Pending renders a neutral placeholder: no content, no redirect.
	Pending Outcome = iota
	Render
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the result of one Check. Path is the screen to show.
type Decision struct {
	Outcome Outcome
	Path    string
}

// NoticeAuthRequired identifies the sign-in required notice.
const NoticeAuthRequired = "auth-required"

// Notice is the one-time message shown after a redirect to sign-in.
type Notice struct {
	ID      string
	Seq     uint64
	Message string
	From    string
}

type Options struct {
	SignInPath  string
	LandingPath string
	Protected   func(path string) bool
}

type Guard struct {
	signIn    string
	landing   string
	protected func(string) bool

	mu     sync.Mutex
	intent string
	seq    uint64
	notice *Notice
}

// New fills unset options with the client's routes.
func New(opts Options) *Guard {
	g := &Guard{
		signIn:    opts.SignInPath,
		landing:   opts.LandingPath,
		protected: opts.Protected,
	}
	if g.signIn == "" {
		g.signIn = routepath.Login
	}
	if g.landing == "" {
		g.landing = routepath.Root
	}
	if g.protected == nil {
		g.protected = routepath.IsProtected
	}
	return g
}

func (g *Guard) SignInPath() string { return g.signIn }

func (g *Guard) LandingPath() string { return g.landing }

// Check decides what to show for path. Until the session has loaded
// every path is pending. A signed-out visit to a protected path records
// the path as the redirect intent, queues one notice, and redirects.
func (g *Guard) Check(snap sessionstore.Snapshot, path string) Decision {
	if snap.Loading {
		return Decision{Outcome: Pending, Path: path}
	}
	if !g.protected(path) || snap.Identity != nil {
		return Decision{Outcome: Render, Path: path}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.intent = g.sanitize(path)
	g.seq++
	g.notice = &Notice{
		ID:      NoticeAuthRequired,
		Seq:     g.seq,
		Message: "Please sign in to continue.",
		From:    g.intent,
	}
	return Decision{Outcome: Redirect, Path: g.signIn}
}

// TakeNotice returns the notice of the latest redirect, once.
func (g *Guard) TakeNotice() (Notice, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.notice == nil {
		return Notice{}, false
	}
	n := *g.notice
	g.notice = nil
	return n, true
}

// Intent returns the pending redirect intent, if any.
func (g *Guard) Intent() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.intent
}

// AfterSignIn consumes the redirect intent. Without one it returns the
// landing path.
func (g *Guard) AfterSignIn() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	next := g.intent
	g.intent = ""
	if next == "" {
		return g.landing
	}
	return next
}

// Discard drops the intent and any unseen notice, for when the user
// leaves the sign-in screen without signing in.
func (g *Guard) Discard() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intent = ""
	g.notice = nil
}

// sanitize keeps only a local path and query. Anything else, including
// the sign-in screen itself, falls back to the landing path.
func (g *Guard) sanitize(raw string) string {
	next := strings.TrimSpace(raw)
	if next == "" || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return g.landing
	}
	parsed, err := url.Parse(next)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" || parsed.Opaque != "" {
		return g.landing
	}
	if !strings.HasPrefix(parsed.Path, "/") {
		return g.landing
	}
	clean := routepath.Clean(parsed.Path)
	if clean == routepath.Clean(g.signIn) {
		return g.landing
	}
	if parsed.RawQuery != "" {
		return clean + "?" + parsed.RawQuery
	}
	return clean
}
