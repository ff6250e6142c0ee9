package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"ecotrack/internal/auth/policy"
	"ecotrack/internal/client/api"
	"ecotrack/internal/client/routepath"
)

// Form field positions.
const (
	fieldEmail = iota
	fieldPassword
	fieldDisplayName
	fieldPhotoURL
)

const (
	profileName = iota
	profilePhoto
)

var challengeFields = []field{
	{label: "Title"},
	{label: "Category"},
	{label: "Description"},
	{label: "Duration (days)"},
	{label: "Target"},
	{label: "Impact metric"},
	{label: "Start date (YYYY-MM-DD)"},
	{label: "End date (YYYY-MM-DD)"},
	{label: "Image URL"},
}

// enter starts whatever the current screen needs: a fetch or a form.
func (m *Model) enter() tea.Cmd {
	data, email, id := m.data, m.email(), m.id

	switch m.pattern {
	case routepath.Root:
		m.loading = true
		return m.load(func(ctx context.Context) (func(*Model), error) {
			stats, err := data.Statistics(ctx)
			return func(m *Model) { m.stats = stats }, err
		})

	case routepath.Challenges:
		m.loading = true
		filter := api.ChallengeFilter{}
		if m.filter > 0 {
			filter.Categories = []string{api.Categories[m.filter-1]}
		}
		return m.load(func(ctx context.Context) (func(*Model), error) {
			list, err := data.ListChallenges(ctx, filter)
			return func(m *Model) { m.challenges = list }, err
		})

	case routepath.ChallengePattern, routepath.JoinPattern:
		m.loading = true
		return m.load(func(ctx context.Context) (func(*Model), error) {
			ch, err := data.GetChallenge(ctx, id)
			return func(m *Model) { m.challenge = ch }, err
		})

	case routepath.ChallengesAdd:
		m.form = newForm(challengeFields...)
		return textinput.Blink

	case routepath.Events:
		m.loading = true
		return m.load(func(ctx context.Context) (func(*Model), error) {
			list, err := data.ListEvents(ctx)
			return func(m *Model) { m.events = list }, err
		})

	case routepath.EventPattern:
		m.loading = true
		return m.load(func(ctx context.Context) (func(*Model), error) {
			ev, err := data.GetEvent(ctx, id)
			return func(m *Model) { m.event = ev }, err
		})

	case routepath.Tips:
		m.loading = true
		return m.load(func(ctx context.Context) (func(*Model), error) {
			list, err := data.ListTips(ctx)
			return func(m *Model) { m.tips = list }, err
		})

	case routepath.MyActivities:
		m.loading = true
		return m.load(func(ctx context.Context) (func(*Model), error) {
			list, err := data.ListUserChallenges(ctx, email)
			return func(m *Model) { m.activities = list }, err
		})

	case routepath.ActivityPattern:
		m.loading = true
		return m.load(func(ctx context.Context) (func(*Model), error) {
			uc, err := data.UserChallenge(ctx, email, id)
			return func(m *Model) {
				m.activity = uc
				m.progress = uc.Progress
				m.progStatus = uc.StatusOrDefault()
			}, err
		})

	case routepath.MyProfile:
		m.loading = true
		return m.load(func(ctx context.Context) (func(*Model), error) {
			list, err := data.ListUserChallenges(ctx, email)
			impact := api.ComputeImpact(list)
			return func(m *Model) { m.impact = &impact }, err
		})

	case routepath.Login:
		m.form = newForm(field{label: "Email"}, field{label: "Password", secret: true})
		return textinput.Blink

	case routepath.Register:
		m.form = newForm(
			field{label: "Email"},
			field{label: "Password", secret: true},
			field{label: "Display name (optional)"},
			field{label: "Photo URL (optional)"},
		)
		return textinput.Blink
	}
	return nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.Back) {
		if m.cancelAuth != nil {
			m.cancelAuth()
			m.cancelAuth = nil
			return m, nil
		}
		if m.form != nil && m.pattern == routepath.MyProfile {
			m.form = nil
			return m, nil
		}
		return m.back()
	}
	if m.form != nil {
		return m.handleFormKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Home):
		return m.visit(routepath.Root)
	case key.Matches(msg, m.keys.Challenges):
		return m.visit(routepath.Challenges)
	case key.Matches(msg, m.keys.Events):
		return m.visit(routepath.Events)
	case key.Matches(msg, m.keys.Tips):
		return m.visit(routepath.Tips)
	case key.Matches(msg, m.keys.MyActivities):
		return m.visit(routepath.MyActivities)
	case key.Matches(msg, m.keys.Profile):
		return m.visit(routepath.MyProfile)
	case key.Matches(msg, m.keys.SignIn):
		if !m.snap.SignedIn() {
			return m.visit(routepath.Login)
		}
		return m, nil
	case key.Matches(msg, m.keys.SignOut):
		return m.logout()
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.cursor < m.listLen()-1 {
			m.cursor++
		}
		return m, nil
	case key.Matches(msg, m.keys.Select):
		return m.open()
	}
	return m.screenKey(msg)
}

func (m Model) listLen() int {
	switch m.pattern {
	case routepath.Challenges:
		return len(m.challenges)
	case routepath.Events:
		return len(m.events)
	case routepath.Tips:
		return len(m.tips)
	case routepath.MyActivities:
		return len(m.activities)
	}
	return 0
}

// open acts on enter outside of forms.
func (m Model) open() (tea.Model, tea.Cmd) {
	switch m.pattern {
	case routepath.Challenges:
		if m.cursor < len(m.challenges) {
			return m.visit(routepath.Challenge(m.challenges[m.cursor].ID))
		}
	case routepath.Events:
		if m.cursor < len(m.events) {
			return m.visit(routepath.Event(m.events[m.cursor].ID))
		}
	case routepath.MyActivities:
		if m.cursor < len(m.activities) {
			return m.visit(routepath.Activity(m.activities[m.cursor].ID))
		}
	case routepath.JoinPattern:
		if m.acting || m.challenge == nil {
			return m, nil
		}
		data, id, email := m.data, m.id, m.email()
		m.acting = true
		return m, m.act(func(ctx context.Context) error {
			return data.JoinChallenge(ctx, id, email)
		}, "Joined! Track it under My Activities.", routepath.MyActivities)
	case routepath.ActivityPattern:
		if m.acting || m.activity == nil {
			return m, nil
		}
		data, id, progress, status := m.data, m.id, m.progress, m.progStatus
		m.acting = true
		return m, m.act(func(ctx context.Context) error {
			return data.UpdateProgress(ctx, id, progress, status)
		}, "Progress saved.", "")
	}
	return m, nil
}

func (m Model) screenKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.pattern {
	case routepath.Challenges:
		switch {
		case key.Matches(msg, m.keys.Filter):
			m.filter = (m.filter + 1) % (len(api.Categories) + 1)
			return m.navigate(m.path)
		case key.Matches(msg, m.keys.NewChallenge):
			return m.visit(routepath.ChallengesAdd)
		}

	case routepath.ChallengePattern:
		if key.Matches(msg, m.keys.Join) {
			return m.visit(routepath.JoinChallenge(m.id))
		}

	case routepath.EventPattern:
		if key.Matches(msg, m.keys.Join) && !m.acting && m.event != nil {
			if !m.snap.SignedIn() {
				m.errMsg = "Sign in to join events."
				return m, nil
			}
			data, id, email := m.data, m.id, m.email()
			m.acting = true
			return m, m.act(func(ctx context.Context) error {
				return data.JoinEvent(ctx, id, email)
			}, "You're in!", "")
		}

	case routepath.ActivityPattern:
		switch {
		case key.Matches(msg, m.keys.More):
			m.progress = min(m.progress+10, 100)
		case key.Matches(msg, m.keys.Less):
			m.progress = max(m.progress-10, 0)
		case key.Matches(msg, m.keys.CycleStatus):
			m.progStatus = nextStatus(m.progStatus)
		}
		return m, nil

	case routepath.MyProfile:
		if key.Matches(msg, m.keys.Edit) && m.snap.Identity != nil {
			m.form = newForm(field{label: "Display name"}, field{label: "Photo URL"})
			m.form.set(profileName, m.snap.Identity.DisplayName)
			m.form.set(profilePhoto, m.snap.Identity.PhotoURL)
			return m, textinput.Blink
		}
	}
	return m, nil
}

func nextStatus(s api.Status) api.Status {
	switch s {
	case api.StatusNotStarted:
		return api.StatusOngoing
	case api.StatusOngoing:
		return api.StatusFinished
	default:
		return api.StatusNotStarted
	}
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Federated) && m.pattern == routepath.Login:
		return m.federated()
	case key.Matches(msg, m.keys.NewAccount) && m.pattern == routepath.Login:
		return m.visit(routepath.Register)
	case key.Matches(msg, m.keys.NextField):
		m.form.move(1)
		return m, nil
	case key.Matches(msg, m.keys.PrevField):
		m.form.move(-1)
		return m, nil
	case key.Matches(msg, m.keys.Select):
		if !m.form.onLast() {
			m.form.move(1)
			return m, nil
		}
		return m.submit()
	}
	return m, m.form.update(msg)
}

// submit sends the focused form. Session forms are inert while a
// session operation is in flight.
func (m Model) submit() (tea.Model, tea.Cmd) {
	store := m.store
	switch m.pattern {
	case routepath.Login:
		if m.busy {
			return m, nil
		}
		email, password := m.form.value(fieldEmail), m.form.raw(fieldPassword)
		m.busy, m.errMsg = true, ""
		return m, m.auth(context.Background(), opLogin, func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, requestTimeout)
			defer cancel()
			_, err := store.Login(ctx, email, password)
			return err
		})

	case routepath.Register:
		if m.busy {
			return m, nil
		}
		email, password := m.form.value(fieldEmail), m.form.raw(fieldPassword)
		name, photo := m.form.value(fieldDisplayName), m.form.value(fieldPhotoURL)
		if err := validateRegistration(email, password, photo); err != nil {
			m.errMsg = describe(err)
			return m, nil
		}
		m.busy, m.errMsg = true, ""
		return m, m.auth(context.Background(), opRegister, func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, requestTimeout)
			defer cancel()
			if _, err := store.Register(ctx, email, password); err != nil {
				return err
			}
			if name == "" && photo == "" {
				return nil
			}
			if err := store.UpdateProfile(ctx, name, photo); err != nil {
				return &profileError{err: err}
			}
			return nil
		})

	case routepath.MyProfile:
		if m.busy {
			return m, nil
		}
		name, photo := m.form.value(profileName), m.form.value(profilePhoto)
		m.busy, m.errMsg = true, ""
		return m, m.auth(context.Background(), opProfile, func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, requestTimeout)
			defer cancel()
			return store.UpdateProfile(ctx, name, photo)
		})

	case routepath.ChallengesAdd:
		if m.acting {
			return m, nil
		}
		ch := api.NewChallenge{
			Title:        m.form.value(0),
			Category:     m.form.value(1),
			Description:  m.form.value(2),
			Duration:     m.form.value(3),
			Target:       m.form.value(4),
			ImpactMetric: m.form.value(5),
			StartDate:    m.form.value(6),
			EndDate:      m.form.value(7),
			ImageURL:     m.form.value(8),
		}
		if ch.Title == "" || ch.Category == "" {
			m.errMsg = "Title and category are required."
			return m, nil
		}
		data, email := m.data, m.email()
		m.acting, m.errMsg = true, ""
		return m, m.act(func(ctx context.Context) error {
			return data.CreateChallenge(ctx, email, ch)
		}, "Challenge created.", routepath.Challenges)
	}
	return m, nil
}

// validateRegistration checks the whole form before any account exists,
// so a bad photo URL cannot leave a half-finished account behind.
func validateRegistration(email, password, photo string) error {
	if err := policy.ValidateEmail(email); err != nil {
		return err
	}
	if err := policy.ValidatePhotoURL(photo); err != nil {
		return err
	}
	return policy.ValidatePassword(password)
}

func (m Model) federated() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	store, provider := m.store, m.provider
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelAuth = cancel
	m.busy, m.errMsg = true, ""
	m.status = "Finish signing in with " + providerName(provider) + " in your browser. Press esc to cancel."
	return m, m.auth(ctx, opFederated, func(ctx context.Context) error {
		_, err := store.FederatedLogin(ctx, provider)
		return err
	})
}

func (m Model) logout() (tea.Model, tea.Cmd) {
	if !m.snap.SignedIn() || m.busy {
		return m, nil
	}
	store := m.store
	next, nav := m.visit(routepath.Root)
	next.busy = true
	return next, tea.Batch(nav, next.auth(context.Background(), opLogout, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		return store.Logout(ctx)
	}))
}

func providerName(p string) string {
	if p == "" {
		return "your provider"
	}
	return strings.ToUpper(p[:1]) + p[1:]
}
