package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/client/api"
	"ecotrack/internal/client/guard"
	"ecotrack/internal/client/routepath"
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice) + "\n")
	}
	if m.errMsg != "" {
		b.WriteString(errorStyle.Render(m.errMsg) + "\n")
	}
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status) + "\n")
	}

	b.WriteString(bodyStyle.Render(m.body()))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(m.help()))
	return b.String()
}

func (m Model) header() string {
	nav := []string{"1 Home", "2 Challenges", "3 Events", "4 Tips"}
	var who string
	switch {
	case m.snap.Loading:
		who = "…"
	case m.snap.SignedIn():
		nav = append(nav, "5 My Activities", "6 Profile")
		who = displayName(m.snap.Identity.DisplayName, m.snap.Identity.Email)
	default:
		who = "L Sign in"
	}
	left := titleStyle.Render("EcoTrack") + "  " + mutedStyle.Render(strings.Join(nav, " · "))
	return lipgloss.JoinHorizontal(lipgloss.Top, headerStyle.Render(left), headerStyle.Render(who))
}

func (m Model) body() string {
	if m.outcome == guard.Pending {
		return mutedStyle.Render("Checking your session…")
	}
	if m.loading {
		return mutedStyle.Render("Loading…")
	}

	switch m.pattern {
	case routepath.Root:
		return m.homeView()
	case routepath.Challenges:
		return m.challengesView()
	case routepath.ChallengePattern:
		return m.challengeView(false)
	case routepath.JoinPattern:
		return m.challengeView(true)
	case routepath.ChallengesAdd:
		return titleStyle.Render("New challenge") + "\n\n" + m.formView() + "\n" + button("Create", m.acting)
	case routepath.Events:
		return m.eventsView()
	case routepath.EventPattern:
		return m.eventView()
	case routepath.Tips:
		return m.tipsView()
	case routepath.MyActivities:
		return m.activitiesView()
	case routepath.ActivityPattern:
		return m.activityView()
	case routepath.MyProfile:
		return m.profileView()
	case routepath.Login:
		return titleStyle.Render("Sign in") + "\n\n" + m.formView() + "\n" +
			button("Sign in", m.busy) + "\n\n" +
			mutedStyle.Render(fmt.Sprintf("ctrl+g: continue with %s · ctrl+n: create an account", providerName(m.provider)))
	case routepath.Register:
		return titleStyle.Render("Create account") + "\n\n" + m.formView() + "\n" + button("Create account", m.busy)
	}
	return ""
}

func (m Model) formView() string {
	if m.form == nil {
		return ""
	}
	return m.form.view()
}

// button renders a submit button. It is shown inert while its operation
// is in flight.
func button(label string, inFlight bool) string {
	if inFlight {
		return disabledStyle.Render(label + "…")
	}
	return buttonStyle.Render(label)
}

func (m Model) homeView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Small actions, shared impact.") + "\n\n")
	if s := m.stats; s != nil {
		fmt.Fprintf(&b, "%d people taking part in %d challenges\n\n", s.TotalParticipants, s.TotalChallenges)
		fmt.Fprintf(&b, "CO₂ saved        %.1f kg\n", s.CO2Saved)
		fmt.Fprintf(&b, "Plastic reduced  %.1f kg\n", s.PlasticReduced)
		fmt.Fprintf(&b, "Water saved      %.1f L\n", s.WaterSaved)
		fmt.Fprintf(&b, "Trees planted    %.0f\n", s.TreesPlanted)
	}
	return b.String()
}

func (m Model) challengesView() string {
	filter := "All"
	if m.filter > 0 {
		filter = api.Categories[m.filter-1]
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Challenges") + "  " + mutedStyle.Render("category: "+filter) + "\n\n")
	if len(m.challenges) == 0 {
		b.WriteString(mutedStyle.Render("No challenges found."))
	}
	for i, ch := range m.challenges {
		line := fmt.Sprintf("%s  [%s]  %d joined", ch.Title, ch.Category, ch.Participants)
		b.WriteString(m.row(i, line) + "\n")
	}
	return b.String()
}

func (m Model) challengeView(joining bool) string {
	ch := m.challenge
	if ch == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(ch.Title) + "  " + mutedStyle.Render(ch.Category) + "\n\n")
	if ch.Description != "" {
		b.WriteString(ch.Description + "\n\n")
	}
	if ch.Duration != "" {
		fmt.Fprintf(&b, "Duration:   %s days\n", ch.Duration)
	}
	if ch.Target != "" {
		fmt.Fprintf(&b, "Target:     %s\n", ch.Target)
	}
	if ch.ImpactMetric != "" {
		fmt.Fprintf(&b, "Impact:     %s\n", ch.ImpactMetric)
	}
	if ch.StartDate != "" || ch.EndDate != "" {
		fmt.Fprintf(&b, "Runs:       %s to %s\n", ch.StartDate, ch.EndDate)
	}
	fmt.Fprintf(&b, "Joined by:  %d\n\n", ch.Participants)
	if joining {
		b.WriteString(button("Confirm join", m.acting))
	} else {
		b.WriteString(mutedStyle.Render("J: join this challenge"))
	}
	return b.String()
}

func (m Model) eventsView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Events") + "\n\n")
	if len(m.events) == 0 {
		b.WriteString(mutedStyle.Render("No upcoming events."))
	}
	for i, ev := range m.events {
		line := fmt.Sprintf("%s  %s  %s", ev.Date, ev.Title, mutedStyle.Render(ev.Location))
		b.WriteString(m.row(i, line) + "\n")
	}
	return b.String()
}

func (m Model) eventView() string {
	ev := m.event
	if ev == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(ev.Title) + "\n\n")
	b.WriteString(ev.Description + "\n\n")
	fmt.Fprintf(&b, "When:       %s\n", ev.Date)
	fmt.Fprintf(&b, "Where:      %s\n", ev.Location)
	fmt.Fprintf(&b, "Organizer:  %s\n", ev.Organizer)
	fmt.Fprintf(&b, "Seats:      %d / %d\n\n", ev.CurrentParticipants, ev.MaxParticipants)
	if ev.Full() {
		b.WriteString(mutedStyle.Render("This event is full."))
	} else {
		b.WriteString(mutedStyle.Render("J: join this event"))
	}
	return b.String()
}

func (m Model) tipsView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Eco tips") + "\n\n")
	for i, tip := range m.tips {
		line := fmt.Sprintf("%s  %s", tip.Title, mutedStyle.Render(fmt.Sprintf("by %s · %d upvotes", tip.AuthorName, tip.Upvotes)))
		b.WriteString(m.row(i, line) + "\n")
		if i == m.cursor && tip.Content != "" {
			b.WriteString("    " + tip.Content + "\n")
		}
	}
	return b.String()
}

func (m Model) activitiesView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("My activities") + "\n\n")
	if len(m.activities) == 0 {
		b.WriteString(mutedStyle.Render("You have not joined any challenges yet."))
	}
	for i, uc := range m.activities {
		title := "(removed challenge)"
		if uc.Challenge != nil {
			title = uc.Challenge.Title
		}
		line := fmt.Sprintf("%s  %s  %d%%", title, mutedStyle.Render(string(uc.StatusOrDefault())), uc.Progress)
		b.WriteString(m.row(i, line) + "\n")
	}
	return b.String()
}

func (m Model) activityView() string {
	uc := m.activity
	if uc == nil {
		return ""
	}
	title := "Challenge"
	if uc.Challenge != nil {
		title = uc.Challenge.Title
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(title) + "\n\n")
	fmt.Fprintf(&b, "Progress:  %s %d%%\n", bar(m.progress, 20), m.progress)
	fmt.Fprintf(&b, "Status:    %s\n\n", m.progStatus)
	b.WriteString(button("Save progress", m.acting))
	return b.String()
}

func (m Model) profileView() string {
	id := m.snap.Identity
	if id == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(displayName(id.DisplayName, id.Email)) + "\n")
	b.WriteString(mutedStyle.Render(id.Email) + "\n")
	if id.PhotoURL != "" {
		b.WriteString(mutedStyle.Render(id.PhotoURL) + "\n")
	}
	b.WriteString("\n")

	if m.form != nil {
		b.WriteString(m.form.view() + "\n" + button("Save", m.busy) + "\n")
		return b.String()
	}

	if imp := m.impact; imp != nil {
		fmt.Fprintf(&b, "Challenges:  %d total · %d in progress · %d completed\n\n",
			imp.TotalChallenges, imp.InProgressChallenges, imp.CompletedChallenges)
		fmt.Fprintf(&b, "CO₂ saved        %d kg\n", imp.CO2Saved)
		fmt.Fprintf(&b, "Plastic reduced  %d kg\n", imp.PlasticReduced)
		fmt.Fprintf(&b, "Water saved      %d L\n", imp.WaterSaved)
		fmt.Fprintf(&b, "Trees planted    %d\n", imp.TreesPlanted)
		if imp.Active != nil && imp.Active.Challenge != nil {
			fmt.Fprintf(&b, "\nCurrently working on %s (%d%%)\n", imp.Active.Challenge.Title, imp.Active.Progress)
		}
	}
	return b.String()
}

func (m Model) row(i int, line string) string {
	if i == m.cursor {
		return selectedStyle.Render("› ") + line
	}
	return "  " + line
}

func (m Model) help() string {
	var bindings []key.Binding
	switch {
	case m.form != nil:
		bindings = []key.Binding{m.keys.NextField, m.keys.Select, m.keys.Back}
		if m.pattern == routepath.Login {
			bindings = append(bindings, m.keys.Federated, m.keys.NewAccount)
		}
	case m.pattern == routepath.Challenges:
		bindings = []key.Binding{m.keys.Up, m.keys.Down, m.keys.Select, m.keys.Filter, m.keys.NewChallenge}
	case m.pattern == routepath.ActivityPattern:
		bindings = []key.Binding{m.keys.More, m.keys.Less, m.keys.CycleStatus, m.keys.Select}
	case m.pattern == routepath.MyProfile:
		bindings = []key.Binding{m.keys.Edit, m.keys.SignOut}
	default:
		bindings = []key.Binding{m.keys.Up, m.keys.Down, m.keys.Select}
	}
	bindings = append(bindings, m.keys.Back, m.keys.Quit)

	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " · ")
}

func bar(pct, width int) string {
	filled := pct * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}

// describe turns an error into the line shown to the user.
func describe(err error) string {
	if err == nil {
		return ""
	}
	code := apperrors.CodeOf(err)
	switch code {
	case apperrors.CodeUserCancelled:
		return "Sign-in was cancelled."
	case apperrors.CodeOperationPending:
		return "Please wait for the current request to finish."
	case apperrors.CodeRateLimited:
		return "Too many attempts. Try again in a minute."
	}

	msg := err.Error()
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		msg = appErr.Message
	}
	switch code.Category() {
	case apperrors.CategoryAuth:
		return msg
	case apperrors.CategoryNetwork:
		return "Could not reach EcoTrack: " + msg
	case apperrors.CategoryNotFound:
		return "Not found: " + msg
	default:
		return "Something went wrong: " + msg
	}
}
