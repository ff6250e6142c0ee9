package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the EcoTrack client.
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Back   key.Binding

	// Form focus.
	NextField key.Binding
	PrevField key.Binding

	// Screens.
	Home         key.Binding
	Challenges   key.Binding
	Events       key.Binding
	Tips         key.Binding
	MyActivities key.Binding
	Profile      key.Binding
	SignIn       key.Binding
	SignOut      key.Binding

	// Screen actions.
	Filter       key.Binding // cycle the challenge category filter
	NewChallenge key.Binding
	Join         key.Binding
	Edit         key.Binding
	More         key.Binding // progress +10
	Less         key.Binding // progress -10
	CycleStatus  key.Binding
	Federated    key.Binding // sign in with the configured provider
	NewAccount   key.Binding

	Quit      key.Binding
	ForceQuit key.Binding
}

var DefaultKeyMap = KeyMap{
	Up:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
	Down:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
	Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
	Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),

	NextField: key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
	PrevField: key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("S-tab", "previous field")),

	Home:         key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "home")),
	Challenges:   key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "challenges")),
	Events:       key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "events")),
	Tips:         key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "tips")),
	MyActivities: key.NewBinding(key.WithKeys("5"), key.WithHelp("5", "my activities")),
	Profile:      key.NewBinding(key.WithKeys("6"), key.WithHelp("6", "profile")),
	SignIn:       key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "sign in")),
	SignOut:      key.NewBinding(key.WithKeys("O"), key.WithHelp("O", "sign out")),

	Filter:       key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
	NewChallenge: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new challenge")),
	Join:         key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "join")),
	Edit:         key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
	More:         key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "progress +10")),
	Less:         key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "progress -10")),
	CycleStatus:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "status")),
	Federated:    key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("C-g", "federated sign-in")),
	NewAccount:   key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("C-n", "create account")),

	Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
	ForceQuit: key.NewBinding(key.WithKeys("ctrl+c")),
}
