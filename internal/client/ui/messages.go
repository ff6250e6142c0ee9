package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"ecotrack/internal/client/sessionstore"
)

const requestTimeout = 20 * time.Second

// snapshotMsg carries a new session snapshot from the store.
type snapshotMsg struct {
	snap sessionstore.Snapshot
}

type navigateMsg struct {
	path string
}

// loadedMsg is the result of a fetch started for screen generation gen.
type loadedMsg struct {
	gen   uint64
	err   error
	apply func(*Model)
}

// actionDoneMsg is the result of a data mutation such as joining.
type actionDoneMsg struct {
	gen     uint64
	err     error
	success string
	next    string
}

type authOp int

const (
	opLogin authOp = iota
	opRegister
	opFederated
	opLogout
	opProfile
)

type authDoneMsg struct {
	gen uint64
	op  authOp
	err error
}

// listenForSnapshot blocks until the store publishes a snapshot. The
// model re-arms it after every delivery.
func listenForSnapshot(ch <-chan sessionstore.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg{snap: snap}
	}
}

func (m Model) load(fetch func(ctx context.Context) (func(*Model), error)) tea.Cmd {
	gen := m.gen
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		apply, err := fetch(ctx)
		return loadedMsg{gen: gen, err: err, apply: apply}
	}
}

func (m Model) act(do func(ctx context.Context) error, success, next string) tea.Cmd {
	gen := m.gen
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return actionDoneMsg{gen: gen, err: do(ctx), success: success, next: next}
	}
}

func (m Model) auth(ctx context.Context, op authOp, do func(ctx context.Context) error) tea.Cmd {
	gen := m.gen
	return func() tea.Msg {
		return authDoneMsg{gen: gen, op: op, err: do(ctx)}
	}
}
