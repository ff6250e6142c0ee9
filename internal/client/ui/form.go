package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type field struct {
	label  string
	secret bool
}

// form is a column of text inputs with one focused at a time.
type form struct {
	labels []string
	inputs []textinput.Model
	focus  int
}

func newForm(fields ...field) *form {
	f := &form{}
	for _, fl := range fields {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 256
		in.Width = 40
		if fl.secret {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		}
		f.labels = append(f.labels, fl.label)
		f.inputs = append(f.inputs, in)
	}
	if len(f.inputs) > 0 {
		f.inputs[0].Focus()
	}
	return f
}

func (f *form) value(i int) string {
	return strings.TrimSpace(f.inputs[i].Value())
}

// raw returns the input untrimmed, for passwords.
func (f *form) raw(i int) string {
	return f.inputs[i].Value()
}

func (f *form) set(i int, v string) {
	f.inputs[i].SetValue(v)
}

func (f *form) onLast() bool {
	return f.focus == len(f.inputs)-1
}

func (f *form) move(delta int) {
	if len(f.inputs) == 0 {
		return
	}
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + len(f.inputs)) % len(f.inputs)
	f.inputs[f.focus].Focus()
}

func (f *form) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *form) view() string {
	var b strings.Builder
	for i, in := range f.inputs {
		label := mutedStyle.Render(f.labels[i])
		if i == f.focus {
			label = selectedStyle.Render("› " + f.labels[i])
		}
		b.WriteString(label + "\n  " + in.View() + "\n")
	}
	return b.String()
}
