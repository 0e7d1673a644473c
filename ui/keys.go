package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/soundstage/soundstage/internal/config"
)

type keyMap struct {
	Forward  key.Binding
	Backward key.Binding
	Left     key.Binding
	Right    key.Binding
	Rise     key.Binding
	Sink     key.Binding

	LookLeft  key.Binding
	LookRight key.Binding
	LookUp    key.Binding
	LookDown  key.Binding

	Run    key.Binding
	Reverb key.Binding
	Help   key.Binding
	Quit   key.Binding

	Triggers []key.Binding
	actions  map[string]string // trigger key to description
}

func newKeyMap(triggers []config.TriggerConfig) keyMap {
	k := keyMap{
		Forward:  key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "forward")),
		Backward: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "back")),
		Left:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "left")),
		Right:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "right")),
		Rise:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "rise")),
		Sink:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "sink")),

		LookLeft:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "turn left")),
		LookRight: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "turn right")),
		LookUp:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "look up")),
		LookDown:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "look down")),

		Run:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "run/walk")),
		Reverb: key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "reverb on/off")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),

		actions: make(map[string]string, len(triggers)),
	}

	for _, t := range triggers {
		desc := fmt.Sprintf("%s %s", t.Action, t.Target)
		k.Triggers = append(k.Triggers, key.NewBinding(key.WithKeys(t.Key), key.WithHelp(t.Key, desc)))
		k.actions[t.Key] = desc
	}
	return k
}

// trigger returns the description of the scene trigger bound to msg.
func (k keyMap) trigger(msg tea.KeyMsg) (string, bool) {
	desc, ok := k.actions[msg.String()]
	return desc, ok
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Forward, k.Backward, k.Left, k.Right, k.Run, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Forward, k.Backward, k.Left, k.Right, k.Rise, k.Sink},
		{k.LookLeft, k.LookRight, k.LookUp, k.LookDown},
		k.Triggers,
		{k.Run, k.Reverb, k.Help, k.Quit},
	}
}
