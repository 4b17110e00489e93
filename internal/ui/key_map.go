package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	toggle  key.Binding
	rate    key.Binding
	comment key.Binding
	theme   key.Binding
	mode    key.Binding
	export  key.Binding
	open    key.Binding
	filter  key.Binding
	save    key.Binding
	back    key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		toggle:  key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "mark/unmark")),
		rate:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rate")),
		comment: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "comment")),
		theme:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "theme")),
		mode:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "colors")),
		export:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export")),
		open:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open pdf")),
		filter:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		save:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.filter, k.toggle, k.rate, k.comment},
		{k.theme, k.mode, k.export},
		{k.save, k.back, k.quit},
	}
}
