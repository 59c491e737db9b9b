package ui

import "github.com/charmbracelet/bubbles/key"

type widgetKeyMap struct {
	Submit   key.Binding
	Toggle   key.Binding
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Copy     key.Binding
	Quit     key.Binding
}

func defaultWidgetKeyMap() widgetKeyMap {
	return widgetKeyMap{
		Submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Toggle:   key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "open/minimize")),
		Up:       key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "up")),
		Down:     key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "down")),
		PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
		Copy:     key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy reply")),
		Quit:     key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit")),
	}
}

func (k widgetKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Copy, k.Toggle, k.Quit}
}

func (k widgetKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Copy, k.Toggle, k.Quit},
	}
}

type promptKeyMap struct {
	Save key.Binding
	Quit key.Binding
}

func defaultPromptKeyMap() promptKeyMap {
	return promptKeyMap{
		Save: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save prompt")),
		Quit: key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit")),
	}
}

func (k promptKeyMap) ShortHelp() []key.Binding { return []key.Binding{k.Save, k.Quit} }

func (k promptKeyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }
