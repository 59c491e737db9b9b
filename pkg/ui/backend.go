package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/chatwidget/pkg/conversation"
	"github.com/go-go-golems/chatwidget/pkg/events"
	"github.com/rs/zerolog/log"
)

// Backend is what the widget needs from a turn runner.
type Backend interface {
	// Ask runs one turn to completion. The transcript changes are announced
	// on the event bus while it runs.
	Ask(ctx context.Context, text string) error
	Snapshot() []conversation.Message
	SessionID() string
}

// EventMsg carries one conversation event into the program.
type EventMsg struct {
	Event events.Event
}

// TurnDoneMsg is returned by the command that ran a turn.
type TurnDoneMsg struct {
	Err error
}

func askCmd(ctx context.Context, b Backend, text string) tea.Cmd {
	return func() tea.Msg {
		return TurnDoneMsg{Err: b.Ask(ctx, text)}
	}
}

// ForwardFunc forwards bus events to the program `p` as EventMsg.
func ForwardFunc(p *tea.Program) events.Handler {
	return func(e events.Event) error {
		log.Trace().
			Str("component", "ui").
			Str("type", string(e.Type)).
			Str("turn_id", e.TurnID).
			Msg("Dispatching event to UI")
		p.Send(EventMsg{Event: e})
		return nil
	}
}
