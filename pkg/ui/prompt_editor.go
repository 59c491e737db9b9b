package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
)

// SuccessTimeout is how long a save confirmation stays on screen.
const SuccessTimeout = 3 * time.Second

// PromptClient reads and writes the system prompt.
type PromptClient interface {
	Get(ctx context.Context) (string, error)
	Save(ctx context.Context, prompt string) (string, error)
}

type (
	promptLoadedMsg struct {
		prompt string
		err    error
	}
	promptSavedMsg struct {
		msg string
		err error
	}
	successClearMsg struct{ seq int }
)

// PromptEditorModel edits the chatbot's system prompt.
type PromptEditorModel struct {
	ctx    context.Context
	client PromptClient

	textarea textarea.Model
	help     help.Model
	keys     promptKeyMap
	styles   styles

	loading bool
	saving  bool
	errText string
	success string
	seq     int

	width  int
	height int
}

func NewPromptEditor(ctx context.Context, client PromptClient) PromptEditorModel {
	ta := textarea.New()
	ta.Placeholder = "Enter your prompt here..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetWidth(defaultWidth)
	ta.SetHeight(defaultHeight - chromeHeight)
	ta.Focus()

	return PromptEditorModel{
		ctx:      ctx,
		client:   client,
		textarea: ta,
		help:     help.New(),
		keys:     defaultPromptKeyMap(),
		styles:   defaultStyles(),
		loading:  true,
		width:    defaultWidth,
		height:   defaultHeight,
	}
}

func (m PromptEditorModel) Value() string { return m.textarea.Value() }

func (m PromptEditorModel) Saving() bool { return m.saving }

func (m PromptEditorModel) Err() string { return m.errText }

func (m PromptEditorModel) Success() string { return m.success }

func (m PromptEditorModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.load())
}

func (m PromptEditorModel) load() tea.Cmd {
	ctx, client := m.ctx, m.client
	return func() tea.Msg {
		p, err := client.Get(ctx)
		return promptLoadedMsg{prompt: p, err: err}
	}
}

func (m PromptEditorModel) save() tea.Cmd {
	ctx, client, value := m.ctx, m.client, m.textarea.Value()
	return func() tea.Msg {
		msg, err := client.Save(ctx, value)
		return promptSavedMsg{msg: msg, err: err}
	}
}

func (m PromptEditorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.textarea.SetWidth(msg.Width)
		m.textarea.SetHeight(max(msg.Height-chromeHeight, minViewport))
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Save):
			if m.saving {
				return m, nil
			}
			m.saving = true
			m.errText = ""
			m.success = ""
			return m, m.save()
		}

	case promptLoadedMsg:
		m.loading = false
		if msg.err != nil {
			log.Warn().Err(msg.err).Str("component", "prompt-editor").Msg("fetch prompt failed")
			m.errText = msg.err.Error()
			return m, nil
		}
		m.textarea.SetValue(msg.prompt)
		return m, nil

	case promptSavedMsg:
		m.saving = false
		if msg.err != nil {
			log.Warn().Err(msg.err).Str("component", "prompt-editor").Msg("save prompt failed")
			m.errText = msg.err.Error()
			return m, nil
		}
		m.success = msg.msg
		m.seq++
		seq := m.seq
		return m, tea.Tick(SuccessTimeout, func(time.Time) tea.Msg { return successClearMsg{seq: seq} })

	case successClearMsg:
		if msg.seq == m.seq {
			m.success = ""
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m PromptEditorModel) View() string {
	parts := []string{m.styles.Title.Render("Prompt")}

	switch {
	case m.errText != "":
		parts = append(parts, m.styles.Error.Render(m.errText))
	case m.success != "":
		parts = append(parts, m.styles.Success.Render(m.success))
	case m.loading:
		parts = append(parts, m.styles.Status.Render("Loading..."))
	default:
		parts = append(parts, "")
	}

	parts = append(parts, m.textarea.View())

	button := "[ Save Prompt ]"
	if m.saving {
		button = "[ Saving... ]"
	}
	parts = append(parts, lipgloss.PlaceHorizontal(m.width, lipgloss.Right, button), m.help.View(m.keys))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
