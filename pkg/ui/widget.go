package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/chatwidget/pkg/conversation"
	"github.com/go-go-golems/chatwidget/pkg/render"
	"github.com/go-go-golems/chatwidget/pkg/session"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTitle    = "ChatBot"
	DefaultGreeting = "How can we help you today?"
	inputCharLimit  = 2000
	statusTimeout   = 2 * time.Second
	defaultWidth    = 80
	defaultHeight   = 24
	chromeHeight    = 6
	minViewport     = 3
)

type statusClearMsg struct{ seq int }

// WidgetModel is the chat widget: a launcher when minimized, otherwise a
// transcript with an input line.
type WidgetModel struct {
	ctx     context.Context
	backend Backend

	title        string
	greeting     string
	quickReplies []string
	selected     int
	open         bool

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	keys     widgetKeyMap
	styles   styles

	renderer      *render.Terminal
	fixedRenderer bool
	clip          func(string) error

	messages []conversation.Message
	inFlight int

	status    string
	statusSeq int

	width  int
	height int
}

type WidgetOption func(*WidgetModel)

// WithContext bounds every turn the widget starts.
func WithContext(ctx context.Context) WidgetOption {
	return func(m *WidgetModel) {
		if ctx != nil {
			m.ctx = ctx
		}
	}
}

func WithTitle(title string) WidgetOption {
	return func(m *WidgetModel) {
		if title != "" {
			m.title = title
		}
	}
}

func WithGreeting(greeting string) WidgetOption {
	return func(m *WidgetModel) {
		if greeting != "" {
			m.greeting = greeting
		}
	}
}

// WithQuickReplies sets the suggested questions shown before the first
// message. At most nine are shown.
func WithQuickReplies(replies []string) WidgetOption {
	return func(m *WidgetModel) {
		m.quickReplies = nil
		for _, r := range replies {
			if strings.TrimSpace(r) == "" {
				continue
			}
			m.quickReplies = append(m.quickReplies, r)
			if len(m.quickReplies) == 9 {
				break
			}
		}
	}
}

// WithStartMinimized starts with only the launcher visible.
func WithStartMinimized(minimized bool) WidgetOption {
	return func(m *WidgetModel) { m.open = !minimized }
}

// WithRenderer pins the reply renderer. Without it one is created for the
// window width on every resize.
func WithRenderer(r *render.Terminal) WidgetOption {
	return func(m *WidgetModel) {
		m.renderer = r
		m.fixedRenderer = r != nil
	}
}

// WithClipboard replaces the system clipboard.
func WithClipboard(write func(string) error) WidgetOption {
	return func(m *WidgetModel) {
		if write != nil {
			m.clip = write
		}
	}
}

func NewWidget(b Backend, opts ...WidgetOption) WidgetModel {
	in := textinput.New()
	in.Placeholder = "Type your message here..."
	in.CharLimit = inputCharLimit
	in.Prompt = "> "
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(brandColor)

	m := WidgetModel{
		ctx:      context.Background(),
		backend:  b,
		title:    DefaultTitle,
		greeting: DefaultGreeting,
		open:     true,
		input:    in,
		viewport: viewport.New(defaultWidth, defaultHeight-chromeHeight),
		spinner:  sp,
		help:     help.New(),
		keys:     defaultWidgetKeyMap(),
		styles:   defaultStyles(),
		clip:     clipboard.WriteAll,
		width:    defaultWidth,
		height:   defaultHeight,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.messages = b.Snapshot()
	m.refresh()
	return m
}

func (m WidgetModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// ShowingQuickReplies reports whether the initial state is on screen.
func (m WidgetModel) ShowingQuickReplies() bool {
	return len(m.messages) == 0 && len(m.quickReplies) > 0
}

// Typing reports whether the typing indicator is shown: a turn is running
// and the reply placeholder is still empty.
func (m WidgetModel) Typing() bool {
	if m.inFlight == 0 || len(m.messages) == 0 {
		return false
	}
	last := m.messages[len(m.messages)-1]
	return last.Author == conversation.AuthorBot && last.Text == ""
}

func (m WidgetModel) Open() bool { return m.open }

func (m WidgetModel) InFlight() int { return m.inFlight }

func (m WidgetModel) Status() string { return m.status }

func (m WidgetModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		cmd, handled := m.handleKey(msg)
		if handled {
			return m, cmd
		}

	case EventMsg:
		m.messages = m.backend.Snapshot()
		m.refresh()
		return m, nil

	case TurnDoneMsg:
		if m.inFlight > 0 {
			m.inFlight--
		}
		if msg.Err != nil {
			log.Warn().Err(msg.Err).Str("component", "ui").Msg("turn finished with side-effect errors")
		}
		m.messages = m.backend.Snapshot()
		m.refresh()
		return m, nil

	case statusClearMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.Typing() {
			m.refresh()
		}
		return m, cmd
	}

	if m.open {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *WidgetModel) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit, true

	case key.Matches(msg, m.keys.Toggle):
		m.open = !m.open
		if m.open {
			m.refresh()
			return m.input.Focus(), true
		}
		m.input.Blur()
		return nil, true
	}

	if !m.open {
		return nil, true
	}

	quick := m.ShowingQuickReplies() && m.input.Value() == ""

	switch {
	case key.Matches(msg, m.keys.Submit):
		text := m.input.Value()
		if strings.TrimSpace(text) != "" {
			m.input.Reset()
			return m.submit(text), true
		}
		if quick {
			return m.submit(m.quickReplies[m.selected]), true
		}
		return nil, true

	case key.Matches(msg, m.keys.Copy):
		return m.copyLastReply(), true

	case key.Matches(msg, m.keys.Up):
		if quick {
			m.selected = (m.selected + len(m.quickReplies) - 1) % len(m.quickReplies)
			return nil, true
		}
		m.viewport.ScrollUp(1)
		return nil, true

	case key.Matches(msg, m.keys.Down):
		if quick {
			m.selected = (m.selected + 1) % len(m.quickReplies)
			return nil, true
		}
		m.viewport.ScrollDown(1)
		return nil, true

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.PageUp()
		return nil, true

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.PageDown()
		return nil, true
	}

	if quick && msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
		if r := msg.Runes[0]; r >= '1' && r <= '9' {
			if i := int(r - '1'); i < len(m.quickReplies) {
				return m.submit(m.quickReplies[i]), true
			}
		}
	}
	return nil, false
}

func (m *WidgetModel) submit(text string) tea.Cmd {
	m.inFlight++
	log.Debug().Str("component", "ui").Int("in_flight", m.inFlight).Msg("submitting")
	return askCmd(m.ctx, m.backend, text)
}

func (m *WidgetModel) copyLastReply() tea.Cmd {
	text, ok := conversation.LastBotText(m.messages)
	if !ok {
		return m.setStatus("Nothing to copy yet")
	}
	if err := m.clip(text); err != nil {
		log.Debug().Err(err).Str("component", "ui").Msg("clipboard write failed")
		return m.setStatus("Clipboard unavailable")
	}
	return m.setStatus("Copied last reply")
}

func (m *WidgetModel) setStatus(s string) tea.Cmd {
	m.status = s
	m.statusSeq++
	seq := m.statusSeq
	return tea.Tick(statusTimeout, func(time.Time) tea.Msg { return statusClearMsg{seq: seq} })
}

func (m *WidgetModel) resize(w, h int) {
	m.width, m.height = w, h
	m.viewport.Width = w
	m.viewport.Height = max(h-chromeHeight, minViewport)
	m.input.Width = max(w-4, 10)
	m.help.Width = w
	if !m.fixedRenderer {
		r, err := render.NewTerminal(m.bubbleWidth() - 4)
		if err != nil {
			log.Debug().Err(err).Str("component", "ui").Msg("markdown renderer unavailable")
		}
		m.renderer = r
	}
	m.refresh()
}

func (m WidgetModel) bubbleWidth() int {
	return max(int(float64(m.width)*bubbleWidth), 20)
}

// refresh re-renders the transcript into the viewport and keeps it scrolled
// to the bottom.
func (m *WidgetModel) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m WidgetModel) renderTranscript() string {
	if len(m.messages) == 0 {
		return m.renderInitialState()
	}
	var blocks []string
	for i, msg := range m.messages {
		if msg.Author == conversation.AuthorUser {
			blocks = append(blocks, m.renderUser(msg))
			continue
		}
		if msg.Text == "" {
			if i == len(m.messages)-1 && m.Typing() {
				blocks = append(blocks, m.styles.BotMarker.Render("● ")+m.spinner.View()+m.styles.Typing.Render(" typing"))
			}
			continue
		}
		blocks = append(blocks, m.renderBot(msg))
	}
	return strings.Join(blocks, "\n\n")
}

func (m WidgetModel) renderInitialState() string {
	greeting := m.styles.Greeting.Width(m.width).Render(m.greeting)
	lines := []string{greeting}
	width := min(m.bubbleWidth(), m.width-2)
	for i, q := range m.quickReplies {
		style := m.styles.QuickReply
		if i == m.selected {
			style = m.styles.QuickSelected
		}
		lines = append(lines, style.Width(width).Render(fmt.Sprintf("%d. %s", i+1, q)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m WidgetModel) renderUser(msg conversation.Message) string {
	text := render.Sanitize(msg.Text)
	bubble := m.styles.UserBubble.MaxWidth(m.bubbleWidth()).Width(min(lipgloss.Width(text)+2, m.bubbleWidth())).Render(text)
	meta := session.FormatTime(msg.CreatedAt)
	if msg.IsDelivered() {
		meta = "✓ " + meta
	}
	block := lipgloss.JoinVertical(lipgloss.Right, bubble, m.styles.Meta.Render(meta))
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, block)
}

func (m WidgetModel) renderBot(msg conversation.Message) string {
	var body string
	if m.renderer != nil {
		body = m.renderer.Render(msg.Text)
	} else {
		body = render.Sanitize(msg.Text)
	}
	bubble := m.styles.BotBubble.MaxWidth(m.bubbleWidth()).Render(body)
	return lipgloss.JoinHorizontal(lipgloss.Top, m.styles.BotMarker.Render("● "), bubble)
}

func (m WidgetModel) View() string {
	if !m.open {
		launcher := m.styles.Launcher.Render("● " + m.title + "  (ctrl+o)")
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, launcher)
	}

	header := m.styles.Header.Width(m.width).Render("● " + m.title)
	sessionLine := m.styles.Session.Render(m.backend.SessionID())
	if m.status != "" {
		sessionLine += "  " + m.styles.Status.Render(m.status)
	}

	footer := m.styles.InputBox.Width(m.width).Render(m.input.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		sessionLine,
		m.viewport.View(),
		footer,
		m.help.View(m.keys),
	)
}
