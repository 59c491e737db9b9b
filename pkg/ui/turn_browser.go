package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/chatwidget/pkg/persistence/turnlog"
	"github.com/go-go-golems/chatwidget/pkg/render"
	"github.com/go-go-golems/chatwidget/pkg/session"
)

const maxListWidth = 64

var (
	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(brandColor).
			Padding(0, 1)
	modalBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.DoubleBorder()).
			BorderForeground(brandColor).
			Padding(1, 2)
	infoKeyStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	infoTitleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// turnItem adapts a turn log record to the list.
type turnItem struct {
	rec turnlog.Record
}

func (i turnItem) Title() string {
	return fmt.Sprintf("%s  %s", finishedAt(i.rec), oneLine(i.rec.Query, 48))
}

func (i turnItem) Description() string {
	return fmt.Sprintf("%s · %s", i.rec.Outcome, i.rec.SessionID)
}

func (i turnItem) FilterValue() string { return i.rec.Query }

func finishedAt(r turnlog.Record) string {
	t := time.UnixMilli(r.FinishedAtMs).Local()
	return t.Format("Jan 2") + " " + session.FormatTime(t)
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

type browserKeyMap struct {
	Details key.Binding
	Close   key.Binding
	Quit    key.Binding
}

func defaultBrowserKeyMap() browserKeyMap {
	return browserKeyMap{
		Details: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		Close:   key.NewBinding(key.WithKeys("esc", "enter", "backspace"), key.WithHelp("esc", "close")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// TurnBrowserModel lists recorded turns next to a summary of the selected
// one; enter opens the full query and reply.
type TurnBrowserModel struct {
	list     list.Model
	summary  viewport.Model
	modal    viewport.Model
	renderer *render.Terminal
	keys     browserKeyMap

	selected    *turnlog.Record
	showDetails bool
	ready       bool
	width       int
	height      int
}

func NewTurnBrowser(records []turnlog.Record) TurnBrowserModel {
	items := make([]list.Item, 0, len(records))
	for _, r := range records {
		items = append(items, turnItem{rec: r})
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(brandColor).BorderLeftForeground(brandColor)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.BorderLeftForeground(brandColor)

	l := list.New(items, delegate, 0, 0)
	l.Title = "Turns"
	l.Styles.Title = defaultStyles().Header
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(true)

	m := TurnBrowserModel{
		list: l,
		keys: defaultBrowserKeyMap(),
	}
	if len(records) > 0 {
		first := records[0]
		m.selected = &first
	}
	return m
}

// Selected returns the highlighted turn.
func (m TurnBrowserModel) Selected() (turnlog.Record, bool) {
	if m.selected == nil {
		return turnlog.Record{}, false
	}
	return *m.selected, true
}

func (m TurnBrowserModel) ShowingDetails() bool { return m.showDetails }

func (m TurnBrowserModel) Init() tea.Cmd { return nil }

func (m TurnBrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if m.showDetails {
			if key.Matches(msg, m.keys.Close) {
				m.showDetails = false
				return m, nil
			}
			var cmd tea.Cmd
			m.modal, cmd = m.modal.Update(msg)
			return m, cmd
		}
		if key.Matches(msg, m.keys.Details) && m.selected != nil {
			m.showDetails = true
			m.modal.SetContent(m.details(*m.selected))
			m.modal.GotoTop()
			return m, nil
		}

		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
		m.syncSelection()
	}

	if !m.showDetails {
		var cmd tea.Cmd
		m.summary, cmd = m.summary.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *TurnBrowserModel) syncSelection() {
	item, ok := m.list.SelectedItem().(turnItem)
	if !ok {
		return
	}
	if m.selected != nil && m.selected.SessionID == item.rec.SessionID && m.selected.TurnID == item.rec.TurnID {
		return
	}
	rec := item.rec
	m.selected = &rec
	m.summary.SetContent(m.summaryText(rec))
	m.summary.GotoTop()
}

func (m *TurnBrowserModel) resize(w, h int) {
	m.width, m.height = w, h
	listWidth := min(maxListWidth, w/2)
	paneHeight := max(h-2, 3)
	m.list.SetSize(listWidth, paneHeight)

	summaryWidth := max(w-listWidth-6, 10)
	modalWidth := max(w-12, 20)
	if !m.ready {
		m.summary = viewport.New(summaryWidth, paneHeight)
		m.modal = viewport.New(modalWidth, max(h-8, 3))
		m.ready = true
	} else {
		m.summary.Width, m.summary.Height = summaryWidth, paneHeight
		m.modal.Width, m.modal.Height = modalWidth, max(h-8, 3)
	}

	if r, err := render.NewTerminal(modalWidth - 4); err == nil {
		m.renderer = r
	}
	if m.selected != nil {
		m.summary.SetContent(m.summaryText(*m.selected))
		if m.showDetails {
			m.modal.SetContent(m.details(*m.selected))
		}
	}
}

func (m TurnBrowserModel) summaryText(r turnlog.Record) string {
	var sb strings.Builder
	row := func(k, v string) {
		sb.WriteString(infoKeyStyle.Render(k+": ") + v + "\n")
	}

	sb.WriteString(infoTitleStyle.Render("Turn") + "\n\n")
	row("Session", r.SessionID)
	row("Turn", r.TurnID)
	row("Outcome", string(r.Outcome))
	row("Finished", finishedAt(r))
	if r.StartedAtMs > 0 && r.FinishedAtMs >= r.StartedAtMs {
		row("Duration", (time.Duration(r.FinishedAtMs-r.StartedAtMs) * time.Millisecond).String())
	}
	row("Chunks", fmt.Sprintf("%d", r.Chunks))
	if r.Error != "" {
		row("Error", r.Error)
	}

	sb.WriteString("\n" + infoTitleStyle.Render("Query") + "\n\n")
	sb.WriteString(r.Query + "\n\n")
	sb.WriteString(infoKeyStyle.Render("Press enter for the full reply"))
	return sb.String()
}

func (m TurnBrowserModel) details(r turnlog.Record) string {
	var sb strings.Builder
	sb.WriteString(infoTitleStyle.Render("Query") + "\n\n")
	sb.WriteString(render.Sanitize(r.Query) + "\n\n")
	sb.WriteString(infoTitleStyle.Render("Reply") + "\n\n")
	reply := r.Reply
	if reply == "" {
		reply = "(empty)"
	}
	sb.WriteString(m.renderer.Render(reply))
	if r.Error != "" {
		sb.WriteString("\n" + defaultStyles().Error.Render(r.Error))
	}
	return sb.String()
}

func (m TurnBrowserModel) View() string {
	if !m.ready {
		return "Loading..."
	}
	if len(m.list.Items()) == 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			infoKeyStyle.Render("No turns recorded. Press q to quit."))
	}

	if m.showDetails {
		box := modalBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			defaultStyles().Header.Render(" Turn details "),
			m.modal.View(),
			infoKeyStyle.Render("esc closes · q quits"),
		))
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}

	left := paneStyle.Render(m.list.View())
	right := paneStyle.Render(m.summary.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}
