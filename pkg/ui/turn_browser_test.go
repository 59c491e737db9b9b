package ui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/chatwidget/pkg/persistence/turnlog"
	"github.com/stretchr/testify/require"
)

func browserRecords() []turnlog.Record {
	base := time.Date(2024, 5, 1, 15, 4, 0, 0, time.Local).UnixMilli()
	return []turnlog.Record{
		{SessionID: "session_aaaaaaaaa", TurnID: "t2", Query: "How much does it cost?", Reply: "**1.000.000 IDR**", Outcome: turnlog.OutcomeDelivered, Chunks: 3, StartedAtMs: base, FinishedAtMs: base + 1500},
		{SessionID: "session_aaaaaaaaa", TurnID: "t1", Query: "Hello", Outcome: turnlog.OutcomeFailed, Error: "status 500", StartedAtMs: base - 60000, FinishedAtMs: base - 59000},
	}
}

func sizedBrowser(t *testing.T, records []turnlog.Record) TurnBrowserModel {
	t.Helper()
	m := NewTurnBrowser(records)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	return next.(TurnBrowserModel)
}

func TestTurnBrowser_SelectsFirstTurn(t *testing.T) {
	m := sizedBrowser(t, browserRecords())
	rec, ok := m.Selected()
	require.True(t, ok)
	require.Equal(t, "t2", rec.TurnID)

	view := m.View()
	require.Contains(t, view, "How much does it cost?")
	require.Contains(t, view, "delivered")
}

func TestTurnBrowser_MovingUpdatesSummary(t *testing.T) {
	m := sizedBrowser(t, browserRecords())
	next, _ := m.Update(keyMsg(tea.KeyDown))
	m = next.(TurnBrowserModel)

	rec, ok := m.Selected()
	require.True(t, ok)
	require.Equal(t, "t1", rec.TurnID)
	require.Contains(t, m.View(), "status 500")
}

func TestTurnBrowser_EnterOpensAndEscClosesDetails(t *testing.T) {
	m := sizedBrowser(t, browserRecords())

	next, _ := m.Update(keyMsg(tea.KeyEnter))
	m = next.(TurnBrowserModel)
	require.True(t, m.ShowingDetails())
	view := m.View()
	require.Contains(t, view, "Turn details")
	require.Contains(t, view, "1.000.000 IDR")

	next, _ = m.Update(keyMsg(tea.KeyEsc))
	m = next.(TurnBrowserModel)
	require.False(t, m.ShowingDetails())
}

func TestTurnBrowser_QuitKey(t *testing.T) {
	m := sizedBrowser(t, browserRecords())
	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestTurnBrowser_Empty(t *testing.T) {
	m := sizedBrowser(t, nil)
	_, ok := m.Selected()
	require.False(t, ok)
	require.Contains(t, m.View(), "No turns recorded")

	next, _ := m.Update(keyMsg(tea.KeyEnter))
	require.False(t, next.(TurnBrowserModel).ShowingDetails())
}

func TestOneLine(t *testing.T) {
	require.Equal(t, "a b c", oneLine("a\n b\t c", 10))
	require.Equal(t, "abcd…", oneLine("abcdefgh", 5))
}
