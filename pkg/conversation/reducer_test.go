package conversation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	t0 := time.Date(2024, 5, 1, 15, 4, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func newTestReducer() *Reducer {
	return NewReducer(Config{SessionID: "session_abc123xyz", Clock: fixedClock()})
}

type shape struct {
	author Author
	text   string
	status DeliveryStatus
}

func requireShape(t *testing.T, r *Reducer, want ...shape) {
	t.Helper()
	got := r.Snapshot()
	require.Len(t, got, len(want))
	for i, w := range want {
		require.Equal(t, w.author, got[i].Author, "author at %d", i)
		require.Equal(t, w.text, got[i].Text, "text at %d", i)
		require.Equal(t, w.status, got[i].DeliveryStatus, "status at %d", i)
	}
}

func TestReducer_SubmitAppendsUserAndPlaceholder(t *testing.T) {
	r := newTestReducer()

	req, ok := r.Submit("Hello")
	require.True(t, ok)
	require.Equal(t, "Hello", req.Query)
	require.Equal(t, "session_abc123xyz", req.SessionID)

	requireShape(t, r,
		shape{AuthorUser, "Hello", DeliveryPending},
		shape{AuthorBot, "", DeliveryNone},
	)

	snap := r.Snapshot()
	require.Equal(t, req.TurnID, snap[0].TurnID)
	require.Equal(t, req.TurnID, snap[1].TurnID)
	require.Equal(t, snap[0].CreatedAt, snap[1].CreatedAt)
	require.NotEqual(t, snap[0].ID, snap[1].ID)
}

func TestReducer_SubmitIgnoresBlankText(t *testing.T) {
	r := newTestReducer()

	for _, text := range []string{"", "   ", "\t\n"} {
		_, ok := r.Submit(text)
		require.False(t, ok, "text %q", text)
	}
	require.Equal(t, 0, r.Len())
}

func TestReducer_SubmitKeepsUntrimmedQuery(t *testing.T) {
	r := newTestReducer()
	req, ok := r.Submit("  hi  ")
	require.True(t, ok)
	require.Equal(t, "  hi  ", req.Query)
	require.Equal(t, "  hi  ", r.Snapshot()[0].Text)
}

func TestReducer_StreamScenario(t *testing.T) {
	r := newTestReducer()

	_, ok := r.Submit("Hello")
	require.True(t, ok)
	r.OnChunk("Hi")
	r.OnChunk(" there")
	r.OnStreamEnd()

	requireShape(t, r,
		shape{AuthorUser, "Hello", DeliveryDelivered},
		shape{AuthorBot, "Hi there", DeliveryNone},
	)
}

func TestReducer_ErrorScenario(t *testing.T) {
	r := newTestReducer()

	_, ok := r.Submit("Hello")
	require.True(t, ok)
	r.OnStreamError(errors.New("connection refused"))

	requireShape(t, r,
		shape{AuthorUser, "Hello", DeliveryPending},
		shape{AuthorBot, "", DeliveryNone},
		shape{AuthorBot, FailureText, DeliveryNone},
	)
}

func TestReducer_ErrorMidStreamKeepsPartialText(t *testing.T) {
	r := newTestReducer()

	_, _ = r.Submit("Hello")
	r.OnChunk("Hi th")
	r.OnStreamError(errors.New("unexpected EOF"))

	requireShape(t, r,
		shape{AuthorUser, "Hello", DeliveryPending},
		shape{AuthorBot, "Hi th", DeliveryNone},
		shape{AuthorBot, FailureText, DeliveryNone},
	)
}

func TestReducer_RechunkingYieldsSameText(t *testing.T) {
	const total = "The membership costs 1.000.000 IDR per year — ✓ including tax. 日本語も大丈夫"

	splits := map[string][]string{
		"single":     {total},
		"bytes":      splitEvery(total, 1),
		"threes":     splitEvery(total, 3),
		"words":      strings.SplitAfter(total, " "),
		"halves":     {total[:len(total)/2], total[len(total)/2:]},
		"with-empty": {"", total[:5], "", total[5:], ""},
	}

	for name, chunks := range splits {
		t.Run(name, func(t *testing.T) {
			r := newTestReducer()
			_, _ = r.Submit("q")
			lengths := []int{}
			for _, c := range chunks {
				r.OnChunk(c)
				last := lastMessage(t, r)
				lengths = append(lengths, len(last.Text))
			}
			r.OnStreamEnd()

			require.Equal(t, total, lastMessage(t, r).Text)
			for i := 1; i < len(lengths); i++ {
				require.GreaterOrEqual(t, lengths[i], lengths[i-1])
			}
		})
	}
}

func TestReducer_StreamEndTwiceIsNoop(t *testing.T) {
	r := newTestReducer()

	_, _ = r.Submit("Hello")
	r.OnChunk("Hi")
	r.OnStreamEnd()
	r.OnStreamEnd()

	snap := r.Snapshot()
	delivered := 0
	for _, m := range snap {
		if m.IsDelivered() {
			delivered++
		}
	}
	require.Equal(t, 1, delivered)
	require.Equal(t, DeliveryDelivered, snap[0].DeliveryStatus)
}

func TestReducer_StreamEndSkipsWhenTailIsNotAUserTurn(t *testing.T) {
	r := newTestReducer()
	r.OnStreamEnd()
	require.Equal(t, 0, r.Len())

	_, _ = r.Submit("Hello")
	r.OnStreamError(errors.New("boom"))
	// len-2 is now the empty placeholder, not the user message
	r.OnStreamEnd()

	requireShape(t, r,
		shape{AuthorUser, "Hello", DeliveryPending},
		shape{AuthorBot, "", DeliveryNone},
		shape{AuthorBot, FailureText, DeliveryNone},
	)
}

func TestReducer_ChunkOnEmptyTranscriptIsNoop(t *testing.T) {
	r := newTestReducer()
	r.OnChunk("orphan")
	require.Equal(t, 0, r.Len())
}

func TestReducer_DeliveredNeverReverts(t *testing.T) {
	r := newTestReducer()

	_, _ = r.Submit("first")
	r.OnChunk("a")
	r.OnStreamEnd()

	_, _ = r.Submit("second")
	r.OnStreamError(errors.New("boom"))
	r.OnStreamEnd()

	snap := r.Snapshot()
	require.Equal(t, DeliveryDelivered, snap[0].DeliveryStatus)
	require.Equal(t, DeliveryPending, snap[2].DeliveryStatus)
}

// Two submits before the first stream completes. Every chunk lands on the
// newest placeholder and the first stream's end marks the second question as
// delivered. This records current behavior; it is not a designed policy.
func TestReducer_OverlappingSubmitsInterleaveOnLastMessage(t *testing.T) {
	r := newTestReducer()

	first, _ := r.Submit("A?")
	second, _ := r.Submit("B?")
	require.NotEqual(t, first.TurnID, second.TurnID)

	r.OnChunk("a1")
	r.OnChunk("b1")
	r.OnChunk("a2")
	r.OnStreamEnd() // stream A completes
	r.OnChunk("b2")
	r.OnStreamEnd() // stream B completes

	requireShape(t, r,
		shape{AuthorUser, "A?", DeliveryPending},
		shape{AuthorBot, "", DeliveryNone},
		shape{AuthorUser, "B?", DeliveryDelivered},
		shape{AuthorBot, "a1b1a2b2", DeliveryNone},
	)
}

func TestReducer_SnapshotIsACopy(t *testing.T) {
	r := newTestReducer()
	_, _ = r.Submit("Hello")

	snap := r.Snapshot()
	snap[0].Text = "mutated"
	snap[1].Text = "mutated"

	requireShape(t, r,
		shape{AuthorUser, "Hello", DeliveryPending},
		shape{AuthorBot, "", DeliveryNone},
	)
}

func TestLastBotText(t *testing.T) {
	r := newTestReducer()
	_, ok := LastBotText(r.Snapshot())
	require.False(t, ok)

	_, _ = r.Submit("Hello")
	_, ok = LastBotText(r.Snapshot())
	require.False(t, ok)

	r.OnChunk("Hi there")
	r.OnStreamEnd()
	_, _ = r.Submit("again")
	text, ok := LastBotText(r.Snapshot())
	require.True(t, ok)
	require.Equal(t, "Hi there", text)
}

func lastMessage(t *testing.T, r *Reducer) Message {
	t.Helper()
	msgs := r.Snapshot()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func TestEntries(t *testing.T) {
	r := newTestReducer()
	_, _ = r.Submit("Hello")
	r.OnChunk("Hi")
	r.OnStreamEnd()

	entries := Entries(r.Snapshot())
	require.Len(t, entries, 2)
	require.Equal(t, "user", entries[0].Author)
	require.Equal(t, "delivered", entries[0].Status)
	require.Equal(t, "bot", entries[1].Author)
	require.Empty(t, entries[1].Status)
}

func splitEvery(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	return append(out, s)
}
