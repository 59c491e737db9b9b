package chatrunner

import (
	"context"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/chatwidget/pkg/conversation"
	"github.com/go-go-golems/chatwidget/pkg/events"
	"github.com/go-go-golems/chatwidget/pkg/persistence/turnlog"
	"github.com/go-go-golems/chatwidget/pkg/transport"
	"github.com/stretchr/testify/require"
)

func chunksTransport(chunks ...string) transport.Func {
	return func(ctx context.Context, query, sessionID string) iter.Seq2[string, error] {
		return transport.Chunks(chunks...)
	}
}

func failingTransport(partial ...string) transport.Func {
	return func(ctx context.Context, query, sessionID string) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			for _, c := range partial {
				if !yield(c, nil) {
					return
				}
			}
			yield("", &transport.Error{Kind: transport.KindStatus, StatusCode: 500})
		}
	}
}

func newReducer() *conversation.Reducer {
	return conversation.NewReducer(conversation.Config{SessionID: "session_abc123xyz"})
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func subscribe(t *testing.T, bus *events.Bus, sessionID string) *recorder {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch, err := bus.Subscribe(ctx, sessionID)
	require.NoError(t, err)
	rec := &recorder{}
	go func() { _ = events.Consume(ctx, ch, rec.handle) }()
	return rec
}

func TestRunner_AskDeliversTurn(t *testing.T) {
	bus := events.NewInMemoryBus()
	t.Cleanup(func() { _ = bus.Close() })
	rec := subscribe(t, bus, "session_abc123xyz")
	store := turnlog.NewInMemoryStore(0)

	r := NewRunner(newReducer(), chunksTransport("Hi", " there"), WithBus(bus), WithTurnLog(store))
	res, err := r.AskStream(context.Background(), "Hello", nil)
	require.NoError(t, err)
	require.True(t, res.Submitted)
	require.False(t, res.Failed())
	require.Equal(t, "Hi there", res.Reply)
	require.Equal(t, 2, res.Chunks)

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, conversation.DeliveryDelivered, snap[0].DeliveryStatus)
	require.Equal(t, "Hi there", snap[1].Text)

	require.Equal(t, []events.Type{
		events.TypeSubmitted, events.TypeChunk, events.TypeChunk, events.TypeCompleted,
	}, rec.types())
	for _, e := range rec.events {
		require.Equal(t, res.TurnID, e.TurnID)
		require.Equal(t, "session_abc123xyz", e.SessionID)
	}

	records, err := store.List(context.Background(), turnlog.Query{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, turnlog.OutcomeDelivered, records[0].Outcome)
	require.Equal(t, "Hello", records[0].Query)
	require.Equal(t, "Hi there", records[0].Reply)
}

func TestRunner_AskFailureBecomesApology(t *testing.T) {
	bus := events.NewInMemoryBus()
	t.Cleanup(func() { _ = bus.Close() })
	rec := subscribe(t, bus, "session_abc123xyz")
	store := turnlog.NewInMemoryStore(0)

	r := NewRunner(newReducer(), failingTransport("Hi th"), WithBus(bus), WithTurnLog(store))
	res, err := r.AskStream(context.Background(), "Hello", nil)
	require.NoError(t, err)
	require.True(t, res.Failed())

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, conversation.DeliveryPending, snap[0].DeliveryStatus)
	require.Equal(t, "Hi th", snap[1].Text)
	require.Equal(t, conversation.FailureText, snap[2].Text)

	require.Equal(t, []events.Type{events.TypeSubmitted, events.TypeChunk, events.TypeFailed}, rec.types())
	require.Contains(t, rec.events[2].Error, "500")

	records, err := store.List(context.Background(), turnlog.Query{Outcome: turnlog.OutcomeFailed})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotEmpty(t, records[0].Error)
}

func TestRunner_BlankTextDoesNothing(t *testing.T) {
	called := false
	tr := transport.Func(func(ctx context.Context, query, sessionID string) iter.Seq2[string, error] {
		called = true
		return transport.Chunks()
	})
	r := NewRunner(newReducer(), tr)

	res, err := r.AskStream(context.Background(), "   ", nil)
	require.NoError(t, err)
	require.False(t, res.Submitted)
	require.False(t, called)
	require.Empty(t, r.Snapshot())
}

func TestRunner_PassesQueryAndSession(t *testing.T) {
	var gotQuery, gotSession string
	tr := transport.Func(func(ctx context.Context, query, sessionID string) iter.Seq2[string, error] {
		gotQuery, gotSession = query, sessionID
		return transport.Chunks("ok")
	})
	r := NewRunner(newReducer(), tr)

	require.NoError(t, r.Ask(context.Background(), " How much does it cost? "))
	require.Equal(t, " How much does it cost? ", gotQuery)
	require.Equal(t, "session_abc123xyz", gotSession)
}

func TestRunner_OnChunkSeesAppliedState(t *testing.T) {
	red := newReducer()
	r := NewRunner(red, chunksTransport("a", "b", "c"))

	var seen []string
	_, err := r.AskStream(context.Background(), "q", func(chunk string) {
		msgs := red.Snapshot()
		require.NotEmpty(t, msgs)
		seen = append(seen, msgs[len(msgs)-1].Text)
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "ab", "abc"}, seen)
}

func TestRunner_CancelledContextFailsTurn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(newReducer(), transport.Echo(10*time.Millisecond))
	res, err := r.AskStream(ctx, "hi", nil)
	require.NoError(t, err)
	require.True(t, res.Failed())
	msgs := r.Reducer().Snapshot()
	require.Equal(t, conversation.FailureText, msgs[len(msgs)-1].Text)
}

type brokenStore struct{ turnlog.Store }

func (brokenStore) Save(context.Context, turnlog.Record) error { return context.DeadlineExceeded }

func TestRunner_TurnLogFailureIsReturnedButTurnCompletes(t *testing.T) {
	r := NewRunner(newReducer(), chunksTransport("ok"), WithTurnLog(brokenStore{}))
	err := r.Ask(context.Background(), "q")
	require.Error(t, err)

	snap := r.Snapshot()
	require.Equal(t, conversation.DeliveryDelivered, snap[0].DeliveryStatus)
}
