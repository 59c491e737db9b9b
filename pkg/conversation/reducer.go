package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// FailureText replaces whatever the transport reported when a stream fails.
const FailureText = "Something went wrong. Please try again later."

// Config carries the state a Reducer would otherwise read from globals.
type Config struct {
	SessionID string
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// TurnRequest describes the streamed call a Submit asks for.
type TurnRequest struct {
	TurnID    uuid.UUID
	Query     string
	SessionID string
}

// Reducer owns a transcript and applies the submit / chunk / end / error
// transitions to it. It performs no I/O.
//
// Chunks and stream ends are applied to the tail of the transcript, so the
// reducer assumes one turn in flight at a time. Overlapping turns are not
// serialized; their writes interleave on the last message.
type Reducer struct {
	sessionID string
	clock     func() time.Time

	mu       sync.RWMutex
	messages []*Message
}

func NewReducer(cfg Config) *Reducer {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Reducer{
		sessionID: cfg.SessionID,
		clock:     clock,
	}
}

func (r *Reducer) SessionID() string { return r.sessionID }

// Submit appends the user message and its empty bot placeholder. Text that is
// blank after trimming is ignored and ok is false.
func (r *Reducer) Submit(text string) (req TurnRequest, ok bool) {
	if strings.TrimSpace(text) == "" {
		return TurnRequest{}, false
	}

	now := r.clock()
	turnID := uuid.New()

	r.mu.Lock()
	r.messages = append(r.messages,
		&Message{
			ID:             uuid.New(),
			TurnID:         turnID,
			Text:           text,
			Author:         AuthorUser,
			DeliveryStatus: DeliveryPending,
			CreatedAt:      now,
		},
		&Message{
			ID:        uuid.New(),
			TurnID:    turnID,
			Author:    AuthorBot,
			CreatedAt: now,
		},
	)
	n := len(r.messages)
	r.mu.Unlock()

	log.Debug().
		Str("component", "reducer").
		Str("session_id", r.sessionID).
		Str("turn_id", turnID.String()).
		Int("messages", n).
		Msg("turn submitted")

	return TurnRequest{TurnID: turnID, Query: text, SessionID: r.sessionID}, true
}

// OnChunk appends chunk to the last message in the transcript.
func (r *Reducer) OnChunk(chunk string) {
	if chunk == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return
	}
	last := r.messages[len(r.messages)-1]
	last.Text += chunk
}

// OnStreamEnd marks the user message two positions before the end as
// delivered. It is a no-op when that slot holds anything else.
func (r *Reducer) OnStreamEnd() {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.messages)
	if n < 2 {
		return
	}
	target := r.messages[n-2]
	if target.Author != AuthorUser {
		log.Debug().
			Str("component", "reducer").
			Str("session_id", r.sessionID).
			Msg("stream end: no user message at len-2, skipping delivery mark")
		return
	}
	target.DeliveryStatus = DeliveryDelivered
}

// OnStreamError appends a fresh bot message carrying FailureText. The pending
// user message of the failed turn is left pending.
func (r *Reducer) OnStreamError(err error) {
	now := r.clock()

	r.mu.Lock()
	turnID := uuid.Nil
	if n := len(r.messages); n > 0 {
		turnID = r.messages[n-1].TurnID
	}
	r.messages = append(r.messages, &Message{
		ID:        uuid.New(),
		TurnID:    turnID,
		Text:      FailureText,
		Author:    AuthorBot,
		CreatedAt: now,
	})
	r.mu.Unlock()

	log.Warn().
		Err(err).
		Str("component", "reducer").
		Str("session_id", r.sessionID).
		Str("turn_id", turnID.String()).
		Msg("stream failed")
}

// Snapshot returns a copy of the transcript.
func (r *Reducer) Snapshot() []Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Message, len(r.messages))
	for i, m := range r.messages {
		out[i] = *m
	}
	return out
}

func (r *Reducer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}

// LastBotText returns the text of the most recent non-empty bot message in
// msgs.
func LastBotText(msgs []Message) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if m := msgs[i]; m.Author == AuthorBot && m.Text != "" {
			return m.Text, true
		}
	}
	return "", false
}
