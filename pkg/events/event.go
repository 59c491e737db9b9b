// Package events carries conversation changes from the turn runner to
// whatever renders them.
package events

import (
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Type string

const (
	TypeSubmitted Type = "submitted"
	TypeChunk     Type = "chunk"
	TypeCompleted Type = "completed"
	TypeFailed    Type = "failed"
)

// Event is the JSON payload of every bus message.
type Event struct {
	Type      Type   `json:"type"`
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id"`
	Chunk     string `json:"chunk,omitempty"`
	Error     string `json:"error,omitempty"`
	AtMs      int64  `json:"at_ms"`
}

func New(t Type, sessionID string, turnID uuid.UUID, at time.Time) Event {
	return Event{Type: t, SessionID: sessionID, TurnID: turnID.String(), AtMs: at.UnixMilli()}
}

// Terminal reports whether e ends a turn.
func (e Event) Terminal() bool { return e.Type == TypeCompleted || e.Type == TypeFailed }

func (e Event) toMessage() (*message.Message, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "marshal event")
	}
	msg := message.NewMessage(uuid.NewString(), b)
	msg.Metadata.Set("type", string(e.Type))
	msg.Metadata.Set("session_id", e.SessionID)
	msg.Metadata.Set("turn_id", e.TurnID)
	return msg, nil
}

// Decode parses the payload of a bus message.
func Decode(msg *message.Message) (Event, error) {
	var e Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return Event{}, errors.Wrapf(err, "decode event %s", msg.UUID)
	}
	if e.Type == "" {
		return Event{}, errors.Errorf("event %s has no type", msg.UUID)
	}
	return e, nil
}
