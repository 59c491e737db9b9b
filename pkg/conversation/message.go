package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Author identifies who wrote a transcript entry.
type Author int

const (
	AuthorUser Author = iota
	AuthorBot
)

func (a Author) String() string {
	switch a {
	case AuthorUser:
		return "user"
	case AuthorBot:
		return "bot"
	default:
		return "unknown"
	}
}

// DeliveryStatus is the acknowledgement state shown next to user messages.
// Bot messages always carry DeliveryNone.
type DeliveryStatus int

const (
	DeliveryNone DeliveryStatus = iota
	DeliveryPending
	DeliveryDelivered
)

func (s DeliveryStatus) String() string {
	switch s {
	case DeliveryPending:
		return "pending"
	case DeliveryDelivered:
		return "delivered"
	default:
		return "none"
	}
}

// Message is one transcript entry.
//
// ID and TurnID exist for logging and event correlation only; the reducer locates
// messages by position, never by id.
type Message struct {
	ID             uuid.UUID      `json:"id" yaml:"id"`
	TurnID         uuid.UUID      `json:"turn_id" yaml:"turn_id"`
	Text           string         `json:"text" yaml:"text"`
	Author         Author         `json:"-" yaml:"-"`
	DeliveryStatus DeliveryStatus `json:"-" yaml:"-"`
	CreatedAt      time.Time      `json:"created_at" yaml:"created_at"`
}

func (m Message) IsUser() bool { return m.Author == AuthorUser }

func (m Message) IsDelivered() bool {
	return m.Author == AuthorUser && m.DeliveryStatus == DeliveryDelivered
}

// Entry is the flattened, serializable view of a Message used for
// transcript dumps.
type Entry struct {
	Author    string    `json:"author" yaml:"author"`
	Text      string    `json:"text" yaml:"text"`
	Status    string    `json:"status,omitempty" yaml:"status,omitempty"`
	TurnID    string    `json:"turn_id" yaml:"turn_id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

func (m Message) Entry() Entry {
	e := Entry{
		Author:    m.Author.String(),
		Text:      m.Text,
		TurnID:    m.TurnID.String(),
		CreatedAt: m.CreatedAt,
	}
	if m.Author == AuthorUser {
		e.Status = m.DeliveryStatus.String()
	}
	return e
}

// Entries flattens a transcript snapshot.
func Entries(msgs []Message) []Entry {
	out := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Entry())
	}
	return out
}
