package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-go-golems/chatwidget/pkg/logging"
	"github.com/go-go-golems/chatwidget/pkg/redisstream"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultTopicPrefix = "chatwidget"

// Bus publishes conversation events on one topic per session.
type Bus struct {
	prefix     string
	publisher  message.Publisher
	subscriber message.Subscriber
	closer     func() error
	// ensure prepares a topic before the first subscription; nil for in-memory.
	ensure func(ctx context.Context, topic string) error
}

// NewInMemoryBus returns a bus backed by watermill's gochannel pubsub.
// Publish blocks until every subscriber has acked, so per-subscriber order
// matches publish order.
func NewInMemoryBus() *Bus {
	logger := logging.NewWatermill(log.Logger)
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            256,
		BlockPublishUntilSubscriberAck: true,
	}, logger)
	return &Bus{
		prefix:     DefaultTopicPrefix,
		publisher:  ch,
		subscriber: ch,
		closer:     ch.Close,
	}
}

// NewBus returns a Redis Streams bus when s.Enabled, otherwise an in-memory one.
func NewBus(ctx context.Context, s redisstream.Settings) (*Bus, error) {
	if !s.Enabled {
		return NewInMemoryBus(), nil
	}
	ps, err := redisstream.New(ctx, s, logging.NewWatermill(log.Logger))
	if err != nil {
		return nil, err
	}
	prefix := s.Stream
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	log.Info().Str("addr", s.Addr).Str("group", s.Group).Msg("event bus using redis streams")
	return &Bus{
		prefix:     prefix,
		publisher:  ps.Publisher,
		subscriber: ps.Subscriber,
		closer:     ps.Close,
		ensure:     ps.EnsureGroupAtTail,
	}, nil
}

func (b *Bus) Topic(sessionID string) string {
	return b.prefix + "." + sessionID
}

func (b *Bus) Publish(e Event) error {
	msg, err := e.toMessage()
	if err != nil {
		return err
	}
	if err := b.publisher.Publish(b.Topic(e.SessionID), msg); err != nil {
		return errors.Wrapf(err, "publish %s event", e.Type)
	}
	log.Trace().
		Str("component", "events").
		Str("type", string(e.Type)).
		Str("turn_id", e.TurnID).
		Msg("published")
	return nil
}

// Subscribe returns the raw message channel for a session. Every message
// must be acked; an in-memory publisher waits for it.
func (b *Bus) Subscribe(ctx context.Context, sessionID string) (<-chan *message.Message, error) {
	topic := b.Topic(sessionID)
	if b.ensure != nil {
		if err := b.ensure(ctx, topic); err != nil {
			return nil, err
		}
	}
	ch, err := b.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, errors.Wrapf(err, "subscribe to %s", topic)
	}
	return ch, nil
}

// Handler consumes one decoded event.
type Handler func(Event) error

// Consume decodes and acks messages from ch until ctx ends or ch closes.
// Handler errors and undecodable messages are logged; the message is acked
// either way so a publisher waiting on the ack is never stuck.
func Consume(ctx context.Context, ch <-chan *message.Message, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			e, err := Decode(msg)
			if err != nil {
				log.Warn().Err(err).Str("component", "events").Msg("dropping undecodable event")
				msg.Ack()
				continue
			}
			if err := h(e); err != nil {
				log.Warn().Err(err).Str("component", "events").Str("type", string(e.Type)).Msg("handler failed")
			}
			msg.Ack()
		}
	}
}

func (b *Bus) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}
