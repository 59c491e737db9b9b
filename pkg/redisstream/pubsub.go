// Package redisstream builds the Redis Streams publisher and subscriber
// behind the event bus.
package redisstream

import (
	"context"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// PubSub bundles the publisher, subscriber and the client they share.
type PubSub struct {
	Client     redis.UniversalClient
	Publisher  message.Publisher
	Subscriber message.Subscriber
	settings   Settings
}

// New connects to Redis and builds a publisher and a group subscriber.
func New(ctx context.Context, s Settings, logger watermill.LoggerAdapter) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{Addr: s.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis at %s", s.Addr)
	}
	ps, err := NewWithClient(client, s, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return ps, nil
}

// NewWithClient is New for a caller-owned client.
func NewWithClient(client redis.UniversalClient, s Settings, logger watermill.LoggerAdapter) (*PubSub, error) {
	marshaler := rstream.DefaultMarshallerUnmarshaller{}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "create redis stream publisher")
	}

	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  marshaler,
		ConsumerGroup: s.Group,
		Consumer:      s.Consumer,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, errors.Wrap(err, "create redis stream subscriber")
	}

	return &PubSub{Client: client, Publisher: pub, Subscriber: sub, settings: s}, nil
}

// EnsureGroupAtTail creates the consumer group for stream at the tail ($) if
// it doesn't exist, so a fresh subscriber does not replay history.
func (p *PubSub) EnsureGroupAtTail(ctx context.Context, stream string) error {
	err := p.Client.XGroupCreateMkStream(ctx, stream, p.settings.Group, "$").Err()
	if err != nil {
		// BUSYGROUP: group already exists
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return errors.Wrapf(err, "create consumer group %s on %s", p.settings.Group, stream)
	}
	log.Debug().Str("stream", stream).Str("group", p.settings.Group).Msg("created redis consumer group at $ (tail)")
	return nil
}

func (p *PubSub) Close() error {
	var errs []error
	if err := p.Subscriber.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.Publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.Client.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Errorf("close redis pubsub: %v", errs)
	}
	return nil
}
