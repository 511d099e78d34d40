package events

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Settings selects the audit bus transport.
type Settings struct {
	// RedisEnabled switches from the in-process gochannel bus to Redis
	// Streams, so events survive the process and fan out to other consumers.
	RedisEnabled bool   `mapstructure:"redis_enabled"`
	RedisAddr    string `mapstructure:"redis_addr"`
	Group        string `mapstructure:"group"`
	Consumer     string `mapstructure:"consumer"`
}

// Bus bundles a publisher with an optional subscriber for the same
// transport.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// BuildBus constructs the audit bus. Default is an in-memory gochannel
// pub/sub; with RedisEnabled the bus runs over Redis Streams.
func BuildBus(s Settings) (*Bus, error) {
	logger := newWatermillLogger(log.Logger)

	if !s.RedisEnabled {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
		return &Bus{Publisher: ch, Subscriber: ch}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
	marshaler := rstream.DefaultMarshallerUnmarshaller{}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "build redis stream publisher")
	}

	group := s.Group
	if group == "" {
		group = "convlink"
	}
	consumer := s.Consumer
	if consumer == "" {
		consumer = "convlink-1"
	}
	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  marshaler,
		ConsumerGroup: group,
		Consumer:      consumer,
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "build redis stream subscriber")
	}

	return &Bus{Publisher: pub, Subscriber: sub}, nil
}
