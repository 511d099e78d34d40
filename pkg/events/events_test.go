package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGoChannelBusRoundTrip(t *testing.T) {
	bus, err := BuildBus(Settings{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msgs, err := bus.Subscriber.Subscribe(ctx, ResolutionTopic)
	require.NoError(t, err)

	pub := NewPublisher(bus.Publisher)
	pub.Publish(ResolutionEvent{
		Raw:    "991130",
		UUID:   "6a79ee22-5763-4e24-8b43-942840060b61",
		Source: "alias",
		Route:  "/c/{raw}",
	})

	select {
	case msg := <-msgs:
		var ev ResolutionEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		require.Equal(t, "991130", ev.Raw)
		require.Equal(t, "alias", ev.Source)
		require.False(t, ev.At.IsZero(), "publish stamps the event time")
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("no resolution event received")
	}
}

func TestPublisherNilSafe(t *testing.T) {
	var p *Publisher
	p.Publish(ResolutionEvent{Raw: "x"})
	require.NoError(t, p.Close())

	p = NewPublisher(nil)
	p.Publish(ResolutionEvent{Raw: "x"})
	require.NoError(t, p.Close())
}
