package events

import (
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ResolutionTopic carries one event per terminal resolution outcome.
const ResolutionTopic = "convlink.resolutions"

// ResolutionEvent is the audit record published after every resolution a
// gateway route performs. Downstream consumers (SLA tooling, analytics)
// subscribe to it; nothing in this service reads it back.
type ResolutionEvent struct {
	Raw    string    `json:"raw"`
	UUID   string    `json:"uuid,omitempty"`
	Source string    `json:"source,omitempty"`
	Minted bool      `json:"minted"`
	Route  string    `json:"route"`
	At     time.Time `json:"at"`
}

// Publisher publishes resolution events. Publish failures are logged and
// swallowed; auditing never fails a request.
type Publisher struct {
	pub message.Publisher
}

func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub}
}

// Publish emits ev on the resolution topic. Safe on a nil Publisher.
func (p *Publisher) Publish(ev ResolutionEvent) {
	if p == nil || p.pub == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Warn().Err(err).Msg("marshal resolution event")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.pub.Publish(ResolutionTopic, msg); err != nil {
		log.Warn().Err(err).Str("route", ev.Route).Msg("publish resolution event")
	}
}

// Close shuts the underlying publisher down.
func (p *Publisher) Close() error {
	if p == nil || p.pub == nil {
		return nil
	}
	return errors.Wrap(p.pub.Close(), "close event publisher")
}
