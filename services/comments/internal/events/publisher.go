package events

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher routes comment events toward subscribers. With a NATS
// connection every event goes over the bus and comes back through the
// consumer, so all service instances see the same stream; without one
// (development, tests) events go straight to the local broker.
// Publishing is fire-and-forget: a write that already committed must
// not fail because the notification could not be sent.
type Publisher struct {
	nc     *nats.Conn
	broker *Broker
	log    *zap.Logger
}

func NewPublisher(nc *nats.Conn, broker *Broker, log *zap.Logger) *Publisher {
	return &Publisher{nc: nc, broker: broker, log: log}
}

// Publish sends ev to the video's subscribers. Failures are logged and
// swallowed.
func (p *Publisher) Publish(ev Event) {
	if p == nil {
		return
	}
	videoID := ev.Comment.VideoID
	if videoID == "" {
		p.log.Warn("event without video id dropped", zap.String("type", ev.Type))
		return
	}

	if p.nc == nil {
		p.broker.Publish(videoID, ev)
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("event marshal failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	if err := p.nc.Publish(Subject(videoID), data); err != nil {
		p.log.Warn("event publish failed",
			zap.String("subject", Subject(videoID)), zap.Error(err))
		// Local subscribers still get the event.
		p.broker.Publish(videoID, ev)
	}
}
