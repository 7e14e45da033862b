package events

import (
	"context"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// StartConsumer subscribes to all comment event subjects and feeds the
// local broker. It returns after the subscription is established; the
// subscription is torn down when ctx is canceled.
func StartConsumer(ctx context.Context, nc *nats.Conn, broker *Broker, log *zap.Logger) error {
	sub, err := nc.Subscribe(subjectPrefix+"*", func(m *nats.Msg) {
		ev, err := ParseEvent(m.Data)
		if err != nil {
			log.Warn("invalid comment event", zap.String("subject", m.Subject), zap.Error(err))
			return
		}
		broker.Publish(VideoIDFromSubject(m.Subject), ev)
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return nil
}
