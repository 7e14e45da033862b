package events

import (
	"sync"

	"go.uber.org/zap"

	"github.com/example/vidhub/internal/platform/metrics"
)

// subscriberBuffer bounds the per-subscriber queue; a subscriber that
// falls this far behind starts losing frames instead of blocking the
// publisher. Clients resync from the thread snapshot on reconnect.
const subscriberBuffer = 64

// Broker is the in-process fan-out registry: one subscriber list per
// video id, explicit unsubscribe, no ambient globals.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[int]chan Event
	next int
	log  *zap.Logger
}

func NewBroker(log *zap.Logger) *Broker {
	return &Broker{
		subs: make(map[string]map[int]chan Event),
		log:  log,
	}
}

// Subscribe registers interest in one video's events. The returned
// cancel function is idempotent and must be called when the consumer
// goes away, or the channel leaks.
func (b *Broker) Subscribe(videoID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++

	ch := make(chan Event, subscriberBuffer)
	if b.subs[videoID] == nil {
		b.subs[videoID] = make(map[int]chan Event)
	}
	b.subs[videoID][id] = ch
	metrics.StreamSubscribers.Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if vs, ok := b.subs[videoID]; ok {
				if _, ok := vs[id]; ok {
					delete(vs, id)
					close(ch)
					metrics.StreamSubscribers.Dec()
				}
				if len(vs) == 0 {
					delete(b.subs, videoID)
				}
			}
		})
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber of videoID without blocking.
// Full subscriber queues drop the frame.
func (b *Broker) Publish(videoID string, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	metrics.EventsPublished.WithLabelValues(ev.Type).Inc()
	for _, ch := range b.subs[videoID] {
		select {
		case ch <- ev:
		default:
			metrics.EventsDropped.Inc()
			b.log.Warn("event dropped, subscriber too slow",
				zap.String("video_id", videoID), zap.String("type", ev.Type))
		}
	}
}

// SubscriberCount reports the live subscriber count for one video.
func (b *Broker) SubscriberCount(videoID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[videoID])
}
