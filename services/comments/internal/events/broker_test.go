package events

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/vidhub/services/comments/internal/store"
)

func testEvent(typ, id string) Event {
	return Event{Type: typ, Comment: store.Comment{ID: id, VideoID: "video-1", Body: "hi"}}
}

func TestBroker_PublishReachesSubscriber(t *testing.T) {
	b := NewBroker(zap.NewNop())

	ch, cancel := b.Subscribe("video-1")
	defer cancel()

	b.Publish("video-1", testEvent(TypeCreated, "c1"))

	select {
	case ev := <-ch:
		if ev.Comment.ID != "c1" {
			t.Fatalf("expected c1, got %s", ev.Comment.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event on subscriber channel")
	}
}

func TestBroker_VideoScoped(t *testing.T) {
	b := NewBroker(zap.NewNop())

	ch, cancel := b.Subscribe("video-1")
	defer cancel()

	b.Publish("video-2", testEvent(TypeCreated, "c1"))

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event for other video: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroker_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker(zap.NewNop())

	ch, cancel := b.Subscribe("video-1")
	if b.SubscriberCount("video-1") != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.SubscriberCount("video-1"))
	}

	cancel()
	cancel() // idempotent

	if b.SubscriberCount("video-1") != 0 {
		t.Fatalf("expected 0 subscribers after cancel, got %d", b.SubscriberCount("video-1"))
	}
	if _, open := <-ch; open {
		t.Fatal("expected channel to be closed after cancel")
	}

	// Publishing to a video with no subscribers must not panic.
	b.Publish("video-1", testEvent(TypeCreated, "c1"))
}

func TestBroker_SlowSubscriberDropsNotBlocks(t *testing.T) {
	b := NewBroker(zap.NewNop())

	_, cancel := b.Subscribe("video-1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Nobody reads; overflow past the buffer must not block.
		for i := 0; i < subscriberBuffer+10; i++ {
			b.Publish("video-1", testEvent(TypeCreated, "c"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}

func TestBroker_MultipleSubscribers(t *testing.T) {
	b := NewBroker(zap.NewNop())

	ch1, cancel1 := b.Subscribe("video-1")
	defer cancel1()
	ch2, cancel2 := b.Subscribe("video-1")
	defer cancel2()

	b.Publish("video-1", testEvent(TypeUpdated, "c9"))

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != TypeUpdated {
				t.Fatalf("subscriber %d: expected updated, got %s", i, ev.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: expected event", i)
		}
	}
}
