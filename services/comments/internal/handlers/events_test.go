package handlers

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/vidhub/services/comments/internal/events"
	"github.com/example/vidhub/services/comments/internal/store"
)

// readFrame reads one SSE frame (up to the blank line) and returns the
// event name and data payload.
func readFrame(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if event != "" || data != "" {
				return event, data
			}
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case strings.HasPrefix(line, ":"):
			// heartbeat comment, skip
		}
	}
}

func TestStreamComments(t *testing.T) {
	broker := events.NewBroker(zap.NewNop())

	r := chi.NewRouter()
	r.Get("/v1/videos/{video_id}/comments/events", StreamComments(broker, zap.NewNop()))
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/videos/video-1/comments/events")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	br := bufio.NewReader(resp.Body)

	// First frame acknowledges the subscription.
	event, _ := readFrame(t, br)
	if event != "connected" {
		t.Fatalf("expected connected frame first, got %q", event)
	}

	// Wait for the subscription to be visible, then publish.
	deadline := time.Now().Add(2 * time.Second)
	for broker.SubscriberCount("video-1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	broker.Publish("video-1", events.Event{
		Type:    events.TypeCreated,
		Comment: store.Comment{ID: "c1", VideoID: "video-1", UserID: "u1", Body: "hi"},
	})

	event, data := readFrame(t, br)
	if event != "comment" {
		t.Fatalf("expected comment frame, got %q", event)
	}
	if !strings.Contains(data, `"id":"c1"`) {
		t.Fatalf("expected payload to contain comment id, got %s", data)
	}
}

func TestStreamComments_MissingVideoID(t *testing.T) {
	broker := events.NewBroker(zap.NewNop())
	handler := StreamComments(broker, zap.NewNop())

	req := setupReq(http.MethodGet, "/v1/videos//comments/events", "",
		map[string]string{"video_id": ""}, "")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
