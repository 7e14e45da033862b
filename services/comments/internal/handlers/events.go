package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/vidhub/internal/platform/api"
	"github.com/example/vidhub/services/comments/internal/events"
)

// heartbeatInterval keeps intermediaries from timing out idle streams.
const heartbeatInterval = 25 * time.Second

// StreamComments handles GET /v1/videos/{video_id}/comments/events
//
// Server-sent event stream. The first frame is `event: connected`;
// every comment change then arrives as `event: comment` with the JSON
// event envelope as data. The stream ends when the client disconnects
// or the server shuts down.
func StreamComments(broker *events.Broker, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := strings.TrimSpace(chi.URLParam(r, "video_id"))
		if videoID == "" {
			api.BadRequest(w, "MISSING_ID", "video_id is required", "", nil)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			api.Internal(w, "")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		ch, cancel := broker.Subscribe(videoID)
		defer cancel()

		// Subscription is live before the ack goes out, so no event
		// published after the ack can be missed.
		_, _ = fmt.Fprint(w, "event: connected\ndata: {}\n\n")
		flusher.Flush()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case ev, open := <-ch:
				if !open {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					log.Warn("event marshal failed", zap.String("video_id", videoID), zap.Error(err))
					continue
				}
				if _, err := fmt.Fprintf(w, "event: comment\ndata: %s\n\n", data); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
