// Package events distributes comment change notifications: handlers
// publish them, NATS carries them between instances, and the broker
// fans them out to connected event stream subscribers.
package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/vidhub/services/comments/internal/store"
)

// Event types form a closed set; anything else is rejected at the boundary.
const (
	TypeCreated = "created"
	TypeUpdated = "updated"
	TypeDeleted = "deleted"
)

// Event is the wire envelope for a single comment change.
type Event struct {
	Type    string        `json:"type"`
	Comment store.Comment `json:"comment"`
}

// subjectPrefix scopes comment events on the NATS bus; the final token
// is the video id.
const subjectPrefix = "comments.video."

// Subject returns the NATS subject carrying events for one video.
func Subject(videoID string) string {
	return subjectPrefix + videoID
}

// VideoIDFromSubject extracts the video id from a comment event subject.
func VideoIDFromSubject(subject string) string {
	return strings.TrimPrefix(subject, subjectPrefix)
}

// ParseEvent validates raw payload bytes into an Event.
// The minimum required fields depend on the type: created needs the
// full comment, updated needs id and body, deleted needs id.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	switch ev.Type {
	case TypeCreated:
		if ev.Comment.ID == "" || ev.Comment.Body == "" {
			return Event{}, fmt.Errorf("created event missing comment fields")
		}
	case TypeUpdated:
		if ev.Comment.ID == "" || ev.Comment.Body == "" {
			return Event{}, fmt.Errorf("updated event missing id or body")
		}
	case TypeDeleted:
		if ev.Comment.ID == "" {
			return Event{}, fmt.Errorf("deleted event missing id")
		}
	default:
		return Event{}, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return ev, nil
}
