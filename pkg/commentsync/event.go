package commentsync

import (
	"encoding/json"
	"fmt"
)

// Event types form a closed set; anything else is rejected at the
// transport boundary so the rest of the package matches exhaustively.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Event is one comment change received from the push channel.
type Event struct {
	Type    string  `json:"type"`
	Comment Comment `json:"comment"`
}

// ParseEvent validates raw frame data into an Event. Created events
// carry the full comment; updated events need at least id and body;
// deleted events need only the id.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	switch ev.Type {
	case EventCreated, EventUpdated:
		if ev.Comment.ID == "" || ev.Comment.Body == "" {
			return Event{}, fmt.Errorf("%s event missing id or body", ev.Type)
		}
	case EventDeleted:
		if ev.Comment.ID == "" {
			return Event{}, fmt.Errorf("deleted event missing id")
		}
	default:
		return Event{}, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return ev, nil
}
