package events

import (
	"testing"
)

func TestParseEvent_Created(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"created","comment":{"id":"c1","video_id":"v1","user_id":"u1","body":"hi"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Type != TypeCreated || ev.Comment.ID != "c1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestParseEvent_UpdatedRequiresBody(t *testing.T) {
	_, err := ParseEvent([]byte(`{"type":"updated","comment":{"id":"c1"}}`))
	if err == nil {
		t.Fatal("expected error for updated event without body")
	}
}

func TestParseEvent_DeletedRequiresOnlyID(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"deleted","comment":{"id":"c1"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Comment.ID != "c1" {
		t.Fatalf("expected id c1, got %q", ev.Comment.ID)
	}
}

func TestParseEvent_UnknownType(t *testing.T) {
	_, err := ParseEvent([]byte(`{"type":"upvoted","comment":{"id":"c1"}}`))
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestParseEvent_MalformedJSON(t *testing.T) {
	_, err := ParseEvent([]byte(`{not json`))
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestSubjectRoundTrip(t *testing.T) {
	s := Subject("video-42")
	if s != "comments.video.video-42" {
		t.Fatalf("unexpected subject: %s", s)
	}
	if got := VideoIDFromSubject(s); got != "video-42" {
		t.Fatalf("expected video-42, got %q", got)
	}
}
