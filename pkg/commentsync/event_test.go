package commentsync

import "testing"

func TestParseEvent(t *testing.T) {
	cases := []struct {
		name string
		data string
		ok   bool
	}{
		{"created", `{"type":"created","comment":{"id":"c1","body":"hi"}}`, true},
		{"updated", `{"type":"updated","comment":{"id":"c1","body":"hi!"}}`, true},
		{"deleted", `{"type":"deleted","comment":{"id":"c1"}}`, true},
		{"deleted without body", `{"type":"deleted","comment":{"id":"c1","body":""}}`, true},
		{"not json", `{nope`, false},
		{"unknown type", `{"type":"archived","comment":{"id":"c1","body":"x"}}`, false},
		{"created missing id", `{"type":"created","comment":{"body":"x"}}`, false},
		{"updated missing body", `{"type":"updated","comment":{"id":"c1"}}`, false},
		{"deleted missing id", `{"type":"deleted","comment":{}}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tc.data))
			if tc.ok && err != nil {
				t.Fatalf("expected valid event, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected error, got %v", ev)
			}
		})
	}
}
