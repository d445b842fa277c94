package instagram

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestamp_Unmarshal(t *testing.T) {
	want := time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"unix micros number", `1742034600000000`, want},
		{"unix micros string", `"1742034600000000"`, want},
		{"rfc3339 string", `"2025-03-15T10:30:00Z"`, want},
		{"null", `null`, time.Time{}},
		{"garbage string", `"not a time"`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(tt.in), &ts); err != nil {
				t.Fatalf("Unmarshal(%s) error: %v", tt.in, err)
			}
			if !ts.Time.Equal(tt.want) {
				t.Errorf("Unmarshal(%s) = %v, want %v", tt.in, ts.Time, tt.want)
			}
		})
	}
}

func TestTimestamp_UnmarshalInsideMessage(t *testing.T) {
	raw := `{"item_id":"m1","item_type":"text","text":"hi","timestamp":"oops"}`
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("message with bad timestamp must still decode: %v", err)
	}
	if msg.ID != "m1" || msg.Text != "hi" {
		t.Errorf("fields lost: %+v", msg)
	}
	if !msg.Timestamp.IsZero() {
		t.Errorf("bad timestamp should decode to zero, got %v", msg.Timestamp.Time)
	}
}

func TestThread_Username(t *testing.T) {
	tests := []struct {
		name   string
		thread Thread
		want   string
	}{
		{"title wins", Thread{Title: "alice", Users: []ThreadUser{{Username: "bob"}}}, "alice"},
		{"first user username", Thread{Users: []ThreadUser{{Username: "bob"}}}, "bob"},
		{"full name fallback", Thread{Users: []ThreadUser{{FullName: "Bob Smith"}}}, "Bob Smith"},
		{"inviter fallback", Thread{Inviter: &ThreadUser{Username: "carol"}}, "carol"},
		{"nothing known", Thread{}, "unknown_user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.thread.Username(); got != tt.want {
				t.Errorf("Username() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessage_HasText(t *testing.T) {
	if (Message{Type: "media"}).HasText() {
		t.Error("media message reported as text-bearing")
	}
	if !(Message{Type: "text", Text: "hi"}).HasText() {
		t.Error("text message not reported as text-bearing")
	}
}
