package instagram

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Timestamp accepts the timestamp shapes the direct API actually returns:
// unix microseconds as a number, the same as a string, an RFC3339 string,
// or null. Unparseable values decode to the zero time instead of erroring;
// a missing timestamp must never fail a whole inbox fetch.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		t.Time = time.Time{}
		return nil
	}

	// Numeric: unix microseconds.
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.UnixMicro(n)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		t.Time = time.Time{}
		return nil
	}
	if n, err := strconv.ParseInt(str, 10, 64); err == nil {
		t.Time = time.UnixMicro(n)
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339, str); err == nil {
		t.Time = parsed
		return nil
	}
	t.Time = time.Time{}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(t.UnixMicro(), 10)), nil
}

// Message is one item in a thread. Text is empty for non-text items
// (media, likes, placeholders); such messages are carried but ignored by
// the engine. ID may be empty for some provider states.
type Message struct {
	ID           string    `json:"item_id,omitempty"`
	Type         string    `json:"item_type,omitempty"`
	Text         string    `json:"text,omitempty"`
	UserID       int64     `json:"user_id,omitempty"`
	Timestamp    Timestamp `json:"timestamp,omitempty"`
	SentByViewer bool      `json:"is_sent_by_viewer,omitempty"`
}

// HasText reports whether the message carries usable text content.
func (m Message) HasText() bool {
	return m.Text != ""
}

// ThreadUser is a participant in a thread.
type ThreadUser struct {
	Username string `json:"username,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// Thread is a snapshot of one conversation as fetched from the provider.
// Messages are ordered newest-first. The engine never holds an authoritative
// copy; threads are transient fetch results.
type Thread struct {
	ID          string       `json:"thread_id"`
	Title       string       `json:"thread_title,omitempty"`
	Users       []ThreadUser `json:"users,omitempty"`
	Inviter     *ThreadUser  `json:"inviter,omitempty"`
	Messages    []Message    `json:"items,omitempty"`
	UnreadCount int          `json:"unread_count,omitempty"`
	Pending     bool         `json:"pending,omitempty"`
}

const unknownUser = "unknown_user"

// Username extracts a display name for the counterparty, trying the thread
// title, then the first listed user, then the inviter.
func (t Thread) Username() string {
	if t.Title != "" {
		return t.Title
	}
	if len(t.Users) > 0 {
		if t.Users[0].Username != "" {
			return t.Users[0].Username
		}
		if t.Users[0].FullName != "" {
			return t.Users[0].FullName
		}
	}
	if t.Inviter != nil && t.Inviter.Username != "" {
		return t.Inviter.Username
	}
	return unknownUser
}
