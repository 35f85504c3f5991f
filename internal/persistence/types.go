package persistence

import "time"

// EventKind is the kind of a stored chat event.
type EventKind string

const (
	KindMessage EventKind = "message"
	KindNotice  EventKind = "notice"
	KindCheer   EventKind = "cheer"
)

// ChatEvent is one rendered event in the transcript.
type ChatEvent struct {
	ID          string    `json:"id"`
	Kind        EventKind `json:"kind"`
	Channel     string    `json:"channel"`
	Login       string    `json:"login,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Body        string    `json:"body"`
	MsgID       string    `json:"msg_id,omitempty"`
	Bits        int       `json:"bits,omitempty"`
	SentAt      time.Time `json:"sent_at"`
	// Translation is filled by RecentEvents when one was stored.
	Translation string `json:"translation,omitempty"`
}

// TranslationRecord is a completed translation of a message body.
type TranslationRecord struct {
	MessageID  string    `json:"message_id"`
	Language   string    `json:"language"`
	Source     string    `json:"source"`
	Translated string    `json:"translated"`
	CreatedAt  time.Time `json:"created_at"`
}
