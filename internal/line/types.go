// Package line holds the messaging-platform boundary: webhook payload types
// and the reply client. Everything here is a thin wire wrapper; the platform
// itself owns delivery and retry policy.
package line

// WebhookRequest is the decoded body of one inbound webhook POST.
type WebhookRequest struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event is a single user action pushed by the platform.
type Event struct {
	Type       string  `json:"type"`
	ReplyToken string  `json:"replyToken"`
	Timestamp  int64   `json:"timestamp"`
	Source     Source  `json:"source"`
	Message    Message `json:"message"`
}

// Source identifies the sender of an event.
type Source struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// Message is the message attached to a message-type event.
type Message struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Text string `json:"text"`
}

// IsTextMessage reports whether the event carries user text to process.
func (e Event) IsTextMessage() bool {
	return e.Type == "message" && e.Message.Type == "text"
}

// QuickAction is a tappable shortcut attached to a reply.
type QuickAction struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Reply is one outbound reply keyed by the event's reply token.
type Reply struct {
	ReplyToken   string        `json:"replyToken"`
	Text         string        `json:"text"`
	QuickActions []QuickAction `json:"quickActions,omitempty"`
}
