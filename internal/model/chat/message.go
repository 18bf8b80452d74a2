package chat

import (
	"strings"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem only appears in upstream payloads, never in a conversation.
	RoleSystem Role = "system"
)

// Feedback is the viewer's rating of an assistant message.
type Feedback string

const (
	FeedbackPositive Feedback = "positive"
	FeedbackNegative Feedback = "negative"
)

// ParseFeedback accepts the canonical values as well as the "up"/"down"
// shorthand used by the web widget.
func ParseFeedback(raw string) (Feedback, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "positive", "up", "+":
		return FeedbackPositive, true
	case "negative", "down", "-":
		return FeedbackNegative, true
	default:
		return "", false
	}
}

// Message is one entry of a conversation. Everything except Feedback is
// fixed once the message is created.
type Message struct {
	ID       string    `json:"id"`
	Role     Role      `json:"role"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sentAt"`
	Feedback Feedback  `json:"feedback,omitempty"`
}

// Turn projects a Message down to what the proxy needs.
func (m Message) Turn() Turn {
	return Turn{Role: m.Role, Content: m.Content}
}
