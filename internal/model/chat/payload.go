package chat

// Turn is a single role/content pair as exchanged with the completion proxy.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the body accepted by the healthchat endpoint.
type CompletionRequest struct {
	Messages []Turn `json:"messages"`
}

// CompletionResponse carries the assistant reply on success.
type CompletionResponse struct {
	Content string `json:"content"`
}

// ErrorResponse is returned for every non-200 outcome.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Project converts a message history into proxy turns, dropping ids,
// timestamps and feedback.
func Project(messages []Message) []Turn {
	turns := make([]Turn, 0, len(messages))
	for _, msg := range messages {
		turns = append(turns, msg.Turn())
	}
	return turns
}
