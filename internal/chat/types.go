package chat

// Sender identifies who produced a message.
type Sender string

const (
	// SenderSelf marks a message typed by the user.
	SenderSelf Sender = "self"
	// SenderAI marks a message produced by the completion provider.
	SenderAI Sender = "ai"
)

// ModelRef identifies the completion model a chat is bound to.
type ModelRef struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Message is a single turn in a conversation. Identity is ID, generated once
// at creation and never reused. Text and TokenCount are mutated during
// streaming, Pinned via toggle; everything else is immutable after creation.
type Message struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	CreatedAt  int64  `json:"createdAt"` // unix milliseconds
	Sender     Sender `json:"sender"`
	TokenCount int    `json:"tokenCount"`
	Pinned     bool   `json:"pinned"`
}

// Chat is one persisted conversation session. Message order is array
// position: messages are only appended, truncated from the tail, or sliced
// from the head to a branch point, never reordered.
type Chat struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Active   bool      `json:"active"`
	Model    ModelRef  `json:"model"`
	Messages []Message `json:"messages"`
}

// Summary is a read-only projection of a chat for list views.
type Summary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Summarize returns the chat's list projection.
func (c Chat) Summarize() Summary {
	return Summary{ID: c.ID, Name: c.Name, Active: c.Active}
}

// TokenCount returns the sum of token counts over all messages in the chat.
func (c Chat) TokenCount() int {
	total := 0
	for _, m := range c.Messages {
		total += m.TokenCount
	}
	return total
}
