// Package chat holds the conversation document model: value types for chats
// and messages plus pure update functions over them. Every function returns a
// new Chat with a fresh message slice; the input is never mutated, so callers
// can hold a snapshot across an in-flight exchange without it shifting
// underneath them.
package chat

import "time"

// copySuffix is appended to a chat's name when it is branched.
const copySuffix = " (Copy)"

// cloneMessages returns an independent copy of a message slice.
func cloneMessages(messages []Message) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)
	return out
}

// Clone returns a deep copy of the chat.
func Clone(c Chat) Chat {
	c.Messages = cloneMessages(c.Messages)
	return c
}

// NewMessage builds a message with a generated ID and the current time,
// a zero token count and unpinned.
func NewMessage(text string, sender Sender) Message {
	return Message{
		ID:        NewID(),
		Text:      text,
		CreatedAt: time.Now().UnixMilli(),
		Sender:    sender,
	}
}

// AppendMessage returns a copy of the chat with a new message appended.
// If messageID is empty a fresh ID is generated. The message starts with a
// zero token count and unpinned.
func AppendMessage(c Chat, text string, sender Sender, messageID string) Chat {
	msg := NewMessage(text, sender)
	if messageID != "" {
		msg.ID = messageID
	}
	messages := make([]Message, 0, len(c.Messages)+1)
	messages = append(messages, c.Messages...)
	messages = append(messages, msg)
	c.Messages = messages
	return c
}

// SetMessageText returns a copy of the chat with the identified message's
// text replaced. Unknown IDs are a no-op.
func SetMessageText(c Chat, messageID, text string) Chat {
	messages := cloneMessages(c.Messages)
	for i := range messages {
		if messages[i].ID == messageID {
			messages[i].Text = text
			break
		}
	}
	c.Messages = messages
	return c
}

// SetMessageTokenCount returns a copy of the chat with the identified
// message's token count replaced. Unknown IDs are a no-op.
func SetMessageTokenCount(c Chat, messageID string, count int) Chat {
	messages := cloneMessages(c.Messages)
	for i := range messages {
		if messages[i].ID == messageID {
			messages[i].TokenCount = count
			break
		}
	}
	c.Messages = messages
	return c
}

// TogglePin returns a copy of the chat with the identified message's pinned
// flag flipped. Unknown IDs are a no-op.
func TogglePin(c Chat, messageID string) Chat {
	messages := cloneMessages(c.Messages)
	for i := range messages {
		if messages[i].ID == messageID {
			messages[i].Pinned = !messages[i].Pinned
			break
		}
	}
	c.Messages = messages
	return c
}

// DropTrailingPair returns a copy of the chat with the last two messages
// (the most recent user/AI exchange) removed. Chats with fewer than two
// messages are returned unchanged; callers check LastUserText first.
func DropTrailingPair(c Chat) Chat {
	if len(c.Messages) < 2 {
		c.Messages = cloneMessages(c.Messages)
		return c
	}
	c.Messages = cloneMessages(c.Messages[:len(c.Messages)-2])
	return c
}

// LastUserText returns the text of the second-to-last message, which is the
// most recent user turn once an exchange has settled. The second return is
// false when no such message exists.
func LastUserText(c Chat) (string, bool) {
	if len(c.Messages) < 2 {
		return "", false
	}
	return c.Messages[len(c.Messages)-2].Text, true
}

// Branch returns a new chat derived from c: fresh ID, name suffixed with a
// copy marker, inactive, and messages sliced to end inclusively at
// uptoMessageID. An empty or unknown uptoMessageID copies the full history.
func Branch(c Chat, newID, uptoMessageID string) Chat {
	end := len(c.Messages)
	if uptoMessageID != "" {
		for i, m := range c.Messages {
			if m.ID == uptoMessageID {
				end = i + 1
				break
			}
		}
	}
	branched := Chat{
		ID:       newID,
		Name:     c.Name + copySuffix,
		Active:   false,
		Model:    c.Model,
		Messages: cloneMessages(c.Messages[:end]),
	}
	return branched
}
