package chat

import "github.com/google/uuid"

// NewID generates a unique identifier for chats and messages.
func NewID() string {
	return uuid.NewString()
}
