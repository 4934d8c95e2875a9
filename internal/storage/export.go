package storage

import (
	"encoding/json"

	"github.com/youruser/gemchat/internal/chat"
)

// schemaID tags export files so unrelated JSON is rejected on import.
const schemaID = "geminiChat"

// envelope is the export file format.
type envelope struct {
	ID      string            `json:"id"`
	Chats   []chat.Chat       `json:"chats"`
	Options map[string]string `json:"options"`
}

// Export serializes a snapshot into the portable export format.
func Export(snap Snapshot) ([]byte, error) {
	env := envelope{
		ID:      schemaID,
		Chats:   snap.Chats,
		Options: snap.Options,
	}
	if env.Chats == nil {
		env.Chats = []chat.Chat{}
	}
	if env.Options == nil {
		env.Options = map[string]string{}
	}
	return json.MarshalIndent(env, "", "  ")
}

// Import parses an export file, validating the schema tag. The returned
// snapshot wholesale-replaces current state; nothing is merged.
func Import(data []byte) (Snapshot, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Snapshot{}, ErrBadPayload
	}
	if env.ID != schemaID {
		return Snapshot{}, ErrBadSchema
	}
	return Snapshot{Chats: env.Chats, Options: env.Options}, nil
}
