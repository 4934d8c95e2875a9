// Package storage provides durable persistence for the session engine: a
// small key-value contract with file and SQLite backends, a snapshot adapter
// the stores mirror themselves through, and the export/import file format.
package storage

import (
	"encoding/json"
	"errors"

	"github.com/youruser/gemchat/internal/chat"
)

// Fixed keys the session engine persists under.
const (
	KeyChats   = "chats"
	KeyOptions = "options"
)

var (
	ErrBadSchema  = errors.New("unrecognized file format: missing schema identifier")
	ErrBadPayload = errors.New("could not parse file")
)

// KV is the durable storage contract: string keys, JSON-serialized string
// values, synchronous get/set, no transactions.
type KV interface {
	// Get returns the value for key. The second return is false when the
	// key has never been set.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// Snapshot is the full persisted state: every chat plus the string-valued
// settings map.
type Snapshot struct {
	Chats   []chat.Chat       `json:"chats"`
	Options map[string]string `json:"options"`
}

// Adapter mirrors store contents to a KV backend. All methods are
// best-effort from the caller's perspective: the session stores log and
// swallow save failures rather than blocking mutations.
type Adapter struct {
	kv KV
}

// NewAdapter wraps a KV backend.
func NewAdapter(kv KV) *Adapter {
	return &Adapter{kv: kv}
}

// Load reads the persisted snapshot. Missing keys yield empty values so a
// first run starts from a clean slate.
func (a *Adapter) Load() (Snapshot, error) {
	var snap Snapshot

	raw, ok, err := a.kv.Get(KeyChats)
	if err != nil {
		return snap, err
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &snap.Chats); err != nil {
			return snap, err
		}
	}

	raw, ok, err = a.kv.Get(KeyOptions)
	if err != nil {
		return snap, err
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &snap.Options); err != nil {
			return snap, err
		}
	}

	return snap, nil
}

// SaveChats serializes the chat collection under its fixed key.
func (a *Adapter) SaveChats(chats []chat.Chat) error {
	data, err := json.Marshal(chats)
	if err != nil {
		return err
	}
	return a.kv.Set(KeyChats, string(data))
}

// SaveOptions serializes the settings map under its fixed key.
func (a *Adapter) SaveOptions(options map[string]string) error {
	data, err := json.Marshal(options)
	if err != nil {
		return err
	}
	return a.kv.Set(KeyOptions, string(data))
}

// ClearChats removes the persisted chat collection. Options survive.
func (a *Adapter) ClearChats() error {
	return a.kv.Delete(KeyChats)
}

// Close releases the underlying backend.
func (a *Adapter) Close() error {
	return a.kv.Close()
}
