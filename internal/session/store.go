package session

import (
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/youruser/gemchat/internal/chat"
	"github.com/youruser/gemchat/internal/logging"
	"github.com/youruser/gemchat/internal/storage"
)

var log = logging.Get()

var (
	// ErrChatNotFound is returned when an operation targets a chat id that
	// does not exist.
	ErrChatNotFound = errors.New("chat not found")
	// ErrNameEmpty is returned when a chat rename has no visible characters.
	ErrNameEmpty = errors.New("chat name cannot be empty")
	// ErrNameTooLong is returned when a chat rename exceeds 200 characters.
	ErrNameTooLong = errors.New("chat name cannot exceed 200 characters")
	// ErrChatBusy is returned when a chat already has an exchange in flight.
	ErrChatBusy = errors.New("chat already has a response in progress")
	// ErrUnknownModel is returned when a model key is not in the catalog.
	ErrUnknownModel = errors.New("unknown model")
)

const maxChatNameLength = 200

// Store holds the full session state: the chat collection, the generation
// options, the selected model and the transient busy flags. All methods are
// safe for concurrent use.
type Store struct {
	mu            sync.Mutex
	chats         []chat.Chat
	options       Options
	selectedModel chat.ModelRef
	viewOptions   bool

	// generating counts exchanges dispatched and not yet settled; waiting
	// counts exchanges still before their first streamed byte. inFlight
	// guards against a second exchange on the same chat.
	generating int
	waiting    int
	inFlight   map[string]bool

	adapter *storage.Adapter
	confirm Confirmer
}

// NewStore loads persisted state through the adapter and builds a Store.
// defaultModelKey selects the initial model when no active chat pins one;
// an unknown key falls back to the first catalog entry. A nil confirmer
// declines every destructive operation.
func NewStore(adapter *storage.Adapter, confirm Confirmer, defaultModelKey string) (*Store, error) {
	snap, err := adapter.Load()
	if err != nil {
		return nil, err
	}
	s := &Store{
		chats:    snap.Chats,
		options:  OptionsFromMap(snap.Options),
		inFlight: make(map[string]bool),
		adapter:  adapter,
		confirm:  confirm,
	}
	s.selectedModel = models[0]
	if m, ok := ModelByKey(defaultModelKey); ok {
		s.selectedModel = m
	}
	if active, ok := s.activeChatLocked(); ok {
		s.selectedModel = active.Model
	}
	return s, nil
}

// NewChat deselects every chat so the next message starts a fresh one.
func (s *Store) NewChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deactivateAllLocked()
	s.viewOptions = false
	s.persistChatsLocked()
}

// CreateChat appends a new empty chat bound to the selected model, makes it
// the active chat and returns a copy of it.
func (s *Store) CreateChat() chat.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createChatLocked()
}

func (s *Store) createChatLocked() chat.Chat {
	s.deactivateAllLocked()
	c := chat.Chat{
		ID:       chat.NewID(),
		Active:   true,
		Model:    s.selectedModel,
		Messages: []chat.Message{},
	}
	s.chats = append(s.chats, c)
	s.persistChatsLocked()
	return chat.Clone(c)
}

// SelectChat makes the given chat the single active one and aligns the
// selected model with it.
func (s *Store) SelectChat(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		return ErrChatNotFound
	}
	s.deactivateAllLocked()
	s.chats[idx].Active = true
	s.selectedModel = s.chats[idx].Model
	s.viewOptions = false
	s.persistChatsLocked()
	return nil
}

// DeleteChat removes a chat after confirmation. Declining leaves the state
// untouched. Deleting the active chat leaves no chat active.
func (s *Store) DeleteChat(id string) error {
	if !s.confirmed("Are you sure you want to delete this chat?") {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		return ErrChatNotFound
	}
	s.chats = append(s.chats[:idx], s.chats[idx+1:]...)
	s.persistChatsLocked()
	return nil
}

// EditChatName renames a chat. The name must be non-blank and at most 200
// characters.
func (s *Store) EditChatName(id, name string) error {
	if utf8.RuneCountInString(name) > maxChatNameLength {
		return ErrNameTooLong
	}
	if strings.TrimSpace(name) == "" {
		return ErrNameEmpty
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		return ErrChatNotFound
	}
	s.chats[idx].Name = name
	s.persistChatsLocked()
	return nil
}

// CloneChat copies a chat into a new inactive chat named after the source
// with a " (Copy)" suffix. A non-empty uptoMessageID limits the copied
// history to the messages up to and including that message.
func (s *Store) CloneChat(id, uptoMessageID string) (chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		return chat.Chat{}, ErrChatNotFound
	}
	branched := chat.Branch(s.chats[idx], chat.NewID(), uptoMessageID)
	s.chats = append(s.chats, branched)
	s.persistChatsLocked()
	return chat.Clone(branched), nil
}

// TogglePinMessage flips the pinned flag of a message. Unknown chat or
// message ids are ignored.
func (s *Store) TogglePinMessage(chatID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOfLocked(chatID)
	if idx < 0 {
		return
	}
	s.chats[idx] = chat.TogglePin(s.chats[idx], messageID)
	s.persistChatsLocked()
}

// ClearAll deletes every chat after confirmation. Options are not touched.
func (s *Store) ClearAll() error {
	if !s.confirmed("Are you sure you want to delete all chats?") {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = nil
	if err := s.adapter.ClearChats(); err != nil {
		log.Error("Failed to clear chats: %v", err)
		return err
	}
	return nil
}

// ChatSummaries lists every chat without its message history.
func (s *Store) ChatSummaries() []chat.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Summary, len(s.chats))
	for i, c := range s.chats {
		out[i] = c.Summarize()
	}
	return out
}

// Chats returns deep copies of every chat.
func (s *Store) Chats() []chat.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Chat, len(s.chats))
	for i, c := range s.chats {
		out[i] = chat.Clone(c)
	}
	return out
}

// ActiveChat returns a copy of the active chat, if any.
func (s *Store) ActiveChat() (chat.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.activeChatLocked()
	if !ok {
		return chat.Chat{}, false
	}
	return chat.Clone(c), true
}

// Chat returns a copy of the chat with the given id.
func (s *Store) Chat(id string) (chat.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		return chat.Chat{}, false
	}
	return chat.Clone(s.chats[idx]), true
}

// AggregateTokenCount sums the token counts of every message in every chat.
func (s *Store) AggregateTokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for i := range s.chats {
		total += s.chats[i].TokenCount()
	}
	return total
}

// SelectedModel returns the model the next new chat will be bound to.
func (s *Store) SelectedModel() chat.ModelRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedModel
}

// UpdateSelectModel changes the selected model. Switching away from the
// active chat's model deselects every chat, since a chat keeps the model it
// was created with.
func (s *Store) UpdateSelectModel(key string) error {
	m, ok := ModelByKey(key)
	if !ok {
		return ErrUnknownModel
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedModel = m
	if active, ok := s.activeChatLocked(); ok && active.Model.Key != key {
		s.deactivateAllLocked()
		s.viewOptions = false
		s.persistChatsLocked()
	}
	return nil
}

// ToggleViewOptions flips the options panel flag and returns the new value.
func (s *Store) ToggleViewOptions() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewOptions = !s.viewOptions
	return s.viewOptions
}

// ViewOptions reports whether the options panel is open.
func (s *Store) ViewOptions() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewOptions
}

// Options returns the current generation settings.
func (s *Store) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

// UpdateOption sets one generation setting and persists the options.
func (s *Store) UpdateOption(opt Option, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch opt {
	case OptionContextWindow:
		s.options.ContextWindow = value
	case OptionNamingPrompt:
		s.options.NamingPrompt = value
	case OptionTemperature:
		s.options.Temperature = value
	case OptionSystemInstruction:
		s.options.SystemInstruction = value
	}
	return s.persistOptionsLocked()
}

// RestoreDefaults resets every option to its factory value after
// confirmation.
func (s *Store) RestoreDefaults() error {
	if !s.confirmed("Are you sure you want to restore the default settings?") {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options = DefaultOptions()
	return s.persistOptionsLocked()
}

// Export serializes the full session state into the portable envelope.
func (s *Store) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chats := make([]chat.Chat, len(s.chats))
	for i, c := range s.chats {
		chats[i] = chat.Clone(c)
	}
	return storage.Export(storage.Snapshot{Chats: chats, Options: s.options.Map()})
}

// Import replaces the full session state with the contents of an exported
// envelope and persists it.
func (s *Store) Import(data []byte) error {
	snap, err := storage.Import(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = snap.Chats
	s.options = OptionsFromMap(snap.Options)
	if active, ok := s.activeChatLocked(); ok {
		s.selectedModel = active.Model
	}
	s.persistChatsLocked()
	return s.persistOptionsLocked()
}

// IsGenerating reports whether any exchange is in flight.
func (s *Store) IsGenerating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generating > 0
}

// IsLoading reports whether any exchange is still waiting for its first
// streamed byte.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiting > 0
}

// beginExchange marks a chat busy and raises the generating and loading
// flags. It fails when the chat already has an exchange in flight.
func (s *Store) beginExchange(chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[chatID] {
		return ErrChatBusy
	}
	s.inFlight[chatID] = true
	s.generating++
	s.waiting++
	return nil
}

// clearWaiting drops the loading flag for one exchange. Called once, on the
// first streamed chunk.
func (s *Store) clearWaiting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiting--
}

// endExchange settles an exchange. stillWaiting is true when the stream
// ended before its first chunk.
func (s *Store) endExchange(chatID string, stillWaiting bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, chatID)
	s.generating--
	if stillWaiting {
		s.waiting--
	}
}

// pushExchange appends the user turn and its answer placeholder onto the
// chat's current messages, optionally discarding the previous trailing
// question/answer pair first. Only the message list changes, so selection,
// rename and pin updates that land while a request is being prepared are
// never clobbered. Pushes for a chat deleted mid-flight are dropped.
func (s *Store) pushExchange(chatID string, dropPair bool, user, answer chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOfLocked(chatID)
	if idx < 0 {
		return
	}
	c := s.chats[idx]
	if dropPair {
		c = chat.DropTrailingPair(c)
	} else {
		c = chat.Clone(c)
	}
	c.Messages = append(c.Messages, user, answer)
	s.chats[idx] = c
	s.persistChatsLocked()
}

// updateStreamingMessage rewrites the text and token count of the message
// being streamed into.
func (s *Store) updateStreamingMessage(chatID, messageID, text string, tokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOfLocked(chatID)
	if idx < 0 {
		return
	}
	c := chat.SetMessageText(s.chats[idx], messageID, text)
	s.chats[idx] = chat.SetMessageTokenCount(c, messageID, tokens)
	s.persistChatsLocked()
}

// overwriteMessageText rewrites only the text of a message, leaving its
// token count alone.
func (s *Store) overwriteMessageText(chatID, messageID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOfLocked(chatID)
	if idx < 0 {
		return
	}
	s.chats[idx] = chat.SetMessageText(s.chats[idx], messageID, text)
	s.persistChatsLocked()
}

// setChatName renames a chat without validation, used by auto-naming.
func (s *Store) setChatName(chatID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOfLocked(chatID)
	if idx < 0 {
		return
	}
	s.chats[idx].Name = name
	s.persistChatsLocked()
}

func (s *Store) confirmed(question string) bool {
	return s.confirm != nil && s.confirm.Confirm(question)
}

func (s *Store) indexOfLocked(id string) int {
	for i := range s.chats {
		if s.chats[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) activeChatLocked() (chat.Chat, bool) {
	for i := range s.chats {
		if s.chats[i].Active {
			return s.chats[i], true
		}
	}
	return chat.Chat{}, false
}

func (s *Store) deactivateAllLocked() {
	for i := range s.chats {
		s.chats[i].Active = false
	}
}

// Persistence is best effort: a failed write is logged and the in-memory
// state stays authoritative.
func (s *Store) persistChatsLocked() {
	if err := s.adapter.SaveChats(s.chats); err != nil {
		log.Error("Failed to persist chats: %v", err)
	}
}

func (s *Store) persistOptionsLocked() error {
	if err := s.adapter.SaveOptions(s.options.Map()); err != nil {
		log.Error("Failed to persist options: %v", err)
		return err
	}
	return nil
}
