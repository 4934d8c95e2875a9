package session

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/youruser/gemchat/internal/chat"
	"github.com/youruser/gemchat/internal/gemini"
)

// namingPlaceholder in the naming prompt template is replaced with the
// model's first response before the naming request is sent.
const namingPlaceholder = "[n]"

const defaultChatName = "New Chat"

const maxGeneratedNameLength = 80

// Provider is the completion backend the orchestrator talks to.
type Provider interface {
	GenerateStream(ctx context.Context, model string, payload gemini.Payload, callback gemini.StreamCallback) error
	Generate(ctx context.Context, model string, payload gemini.Payload) (string, error)
}

// Orchestrator drives streaming exchanges against the provider and lands
// every state change in the store.
type Orchestrator struct {
	store       *Store
	provider    Provider
	namingModel string
	prompt      Prompter
}

// NewOrchestrator builds an Orchestrator. namingModel is the model used for
// auto-naming chats. A nil prompter disables interactive message editing.
func NewOrchestrator(store *Store, provider Provider, namingModel string, prompt Prompter) *Orchestrator {
	return &Orchestrator{
		store:       store,
		provider:    provider,
		namingModel: namingModel,
		prompt:      prompt,
	}
}

// SendMessage sends a user message to the active chat, creating a fresh chat
// first when none is active, and streams the response into a placeholder
// message. It returns ErrChatBusy when the chat already has an exchange in
// flight; provider failures are written into the placeholder instead of
// being returned.
func (o *Orchestrator) SendMessage(ctx context.Context, text string) error {
	target, ok := o.store.ActiveChat()
	if !ok {
		target = o.store.CreateChat()
	}
	return o.fetchAnswer(ctx, target, text, false)
}

// Regenerate discards the last exchange of the active chat and asks the
// provider again. With edit set, the user is prompted to revise the message
// text first; cancelling the prompt aborts.
func (o *Orchestrator) Regenerate(ctx context.Context, edit bool) error {
	target, ok := o.store.ActiveChat()
	if !ok {
		return nil
	}
	text, ok := chat.LastUserText(target)
	if !ok {
		return nil
	}
	if edit {
		if o.prompt == nil {
			return nil
		}
		revised, ok := o.prompt.PromptText("Edit message", text)
		if !ok {
			return nil
		}
		text = revised
	}
	return o.fetchAnswer(ctx, chat.DropTrailingPair(target), text, true)
}

// EditMessage replaces the last exchange of the active chat with a new user
// message and dispatches it.
func (o *Orchestrator) EditMessage(ctx context.Context, newText string) error {
	target, ok := o.store.ActiveChat()
	if !ok {
		return nil
	}
	if _, ok := chat.LastUserText(target); !ok {
		return nil
	}
	return o.fetchAnswer(ctx, chat.DropTrailingPair(target), newText, true)
}

// fetchAnswer runs one full exchange: append the user message and an empty
// placeholder to the chat, stream the response into the placeholder, then
// trigger auto-naming when the chat had no name yet. target is the history
// the request is built from; the store mutation only touches the message
// list, so state changes racing with the dispatch are preserved.
func (o *Orchestrator) fetchAnswer(ctx context.Context, target chat.Chat, text string, dropPair bool) error {
	if err := o.store.beginExchange(target.ID); err != nil {
		return err
	}
	opts := o.store.Options()
	hadName := target.Name != ""

	payload := gemini.BuildPayload(target, opts.ContextWindowSize()).
		WithTemperature(opts.TemperatureValue()).
		WithSystemInstruction(opts.SystemInstruction)
	payload.Contents = append(payload.Contents, gemini.Content{
		Role:  "user",
		Parts: []gemini.Part{{Text: text}},
	})

	userMsg := chat.NewMessage(text, chat.SenderSelf)
	userMsg.TokenCount = gemini.EstimateTokensSimple(text)
	answerMsg := chat.NewMessage("", chat.SenderAI)
	placeholderID := answerMsg.ID
	o.store.pushExchange(target.ID, dropPair, userMsg, answerMsg)

	var accumulated strings.Builder
	gotChunk := false
	err := o.provider.GenerateStream(ctx, target.Model.Key, payload, func(event gemini.StreamEvent) {
		if event.Type != "content" {
			return
		}
		if !gotChunk {
			gotChunk = true
			o.store.clearWaiting()
		}
		accumulated.WriteString(event.Text)
		o.store.updateStreamingMessage(target.ID, placeholderID, accumulated.String(), event.TokenCount)
	})
	o.store.endExchange(target.ID, !gotChunk)

	if err != nil {
		log.Error("Streaming exchange failed: %v", err)
		o.store.overwriteMessageText(target.ID, placeholderID, "Error: "+err.Error())
		return nil
	}
	if !hadName {
		o.nameChatAsync(target.ID, opts.NamingPrompt, accumulated.String())
	}
	return nil
}

// nameChatAsync generates a chat name from the first response in the
// background. A blank template skips the provider and uses the fallback
// name; a provider failure leaves the chat unnamed.
func (o *Orchestrator) nameChatAsync(chatID, template, responseText string) {
	go func() {
		if strings.TrimSpace(template) == "" {
			o.store.setChatName(chatID, defaultChatName)
			return
		}
		payload := gemini.Payload{Contents: []gemini.Content{{
			Role:  "user",
			Parts: []gemini.Part{{Text: strings.ReplaceAll(template, namingPlaceholder, responseText)}},
		}}}
		generated, err := o.provider.Generate(context.Background(), o.namingModel, payload)
		if err != nil {
			log.Error("Failed to generate chat name: %v", err)
			return
		}
		name := cleanChatName(generated)
		if name == "" {
			name = defaultChatName
		}
		o.store.setChatName(chatID, name)
	}()
}

// cleanChatName normalizes a model-generated name: strip whitespace and
// surrounding quotes, then cap the length.
func cleanChatName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, `"'`)
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxGeneratedNameLength {
		name = strings.TrimSpace(string([]rune(name)[:maxGeneratedNameLength]))
	}
	return name
}
