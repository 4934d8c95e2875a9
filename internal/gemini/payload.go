package gemini

import "github.com/youruser/gemchat/internal/chat"

// BuildPayload maps a chat's trailing messages into the provider wire shape.
//
// The window is always consumed in self/ai pairs so the role sequence the
// provider sees keeps alternating: a size of zero or less becomes 2 (one
// exchange) and an odd size is rounded up to the next even number. A chat
// shorter than the window contributes all of its messages.
func BuildPayload(c chat.Chat, windowSize int) Payload {
	if windowSize <= 0 {
		windowSize = 2
	} else if windowSize%2 != 0 {
		windowSize++
	}

	start := len(c.Messages) - windowSize
	if start < 0 {
		start = 0
	}

	window := c.Messages[start:]
	contents := make([]Content, 0, len(window))
	for _, msg := range window {
		role := "model"
		if msg.Sender == chat.SenderSelf {
			role = "user"
		}
		contents = append(contents, Content{
			Role:  role,
			Parts: []Part{{Text: msg.Text}},
		})
	}

	return Payload{Contents: contents}
}

// WithTemperature returns the payload with a generation config attached.
// Negative temperatures leave the provider default in place.
func (p Payload) WithTemperature(temperature float64, ok bool) Payload {
	if !ok || temperature < 0 {
		return p
	}
	p.GenerationConfig = &GenerationConfig{Temperature: temperature}
	return p
}

// WithSystemInstruction returns the payload with a system instruction
// attached. A blank instruction is a no-op.
func (p Payload) WithSystemInstruction(instruction string) Payload {
	if instruction == "" {
		return p
	}
	p.SystemInstruction = &Content{Parts: []Part{{Text: instruction}}}
	return p
}
