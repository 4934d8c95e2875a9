package gemini

// Part is one text fragment inside a content entry.
type Part struct {
	Text string `json:"text"`
}

// Content is one conversational turn in the provider wire format.
// Role is "user" or "model".
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// GenerationConfig carries optional sampling parameters.
type GenerationConfig struct {
	Temperature float64 `json:"temperature"`
}

// Payload is the request body for generateContent / streamGenerateContent.
type Payload struct {
	Contents          []Content         `json:"contents"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
}

// UsageMetadata reports cumulative token counts for a response.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Candidate is one generated completion.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// APIError is the provider's error envelope payload.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// GenerateResponse is a full or incremental generateContent response.
// Streaming responses arrive as a sequence of these, one per SSE data line.
type GenerateResponse struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
	Error         *APIError      `json:"error,omitempty"`
}

// Text concatenates the text parts of the first candidate.
func (r *GenerateResponse) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var out string
	for _, part := range r.Candidates[0].Content.Parts {
		out += part.Text
	}
	return out
}

// StreamEvent is delivered to the stream callback for each chunk.
type StreamEvent struct {
	Type       string // "content", "done", "error"
	Text       string // incremental text fragment (content events)
	TokenCount int    // cumulative token count reported so far, 0 if unknown
	Error      string // human-readable failure detail (error events)
}
