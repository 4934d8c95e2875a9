package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sseChunk(text string, totalTokens int) string {
	if totalTokens > 0 {
		return fmt.Sprintf(`data: {"candidates":[{"content":{"parts":[{"text":%q}],"role":"model"}}],"usageMetadata":{"totalTokenCount":%d}}`, text, totalTokens)
	}
	return fmt.Sprintf(`data: {"candidates":[{"content":{"parts":[{"text":%q}],"role":"model"}}]}`, text)
}

func TestGenerateStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":streamGenerateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("alt") != "sse" {
			t.Errorf("expected alt=sse, got %q", r.URL.Query().Get("alt"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintln(w, sseChunk("Hello", 3))
		fmt.Fprintln(w)
		fmt.Fprintln(w, sseChunk(", world", 5))
		fmt.Fprintln(w)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")

	var texts []string
	var tokens []int
	var done bool
	err := client.GenerateStream(context.Background(), "gemini-2.0-flash", Payload{}, func(event StreamEvent) {
		switch event.Type {
		case "content":
			texts = append(texts, event.Text)
			tokens = append(tokens, event.TokenCount)
		case "done":
			done = true
		}
	})
	if err != nil {
		t.Fatalf("GenerateStream failed: %v", err)
	}

	if strings.Join(texts, "") != "Hello, world" {
		t.Errorf("accumulated text = %q, want %q", strings.Join(texts, ""), "Hello, world")
	}
	if len(tokens) != 2 || tokens[0] != 3 || tokens[1] != 5 {
		t.Errorf("token counts = %v, want [3 5]", tokens)
	}
	if !done {
		t.Error("expected a done event after stream end")
	}
}

func TestGenerateStreamSkipsMalformedChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "data: {not json")
		fmt.Fprintln(w)
		fmt.Fprintln(w, ": comment line")
		fmt.Fprintln(w, sseChunk("ok", 0))
		fmt.Fprintln(w)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")

	var got string
	err := client.GenerateStream(context.Background(), "m", Payload{}, func(event StreamEvent) {
		if event.Type == "content" {
			got += event.Text
		}
	})
	if err != nil {
		t.Fatalf("GenerateStream failed: %v", err)
	}
	if got != "ok" {
		t.Errorf("text = %q, want %q", got, "ok")
	}
}

func TestGenerateStreamProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, sseChunk("partial", 0))
		fmt.Fprintln(w)
		fmt.Fprintln(w, `data: {"error":{"code":500,"message":"model overloaded","status":"UNAVAILABLE"}}`)
		fmt.Fprintln(w)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")

	var errorEvent string
	err := client.GenerateStream(context.Background(), "m", Payload{}, func(event StreamEvent) {
		if event.Type == "error" {
			errorEvent = event.Error
		}
	})
	if !errors.Is(err, ErrStreamError) {
		t.Fatalf("expected ErrStreamError, got %v", err)
	}
	if errorEvent != "model overloaded" {
		t.Errorf("error event = %q, want %q", errorEvent, "model overloaded")
	}
}

func TestGenerateStreamHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad-key")

	err := client.GenerateStream(context.Background(), "m", Payload{}, func(StreamEvent) {})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("error should carry the provider message, got %q", err.Error())
	}
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"Greeting Conversation"}],"role":"model"}}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")

	text, err := client.Generate(context.Background(), "gemini-1.5-flash", Payload{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "Greeting Conversation" {
		t.Errorf("text = %q, want %q", text, "Greeting Conversation")
	}
}

func TestGenerateNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")

	if _, err := client.Generate(context.Background(), "m", Payload{}); err == nil {
		t.Error("expected error for empty candidates")
	}
}
