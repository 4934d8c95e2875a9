// Package gemini implements the completion provider boundary: the request
// payload builder, a streaming SSE client for the generative language API,
// and local token estimation.
package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/youruser/gemchat/internal/logging"
)

var (
	ErrRequestFailed = errors.New("API request failed")
	ErrStreamError   = errors.New("stream error")
	log              = logging.Get()
)

const defaultRequestTimeout = 30 * time.Second

// Client handles communication with the generative language API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new provider client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// StreamCallback is called for each event in the stream.
type StreamCallback func(event StreamEvent)

// GenerateStream sends a streaming generateContent request. The callback
// receives one "content" event per chunk, in arrival order, then a single
// "done" event when the stream ends cleanly. Provider-reported errors are
// surfaced both as an "error" event and as the returned error.
func (c *Client) GenerateStream(ctx context.Context, model string, payload Payload, callback StreamCallback) error {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", c.baseURL, model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debug("HTTP POST %s/models/%s:streamGenerateContent (contents: %d)",
		c.baseURL, model, len(payload.Contents))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request failed: %v", err)
		return err
	}
	defer resp.Body.Close()

	log.Debug("HTTP response status: %d", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Error("API error %d: %s", resp.StatusCode, string(body))
		return fmt.Errorf("%w: %d - %s", ErrRequestFailed, resp.StatusCode, apiErrorMessage(body))
	}

	return c.processStream(ctx, resp.Body, callback)
}

// processStream reads SSE events and calls the callback for each.
// The API signals completion by closing the stream; there is no end marker.
func (c *Client) processStream(ctx context.Context, reader io.Reader, callback StreamCallback) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lastTokenCount := 0
	log.Debug("Starting SSE stream processing")

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()

		// SSE format: "data: {json}"
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")

		var resp GenerateResponse
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			continue // Skip malformed chunks
		}

		if resp.Error != nil {
			callback(StreamEvent{Type: "error", Error: resp.Error.Message})
			return fmt.Errorf("%w: %s", ErrStreamError, resp.Error.Message)
		}

		if resp.UsageMetadata != nil {
			lastTokenCount = resp.UsageMetadata.TotalTokenCount
			log.Debug("Captured usage: prompt=%d, candidates=%d, total=%d",
				resp.UsageMetadata.PromptTokenCount,
				resp.UsageMetadata.CandidatesTokenCount,
				resp.UsageMetadata.TotalTokenCount)
		}

		text := resp.Text()
		if text == "" {
			continue
		}

		log.Stream("content", text)
		callback(StreamEvent{
			Type:       "content",
			Text:       text,
			TokenCount: lastTokenCount,
		})
	}

	if err := scanner.Err(); err != nil {
		// When the context is canceled the HTTP body closes and the scanner
		// sees an IO error. Return the context error so callers can tell the
		// cancellation apart from a transport failure.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("SSE scanner error: %v", err)
		return fmt.Errorf("%w: %v", ErrStreamError, err)
	}

	callback(StreamEvent{Type: "done", TokenCount: lastTokenCount})
	return nil
}

// Generate sends a non-streaming generateContent request and returns the
// response text. Used for chat naming.
func (c *Client) Generate(ctx context.Context, model string, payload Payload) (string, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debug("HTTP POST %s/models/%s:generateContent", c.baseURL, model)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request failed: %v", err)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Error("API error %d: %s", resp.StatusCode, string(body))
		return "", fmt.Errorf("%w: %d - %s", ErrRequestFailed, resp.StatusCode, apiErrorMessage(body))
	}

	var genResp GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", err
	}

	if genResp.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrRequestFailed, genResp.Error.Message)
	}
	if len(genResp.Candidates) == 0 {
		return "", errors.New("no candidates in response")
	}

	return genResp.Text(), nil
}

// apiErrorMessage extracts the error message from an error response body,
// falling back to the raw body.
func apiErrorMessage(body []byte) string {
	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return string(body)
}
