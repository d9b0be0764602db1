// Text producer backed by the Groq OpenAI-compatible chat completion API.
package producer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultGroqURL   = "https://api.groq.com/openai/v1/chat/completions"
	defaultGroqModel = "llama-3.1-8b-instant"

	// textSystemPrompt instructs the model to emit clean plain text; CleanText
	// still runs over the reply because models do not reliably comply.
	textSystemPrompt = "You are an expert Game Writer. " +
		"Output CLEAN plain text only. No markdown formatting (*, #). " +
		"Structure: 1. Visual Description. 2. Lore/Backstory. 3. Stats/Abilities. " +
		"Keep it concise and punchy."
)

// TextProducer generates lore text through a chat-completion endpoint.
// The zero value is not usable; construct with NewTextProducer.
type TextProducer struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewTextProducer builds a TextProducer with its own bounded-timeout HTTP
// client. An empty baseURL selects the Groq production endpoint.
func NewTextProducer(apiKey, baseURL string, timeout time.Duration) *TextProducer {
	if baseURL == "" {
		baseURL = defaultGroqURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TextProducer{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   defaultGroqModel,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name implements Producer.
func (p *TextProducer) Name() string { return "text" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Produce sends a single chat completion request and returns the cleaned
// reply as a TextOutput. Any transport error, non-200 status, or empty reply
// becomes a *Failure.
func (p *TextProducer) Produce(ctx context.Context, req Request) (Output, error) {
	userPrompt := fmt.Sprintf("Write about a %s in a %s setting. Details: %s",
		req.AssetType, req.Genre, req.Details)

	body, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: textSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return nil, failed(p.Name(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, failed(p.Name(), err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, failed(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little of the body for the failure reason without trusting it.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, failf(p.Name(), "unexpected status %d: %s", resp.StatusCode, snippet)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, failed(p.Name(), err)
	}
	if len(out.Choices) == 0 {
		return nil, failf(p.Name(), "completion returned no choices")
	}

	content := CleanText(out.Choices[0].Message.Content)
	if content == "" {
		return nil, failf(p.Name(), "completion returned empty content")
	}
	return &TextOutput{Content: content}, nil
}
