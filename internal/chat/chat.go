// Package chat forwards a conversation to an OpenAI-compatible
// /chat/completions endpoint on behalf of the program's help widget.
//
// The assistant is outside the registration pipeline: the handler turns
// any failure here into a fixed apology, and nothing in the form depends
// on it.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Roles accepted in a conversation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Fallback is what the widget shows when the assistant is unreachable.
const Fallback = "I apologize, but I'm having trouble connecting right now. Please try again later or contact us directly for assistance."

// SystemPrompt is sent ahead of every conversation.
const SystemPrompt = `You are تلقائي (Telqai Assistant), an AI helper for the Telqai AI automation program.

RESPONSE STYLE:
- Give clean, direct answers without <think> tags or internal thoughts
- Use plain text only, no bold, italics, or formatting
- Use minimal emojis (maximum 1 per response)
- Be conversational but professional
- Keep responses concise and helpful

LANGUAGE RULE:
- Arabic input → Respond completely in Arabic
- English input → Respond completely in English
- Mixed → Use dominant language

PROGRAM INFO:
Telqai - Selective AI automation program for Arab high school students
4 weeks, 8 sessions, 2 hours each, taught in Arabic

Answer questions directly and helpfully about the program.`

// Message is one turn of the conversation.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// Config holds the endpoint settings.
type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

type completionRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ErrNoCompletion is returned when the upstream answers without a choice.
var ErrNoCompletion = errors.New("chat: no completion returned")

// Client talks to the completions endpoint.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

// New returns a Client for cfg. A nil logger uses slog.Default().
func New(cfg Config, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

// Reply sends SystemPrompt followed by history and returns the
// assistant's answer with reasoning blocks removed.
func (c *Client) Reply(ctx context.Context, history []Message) (string, error) {
	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, Message{Role: RoleSystem, Content: SystemPrompt})
	messages = append(messages, history...)

	body, err := json.Marshal(completionRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("chat.Reply: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("chat.Reply: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat.Reply: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("chat.Reply: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat.Reply: request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out completionResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("chat.Reply: parse response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("chat.Reply: API error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", ErrNoCompletion
	}

	answer := Clean(out.Choices[0].Message.Content)
	c.log.Debug("chat reply",
		slog.Duration("took", time.Since(start)),
		slog.Int("length", len(answer)))
	return answer, nil
}

var (
	thinkBlock = regexp.MustCompile(`(?is)<think>.*?</think>`)
	bold       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italic     = regexp.MustCompile(`\*(.*?)\*`)
	heading    = regexp.MustCompile(`#{1,6}\s`)
	inlineCode = regexp.MustCompile("`(.*?)`")
	bullet     = regexp.MustCompile(`(?m)^\s*[-*+]\s`)
	numbered   = regexp.MustCompile(`(?m)^\s*\d+\.\s`)
)

// Clean strips reasoning blocks and markdown so the widget can show the
// answer as plain text.
func Clean(text string) string {
	text = thinkBlock.ReplaceAllString(text, "")
	text = bold.ReplaceAllString(text, "$1")
	text = italic.ReplaceAllString(text, "$1")
	text = heading.ReplaceAllString(text, "")
	text = inlineCode.ReplaceAllString(text, "$1")
	text = bullet.ReplaceAllString(text, "")
	text = numbered.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
