// Package llm wraps the chat-completion providers used to draft and revise
// scripts.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnavailable is returned when no provider is configured.
var ErrUnavailable = errors.New("llm: provider unavailable")

// Role of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role
	Content string
}

// Request is a single completion call. Model is a provider model id or one
// of the provider's aliases.
type Request struct {
	Model       string
	Temperature float64
	MaxTokens   int
	System      string
	Messages    []Message
}

// Response is the text returned by a provider.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Provider completes chat requests.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}

// Tiers names the premium and base models of a provider.
type Tiers struct {
	Premium string
	Base    string
}

// DefaultTiers returns the premium and base aliases for a provider name.
func DefaultTiers(provider string) Tiers {
	switch provider {
	case "bedrock":
		return Tiers{Premium: "sonnet", Base: "nova-lite"}
	case "gemini":
		return Tiers{Premium: "gemini-pro", Base: "gemini-flash"}
	default:
		return Tiers{Premium: "sonnet", Base: "haiku"}
	}
}

// Unconfigured is a Provider that always fails with ErrUnavailable.
type Unconfigured struct{}

func (Unconfigured) Name() string { return "none" }

func (Unconfigured) Complete(context.Context, Request) (Response, error) {
	return Response{}, ErrUnavailable
}

// DecodeJSON extracts the JSON object in a model response and unmarshals it
// into v. Markdown fences and surrounding prose are ignored.
func DecodeJSON(text string, v any) error {
	text = strings.TrimSpace(extractJSON(stripMarkdownFences(text)))
	if text == "" {
		return fmt.Errorf("no JSON content found in response")
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("invalid JSON: %w (first 300 chars: %s)", err, truncate(text, 300))
	}
	return nil
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\n?(.*?)\n?```")

func stripMarkdownFences(text string) string {
	if m := fenceRe.FindStringSubmatch(text); len(m) > 1 {
		return m[1]
	}
	return text
}

func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
