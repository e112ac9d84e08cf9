// Package ai provides completion-provider clients and the two-tier
// completion gateway.
package ai

import "context"

// Message roles understood by every provider.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is a provider-neutral chat entry.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions are the per-call generation settings.
type ChatOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Provider is a chat-completion backend.
type Provider interface {
	// Chat sends the message sequence and returns the generated reply text.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// ListModels returns the model IDs the provider currently offers.
	ListModels(ctx context.Context) ([]string, error)

	// Name identifies the provider in logs and error messages.
	Name() string
}
