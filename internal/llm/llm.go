package llm

import (
	"context"

	"docsum-backend/internal/shared/apperr"
)

// Message is one chat turn sent to the provider.
type Message struct {
	Role    string
	Content string
}

// Client abstracts chat-completion providers.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Unconfigured is used when no provider credentials are set. Every call
// fails before any network I/O.
type Unconfigured struct {
	Reason string
}

// Complete returns a configuration error.
func (u Unconfigured) Complete(ctx context.Context, messages []Message) (string, error) {
	reason := u.Reason
	if reason == "" {
		reason = "LLM API key is not configured"
	}
	return "", apperr.Configuration("llm.complete", reason)
}
