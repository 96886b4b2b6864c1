package ai

import "context"

type Message struct {
	Role    string
	Content string
}

// Provider produces the assistant's reply to a conversation, oldest message first.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
