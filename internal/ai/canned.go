package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const DefaultModel = "llama3.2"

// CannedProvider answers from a fixed set of keyword rules. It stands in
// for a real inference backend.
type CannedProvider struct {
	Model string
	Delay time.Duration
}

func NewCannedProvider(model string, delay time.Duration) *CannedProvider {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &CannedProvider{Model: model, Delay: delay}
}

func (p *CannedProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	var prompt string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			prompt = messages[i].Content
			break
		}
	}
	if prompt == "" {
		return "", fmt.Errorf("canned: no user message")
	}

	if p.Delay > 0 {
		t := time.NewTimer(p.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	return CannedReply(prompt), nil
}

// CannedReply maps a prompt to its placeholder answer.
func CannedReply(prompt string) string {
	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(lower, "hello") || strings.Contains(lower, "hi"):
		return "Hello! How can I help you today?"
	case strings.Contains(lower, "help"):
		return "I'm here to help! What would you like to know or discuss?"
	case strings.Contains(lower, "code") || strings.Contains(lower, "programming"):
		return "I can help you with programming questions! What language or problem are you working on?"
	case strings.Contains(lower, "project"):
		return "Great! I'd love to help you with your project. What are you working on?"
	default:
		return fmt.Sprintf("That's an interesting question about %q. I'm here to help you explore this topic further. What specific aspect would you like to discuss?", prompt)
	}
}
