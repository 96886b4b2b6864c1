package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCannedReply(t *testing.T) {
	tests := []struct {
		prompt string
		want   string
	}{
		{"Hello there", "Hello! How can I help you today?"},
		{"I need HELP", "I'm here to help! What would you like to know or discuss?"},
		{"review my code", "I can help you with programming questions! What language or problem are you working on?"},
		{"new project idea", "Great! I'd love to help you with your project. What are you working on?"},
		{"weather", `That's an interesting question about "weather". I'm here to help you explore this topic further. What specific aspect would you like to discuss?`},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			assert.Equal(t, tt.want, CannedReply(tt.prompt))
		})
	}
}

func TestCannedProvider_UsesLastUserMessage(t *testing.T) {
	p := NewCannedProvider("", 0)
	assert.Equal(t, DefaultModel, p.Model)

	reply, err := p.Chat(context.Background(), []Message{
		{Role: "user", Content: "project"},
		{Role: "assistant", Content: "ok"},
		{Role: "user", Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help you today?", reply)
}

func TestCannedProvider_NoUserMessage(t *testing.T) {
	_, err := NewCannedProvider("m", 0).Chat(context.Background(), []Message{{Role: "system", Content: "x"}})
	assert.Error(t, err)
}

func TestCannedProvider_DelayHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCannedProvider("m", time.Hour).Chat(ctx, []Message{{Role: "user", Content: "hi"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistry_Get(t *testing.T) {
	reg := NewDefaultRegistry(0)
	assert.Equal(t, []string{"canned", "mock"}, reg.Names())

	p, err := reg.Get(context.Background(), " Canned ", "x")
	require.NoError(t, err)
	assert.IsType(t, &CannedProvider{}, p)

	_, err = reg.Get(context.Background(), "nope", "")
	assert.Error(t, err)
}
