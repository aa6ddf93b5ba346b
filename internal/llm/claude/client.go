// Package claude provides the Claude-backed text provider for the
// analyst assist feature.
package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const responseTokens = 1024

// Client sends single-shot drafting requests to the Claude API.
type Client struct {
	client anthropic.Client
	model  string
}

// New creates a new Claude client with the given API key and model name.
func New(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Draft sends one system+user exchange and returns the concatenated
// text content of the response. There is no tool use and no follow-up
// turn; the assist path is deliberately single-shot.
func (c *Client) Draft(ctx context.Context, system, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: responseTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude: %w", err)
	}
	return textContent(msg)
}

// textContent concatenates the text blocks of a response, skipping any
// non-text content.
func textContent(msg *anthropic.Message) (string, error) {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("claude: response contained no text content")
	}
	return b.String(), nil
}
