package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"assistbackend/core"
	"assistbackend/models"
)

const (
	maxReplyTokens = 1024
	systemPrompt   = "You are a scheduling assistant reached over a messaging channel. " +
		"Answer briefly and in plain text. When the user asks about their calendar, " +
		"describe what you would look up or change."
)

// AnthropicChatClient implements the clients.ChatClient interface with the Messages API
type AnthropicChatClient struct {
	client anthropic.Client
	model  string
}

// NewAnthropicChatClient creates a chat client; extra request options are used by tests to point at a fake server
func NewAnthropicChatClient(apiKey, model string, opts ...option.RequestOption) *AnthropicChatClient {
	requestOptions := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(30 * time.Second),
	}, opts...)

	return &AnthropicChatClient{
		client: anthropic.NewClient(requestOptions...),
		model:  model,
	}
}

// Chat sends the inbound text and returns the assistant's reply.
// The thread id is kept when given, otherwise a new one is minted for the conversation.
func (c *AnthropicChatClient) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatReply, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("chat request text cannot be empty")
	}

	system := systemPrompt
	if req.Sender != "" {
		system = fmt.Sprintf("%s The user's name is %s.", systemPrompt, req.Sender)
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxReplyTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get chat reply: %w", err)
	}

	var reply strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = core.NewID("thr")
	}

	return &models.ChatReply{
		Text:     strings.TrimSpace(reply.String()),
		ThreadID: threadID,
	}, nil
}
