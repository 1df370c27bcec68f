package slack

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"assistbackend/clients"
	"assistbackend/utils"
)

// SlackUser is the subset of a Slack profile used to render mentions
type SlackUser struct {
	ID          string
	Name        string
	RealName    string
	DisplayName string
}

// SlackUserResolver looks up Slack users by id
type SlackUserResolver interface {
	GetUserInfoContext(ctx context.Context, userID string) (*SlackUser, error)
}

// SlackClient implements clients.ChannelSender and SlackUserResolver using the slack-go/slack SDK
type SlackClient struct {
	*slack.Client
}

// NewSlackClient creates a new Slack client with the provided bot token
func NewSlackClient(botToken string) *SlackClient {
	return &SlackClient{
		Client: slack.New(botToken),
	}
}

// SendMessage posts a reply, threading it under ReplyToID when present
func (c *SlackClient) SendMessage(ctx context.Context, msg clients.OutboundMessage) error {
	options := []slack.MsgOption{
		slack.MsgOptionText(utils.ConvertMarkdownToSlack(msg.Text), false),
	}
	if msg.ReplyToID != "" {
		options = append(options, slack.MsgOptionTS(msg.ReplyToID))
	}

	if _, _, err := c.Client.PostMessageContext(ctx, msg.ChatID, options...); err != nil {
		return fmt.Errorf("failed to post slack message to %s: %w", msg.ChatID, err)
	}
	return nil
}

// GetUserInfoContext gets information about a Slack user
func (c *SlackClient) GetUserInfoContext(ctx context.Context, userID string) (*SlackUser, error) {
	user, err := c.Client.GetUserInfoContext(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &SlackUser{
		ID:          user.ID,
		Name:        user.Name,
		RealName:    user.Profile.RealName,
		DisplayName: user.Profile.DisplayName,
	}, nil
}
