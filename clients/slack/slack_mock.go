package slack

import (
	"context"
	"fmt"

	"assistbackend/clients"
)

// MockSlackClient implements the Slack client surface for testing
type MockSlackClient struct {
	MockSendMessage        func(ctx context.Context, msg clients.OutboundMessage) error
	MockGetUserInfoContext func(ctx context.Context, userID string) (*SlackUser, error)

	SentMessages []clients.OutboundMessage
}

// NewMockSlackClient creates a new mock Slack client
func NewMockSlackClient() *MockSlackClient {
	return &MockSlackClient{}
}

// SendMessage records the message and delegates to MockSendMessage when set
func (m *MockSlackClient) SendMessage(ctx context.Context, msg clients.OutboundMessage) error {
	m.SentMessages = append(m.SentMessages, msg)
	if m.MockSendMessage != nil {
		return m.MockSendMessage(ctx, msg)
	}
	return nil
}

// GetUserInfoContext implements SlackUserResolver for testing
func (m *MockSlackClient) GetUserInfoContext(ctx context.Context, userID string) (*SlackUser, error) {
	if m.MockGetUserInfoContext != nil {
		return m.MockGetUserInfoContext(ctx, userID)
	}
	return nil, fmt.Errorf("GetUserInfoContext not mocked")
}
