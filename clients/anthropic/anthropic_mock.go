package anthropic

import (
	"context"

	"github.com/stretchr/testify/mock"

	"assistbackend/models"
)

// MockChatClient is a mock implementation of clients.ChatClient
type MockChatClient struct {
	mock.Mock
}

// NewMockChatClient creates a new mock client for testing
func NewMockChatClient() *MockChatClient {
	return &MockChatClient{}
}

// Chat mocks the chat core call
func (m *MockChatClient) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatReply, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatReply), args.Error(1)
}

// WithChatResponse configures mock to answer every Chat call with reply
func (m *MockChatClient) WithChatResponse(reply *models.ChatReply) *MockChatClient {
	m.On("Chat", mock.Anything, mock.Anything).Return(reply, nil)
	return m
}
