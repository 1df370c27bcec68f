package oauth

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"assistbackend/clients"
)

// MockOAuthClient is a mock implementation of clients.OAuthClient
type MockOAuthClient struct {
	mock.Mock
}

// NewMockOAuthClient creates a new mock client for testing
func NewMockOAuthClient() *MockOAuthClient {
	return &MockOAuthClient{}
}

// RefreshAccessToken mocks the token refresh functionality
func (m *MockOAuthClient) RefreshAccessToken(
	ctx context.Context,
	req clients.OAuthRefreshRequest,
) (*clients.OAuthTokens, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.OAuthTokens), args.Error(1)
}

// WithRefreshResponse configures mock to return specific tokens on RefreshAccessToken
func (m *MockOAuthClient) WithRefreshResponse(tokens *clients.OAuthTokens) *MockOAuthClient {
	m.On("RefreshAccessToken", mock.Anything, mock.Anything).Return(tokens, nil)
	return m
}

// WithRefreshError configures mock to fail RefreshAccessToken with err
func (m *MockOAuthClient) WithRefreshError(err error) *MockOAuthClient {
	m.On("RefreshAccessToken", mock.Anything, mock.Anything).Return(nil, err)
	return m
}

// CreateRefreshedTestTokens creates sample OAuthTokens for refresh scenarios
func CreateRefreshedTestTokens() *clients.OAuthTokens {
	expiresAt := time.Now().Add(time.Hour)
	return &clients.OAuthTokens{
		AccessToken:  "refreshed-access-token-789",
		RefreshToken: "refreshed-refresh-token-abc",
		ExpiresAt:    &expiresAt,
	}
}
