package clients

import (
	"context"
	"errors"
	"time"

	"assistbackend/models"
)

// ErrRefreshRejected is returned when the token endpoint refuses a refresh token (revoked consent, invalid grant)
var ErrRefreshRejected = errors.New("refresh token rejected by provider")

// OAuthRefreshRequest holds everything needed for a refresh_token grant
type OAuthRefreshRequest struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// OAuthTokens is the result of a refresh; RefreshToken is empty when the provider did not rotate it
type OAuthTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// OAuthClient defines the interface for OAuth token endpoint operations
type OAuthClient interface {
	RefreshAccessToken(ctx context.Context, req OAuthRefreshRequest) (*OAuthTokens, error)
}

// ChatClient is the boundary to the chat core that turns inbound text into a reply
type ChatClient interface {
	Chat(ctx context.Context, req models.ChatRequest) (*models.ChatReply, error)
}

// OutboundMessage is a reply sent back over a channel.
// ReplyToID is the channel-native message (or Slack thread) the reply is attached to.
type OutboundMessage struct {
	ChatID    string
	ReplyToID string
	Text      string
}

// ChannelSender delivers replies over one messaging channel
type ChannelSender interface {
	SendMessage(ctx context.Context, msg OutboundMessage) error
}
