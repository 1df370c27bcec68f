package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"assistbackend/clients"
	"assistbackend/core"
)

// OAuth2Client implements the clients.OAuthClient interface on top of golang.org/x/oauth2
type OAuth2Client struct {
	httpClient *http.Client
}

// NewOAuth2Client creates a token endpoint client whose requests fail after timeout
func NewOAuth2Client(timeout time.Duration) *OAuth2Client {
	return &OAuth2Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// RefreshAccessToken exchanges a refresh token for a new access token.
// A 4xx answer from the token endpoint is reported as clients.ErrRefreshRejected.
func (c *OAuth2Client) RefreshAccessToken(
	ctx context.Context,
	req clients.OAuthRefreshRequest,
) (*clients.OAuthTokens, error) {
	if req.RefreshToken == "" {
		return nil, fmt.Errorf("missing refresh token: %w", clients.ErrRefreshRejected)
	}

	config := &oauth2.Config{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  req.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := config.TokenSource(ctx, &oauth2.Token{RefreshToken: req.RefreshToken}).Token()
	if err != nil {
		return nil, classifyRefreshError(err)
	}
	if token.AccessToken == "" {
		return nil, &core.ProviderError{StatusCode: http.StatusOK, Message: "token response has no access_token"}
	}

	tokens := &clients.OAuthTokens{
		AccessToken: token.AccessToken,
	}
	if token.RefreshToken != req.RefreshToken {
		tokens.RefreshToken = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		expiresAt := token.Expiry
		tokens.ExpiresAt = &expiresAt
	}
	return tokens, nil
}

func classifyRefreshError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		message := retrieveErr.ErrorCode
		if retrieveErr.ErrorDescription != "" {
			message = fmt.Sprintf("%s: %s", retrieveErr.ErrorCode, retrieveErr.ErrorDescription)
		}
		if message == "" {
			message = string(retrieveErr.Body)
		}

		if status >= 400 && status < 500 {
			return fmt.Errorf("%w: %s", clients.ErrRefreshRejected, message)
		}
		return &core.ProviderError{StatusCode: status, Message: message}
	}
	return &core.TransportError{Op: "token refresh", Err: err}
}
