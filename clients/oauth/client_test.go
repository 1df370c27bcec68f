package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistbackend/clients"
	"assistbackend/core"
)

func newTokenServer(t *testing.T, status int, body string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func refreshRequest(tokenURL string) clients.OAuthRefreshRequest {
	return clients.OAuthRefreshRequest{
		TokenURL:     tokenURL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "old-refresh",
	}
}

func TestOAuth2Client_RefreshAccessToken(t *testing.T) {
	t.Run("successful refresh without rotation", func(t *testing.T) {
		server := newTokenServer(t, http.StatusOK,
			`{"access_token":"new-access","expires_in":3600,"token_type":"Bearer"}`)
		client := NewOAuth2Client(5 * time.Second)

		tokens, err := client.RefreshAccessToken(context.Background(), refreshRequest(server.URL))
		require.NoError(t, err)
		assert.Equal(t, "new-access", tokens.AccessToken)
		assert.Empty(t, tokens.RefreshToken)
		require.NotNil(t, tokens.ExpiresAt)
		assert.True(t, tokens.ExpiresAt.After(time.Now().Add(50*time.Minute)))
	})

	t.Run("successful refresh with rotation", func(t *testing.T) {
		server := newTokenServer(t, http.StatusOK,
			`{"access_token":"new-access","refresh_token":"new-refresh","token_type":"Bearer"}`)
		client := NewOAuth2Client(5 * time.Second)

		tokens, err := client.RefreshAccessToken(context.Background(), refreshRequest(server.URL))
		require.NoError(t, err)
		assert.Equal(t, "new-refresh", tokens.RefreshToken)
		assert.Nil(t, tokens.ExpiresAt)
	})

	t.Run("revoked grant is rejected", func(t *testing.T) {
		server := newTokenServer(t, http.StatusBadRequest,
			`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`)
		client := NewOAuth2Client(5 * time.Second)

		_, err := client.RefreshAccessToken(context.Background(), refreshRequest(server.URL))
		require.Error(t, err)
		assert.True(t, errors.Is(err, clients.ErrRefreshRejected))
		assert.Contains(t, err.Error(), "invalid_grant")
	})

	t.Run("server error is a provider error", func(t *testing.T) {
		server := newTokenServer(t, http.StatusServiceUnavailable, `{"error":"backend_error"}`)
		client := NewOAuth2Client(5 * time.Second)

		_, err := client.RefreshAccessToken(context.Background(), refreshRequest(server.URL))
		require.Error(t, err)
		var providerErr *core.ProviderError
		require.True(t, errors.As(err, &providerErr))
		assert.Equal(t, http.StatusServiceUnavailable, providerErr.StatusCode)
	})

	t.Run("missing refresh token", func(t *testing.T) {
		client := NewOAuth2Client(5 * time.Second)
		req := refreshRequest("http://127.0.0.1:1")
		req.RefreshToken = ""

		_, err := client.RefreshAccessToken(context.Background(), req)
		assert.True(t, errors.Is(err, clients.ErrRefreshRejected))
	})

	t.Run("unreachable endpoint is a transport error", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()
		client := NewOAuth2Client(time.Second)

		_, err := client.RefreshAccessToken(context.Background(), refreshRequest(url))
		require.Error(t, err)
		var transportErr *core.TransportError
		assert.True(t, errors.As(err, &transportErr))
	})
}
