package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistbackend/clients"
	"assistbackend/core"
)

func TestTelegramClient_SendMessage(t *testing.T) {
	t.Run("sends reply to the chat", func(t *testing.T) {
		var captured sendMessageRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
		}))
		defer server.Close()

		client := NewTelegramClient(server.URL, "123:abc")
		err := client.SendMessage(context.Background(), clients.OutboundMessage{
			ChatID:    "555",
			ReplyToID: "77",
			Text:      "Done, event created.",
		})
		require.NoError(t, err)
		assert.Equal(t, "555", captured.ChatID)
		assert.Equal(t, int64(77), captured.ReplyToMessageID)
		assert.Equal(t, "Done, event created.", captured.Text)
	})

	t.Run("api error becomes a provider error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
		}))
		defer server.Close()

		client := NewTelegramClient(server.URL, "123:abc")
		err := client.SendMessage(context.Background(), clients.OutboundMessage{ChatID: "1", Text: "hi"})

		var providerErr *core.ProviderError
		require.True(t, errors.As(err, &providerErr))
		assert.Equal(t, "Bad Request: chat not found", providerErr.Message)
	})

	t.Run("invalid reply id", func(t *testing.T) {
		client := NewTelegramClient("http://127.0.0.1:1", "123:abc")
		err := client.SendMessage(context.Background(), clients.OutboundMessage{ChatID: "1", ReplyToID: "abc", Text: "hi"})
		assert.Error(t, err)
	})
}
