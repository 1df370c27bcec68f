package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"assistbackend/clients"
	"assistbackend/core"
	"assistbackend/utils"
)

// Telegram rejects messages longer than this many characters
const maxMessageLength = 4096

// TelegramClient implements clients.ChannelSender over the Bot API
type TelegramClient struct {
	httpClient *http.Client
	baseURL    string
	botToken   string
}

type sendMessageRequest struct {
	ChatID           string `json:"chat_id"`
	Text             string `json:"text"`
	ReplyToMessageID int64  `json:"reply_to_message_id,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// NewTelegramClient creates a new Bot API client
func NewTelegramClient(baseURL, botToken string) *TelegramClient {
	return &TelegramClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		botToken:   botToken,
	}
}

// SendMessage sends a text reply to a chat
func (c *TelegramClient) SendMessage(ctx context.Context, msg clients.OutboundMessage) error {
	reqBody := sendMessageRequest{
		ChatID: msg.ChatID,
		Text:   utils.TruncateText(msg.Text, maxMessageLength),
	}
	if msg.ReplyToID != "" {
		replyTo, err := strconv.ParseInt(msg.ReplyToID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid telegram reply message id %q: %w", msg.ReplyToID, err)
		}
		reqBody.ReplyToMessageID = replyTo
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		"POST",
		fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken),
		bytes.NewBuffer(jsonBody),
	)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The URL carries the bot token, so the raw error is not surfaced
		return &core.TransportError{Op: "telegram sendMessage", Err: fmt.Errorf("request failed")}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return fmt.Errorf("failed to decode response: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || !apiResp.OK {
		return &core.ProviderError{StatusCode: resp.StatusCode, Message: apiResp.Description}
	}

	return nil
}
