package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"assistbackend/clients"
	"assistbackend/core"
	"assistbackend/utils"
)

// WhatsApp Cloud API text bodies are capped at 4096 characters
const maxMessageLength = 4096

// WhatsAppClient implements clients.ChannelSender over the WhatsApp Cloud (Graph) API
type WhatsAppClient struct {
	httpClient    *http.Client
	baseURL       string
	accessToken   string
	phoneNumberID string
}

type textBody struct {
	Body string `json:"body"`
}

type messageContext struct {
	MessageID string `json:"message_id"`
}

type sendMessageRequest struct {
	MessagingProduct string          `json:"messaging_product"`
	RecipientType    string          `json:"recipient_type"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Text             textBody        `json:"text"`
	Context          *messageContext `json:"context,omitempty"`
}

type graphErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// NewWhatsAppClient creates a new Graph API client for one business phone number
func NewWhatsAppClient(baseURL, accessToken, phoneNumberID string) *WhatsAppClient {
	return &WhatsAppClient{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		baseURL:       baseURL,
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
	}
}

// SendMessage sends a text reply to a WhatsApp user
func (c *WhatsAppClient) SendMessage(ctx context.Context, msg clients.OutboundMessage) error {
	reqBody := sendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               msg.ChatID,
		Type:             "text",
		Text:             textBody{Body: utils.TruncateText(msg.Text, maxMessageLength)},
	}
	if msg.ReplyToID != "" {
		reqBody.Context = &messageContext{MessageID: msg.ReplyToID}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		"POST",
		fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID),
		bytes.NewBuffer(jsonBody),
	)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &core.TransportError{Op: "whatsapp send message", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		var graphErr graphErrorResponse
		message := string(body)
		if err := json.Unmarshal(body, &graphErr); err == nil && graphErr.Error.Message != "" {
			message = graphErr.Error.Message
		}
		return &core.ProviderError{StatusCode: resp.StatusCode, Message: message}
	}

	return nil
}
