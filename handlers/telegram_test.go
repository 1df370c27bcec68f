package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"assistbackend/models"
	"assistbackend/usecases/channels"
)

const testTelegramSecret = "telegram-secret"

func serveTelegram(handler *TelegramWebhookHandler, secret, body string) *httptest.ResponseRecorder {
	router := mux.NewRouter()
	handler.SetupEndpoints(router)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(telegramSecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const telegramTextUpdate = `{
	"update_id": 42,
	"message": {
		"message_id": 7,
		"date": 1741597200,
		"text": "what's on tomorrow?",
		"chat": {"id": -1001},
		"from": {"id": 5, "is_bot": false, "first_name": "Ada", "last_name": "Lovelace"}
	}
}`

func TestTelegramWebhookHandler_HandleUpdate(t *testing.T) {
	t.Run("text message is forwarded as a monotonic delivery", func(t *testing.T) {
		useCase := &channels.MockChannelsUseCase{}
		expected := &models.InboundMessage{
			Provider:   models.ProviderTelegram,
			DedupKind:  models.DedupKindMonotonic,
			DedupID:    "42",
			ChatID:     "-1001",
			ReplyToID:  "7",
			SenderID:   "5",
			SenderName: "Ada Lovelace",
			Text:       "what's on tomorrow?",
			ReceivedAt: time.Unix(1741597200, 0).UTC(),
		}
		useCase.On("ProcessInboundMessage", mock.Anything, expected).
			Return(&models.InboundResult{Outcome: models.ReservationAccepted, Replied: true}, nil)

		rec := serveTelegram(NewTelegramWebhookHandler(testTelegramSecret, useCase), testTelegramSecret, telegramTextUpdate)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"accepted"}`, rec.Body.String())
		useCase.AssertExpectations(t)
	})

	t.Run("redelivery answers 200 with a duplicate marker", func(t *testing.T) {
		useCase := (&channels.MockChannelsUseCase{}).WithOutcome(models.ReservationDuplicate)

		rec := serveTelegram(NewTelegramWebhookHandler(testTelegramSecret, useCase), testTelegramSecret, telegramTextUpdate)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"duplicate","duplicates":1}`, rec.Body.String())
	})

	t.Run("message for a disconnected channel is ignored", func(t *testing.T) {
		useCase := (&channels.MockChannelsUseCase{}).WithOutcome(models.ReservationSkipped)

		rec := serveTelegram(NewTelegramWebhookHandler(testTelegramSecret, useCase), testTelegramSecret, telegramTextUpdate)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ignored"}`, rec.Body.String())
	})

	t.Run("reservation failure answers 500 so Telegram retries", func(t *testing.T) {
		useCase := &channels.MockChannelsUseCase{}
		useCase.On("ProcessInboundMessage", mock.Anything, mock.Anything).
			Return(nil, errors.New("conflict budget exhausted"))

		rec := serveTelegram(NewTelegramWebhookHandler(testTelegramSecret, useCase), testTelegramSecret, telegramTextUpdate)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("wrong or missing secret token is rejected", func(t *testing.T) {
		useCase := &channels.MockChannelsUseCase{}
		handler := NewTelegramWebhookHandler(testTelegramSecret, useCase)

		assert.Equal(t, http.StatusUnauthorized, serveTelegram(handler, "nope", telegramTextUpdate).Code)
		assert.Equal(t, http.StatusUnauthorized, serveTelegram(handler, "", telegramTextUpdate).Code)
		useCase.AssertNotCalled(t, "ProcessInboundMessage", mock.Anything, mock.Anything)
	})

	t.Run("updates without a user message are ignored", func(t *testing.T) {
		useCase := &channels.MockChannelsUseCase{}
		handler := NewTelegramWebhookHandler(testTelegramSecret, useCase)

		rec := serveTelegram(handler, testTelegramSecret, `{"update_id": 43, "edited_message": {"message_id": 7}}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ignored"}`, rec.Body.String())

		rec = serveTelegram(handler, testTelegramSecret,
			`{"update_id": 44, "message": {"message_id": 8, "text": "hi", "chat": {"id": 1}, "from": {"id": 9, "is_bot": true}}}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		useCase.AssertNotCalled(t, "ProcessInboundMessage", mock.Anything, mock.Anything)
	})

	t.Run("oversized body is rejected unread", func(t *testing.T) {
		useCase := &channels.MockChannelsUseCase{}
		body := telegramTextUpdate + strings.Repeat(" ", maxWebhookBodyBytes)

		rec := serveTelegram(NewTelegramWebhookHandler(testTelegramSecret, useCase), testTelegramSecret, body)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		useCase.AssertNotCalled(t, "ProcessInboundMessage", mock.Anything, mock.Anything)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		useCase := &channels.MockChannelsUseCase{}
		rec := serveTelegram(NewTelegramWebhookHandler(testTelegramSecret, useCase), testTelegramSecret, `{"update_id":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTelegramSenderName(t *testing.T) {
	assert.Equal(t, "", telegramSenderName(nil))
	assert.Equal(t, "Ada", telegramSenderName(&telegramUser{FirstName: "Ada"}))
	assert.Equal(t, "ada_l", telegramSenderName(&telegramUser{Username: "ada_l"}))
}
