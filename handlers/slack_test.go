package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	slackclient "assistbackend/clients/slack"
	"assistbackend/models"
	"assistbackend/usecases/channels"
)

const (
	testSlackSigningSecret = "test_signing_secret"
	testSlackBotUserID     = "UBOT"
)

func newSlackTestRouter(useCase *channels.MockChannelsUseCase) *mux.Router {
	resolver := slackclient.NewMockSlackClient()
	resolver.MockGetUserInfoContext = func(ctx context.Context, userID string) (*slackclient.SlackUser, error) {
		switch userID {
		case "U123":
			return &slackclient.SlackUser{ID: "U123", Name: "ada", DisplayName: "Ada"}, nil
		case "U456":
			return &slackclient.SlackUser{ID: "U456", RealName: "Grace Hopper"}, nil
		}
		return nil, fmt.Errorf("user not found")
	}

	router := mux.NewRouter()
	NewSlackEventsHandler(testSlackSigningSecret, testSlackBotUserID, resolver, useCase).SetupEndpoints(router)
	return router
}

func postSlack(router *mux.Router, body string, timestamp int64, secret string) *httptest.ResponseRecorder {
	baseString := fmt.Sprintf("v0:%d:%s", timestamp, body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(baseString))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/slack", strings.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(timestamp, 10))
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func appMentionCallback(eventID, text, threadTS string) string {
	thread := ""
	if threadTS != "" {
		thread = fmt.Sprintf(`,"thread_ts":"%s"`, threadTS)
	}
	return fmt.Sprintf(`{
		"type": "event_callback",
		"team_id": "T1",
		"event_id": "%s",
		"event_time": 1741597200,
		"event": {
			"type": "app_mention",
			"user": "U123",
			"text": "%s",
			"ts": "1741597200.000100",
			"channel": "C42"%s
		}
	}`, eventID, text, thread)
}

func TestSlackEventsHandler_HandleSlackEvent(t *testing.T) {
	now := time.Now().Unix()

	t.Run("url verification echoes the challenge", func(t *testing.T) {
		router := newSlackTestRouter(&channels.MockChannelsUseCase{})
		body := `{"type":"url_verification","token":"x","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P"}`

		rec := postSlack(router, body, now, testSlackSigningSecret)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P", rec.Body.String())
	})

	t.Run("app mention is forwarded with the event id and thread", func(t *testing.T) {
		useCase := &channels.MockChannelsUseCase{}
		var seen *models.InboundMessage
		useCase.On("ProcessInboundMessage", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { seen = args.Get(1).(*models.InboundMessage) }).
			Return(&models.InboundResult{Outcome: models.ReservationAccepted, Replied: true}, nil)

		body := appMentionCallback("Ev01", "<@UBOT> move my sync with <@U456> to 3pm", "1741590000.000001")
		rec := postSlack(newSlackTestRouter(useCase), body, now, testSlackSigningSecret)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"accepted"}`, rec.Body.String())
		require.NotNil(t, seen)
		assert.Equal(t, models.ProviderSlack, seen.Provider)
		assert.Equal(t, models.DedupKindIDSet, seen.DedupKind)
		assert.Equal(t, "Ev01", seen.DedupID)
		assert.Equal(t, "C42", seen.ChatID)
		assert.Equal(t, "1741590000.000001", seen.ReplyToID)
		assert.Equal(t, "U123", seen.SenderID)
		assert.Equal(t, "Ada", seen.SenderName)
		assert.Equal(t, "move my sync with @Grace Hopper to 3pm", seen.Text)
		assert.Equal(t, time.Unix(1741597200, 0).UTC(), seen.ReceivedAt)
	})

	t.Run("top-level mention replies in a new thread under the message", func(t *testing.T) {
		useCase := &channels.MockChannelsUseCase{}
		useCase.On("ProcessInboundMessage", mock.Anything, mock.MatchedBy(func(msg *models.InboundMessage) bool {
			return msg.ReplyToID == "1741597200.000100"
		})).Return(&models.InboundResult{Outcome: models.ReservationAccepted}, nil)

		rec := postSlack(newSlackTestRouter(useCase), appMentionCallback("Ev02", "<@UBOT> hi", ""), now, testSlackSigningSecret)

		assert.Equal(t, http.StatusOK, rec.Code)
		useCase.AssertExpectations(t)
	})

	t.Run("retried event answers with the duplicate marker", func(t *testing.T) {
		useCase := (&channels.MockChannelsUseCase{}).WithOutcome(models.ReservationDuplicate)

		rec := postSlack(newSlackTestRouter(useCase), appMentionCallback("Ev01", "<@UBOT> hi", ""), now, testSlackSigningSecret)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"duplicate","duplicates":1}`, rec.Body.String())
	})

	t.Run("bot messages and channel messages are ignored", func(t *testing.T) {
		useCase := &channels.MockChannelsUseCase{}
		router := newSlackTestRouter(useCase)

		botDM := `{"type":"event_callback","event_id":"Ev03","event":{"type":"message","channel_type":"im",` +
			`"bot_id":"B1","user":"UBOT","text":"hello","ts":"1741597200.000100","channel":"D1"}}`
		channelMessage := `{"type":"event_callback","event_id":"Ev04","event":{"type":"message","channel_type":"channel",` +
			`"user":"U123","text":"hello","ts":"1741597200.000100","channel":"C42"}}`

		for _, body := range []string{botDM, channelMessage} {
			rec := postSlack(router, body, now, testSlackSigningSecret)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"status":"ignored"}`, rec.Body.String())
		}
		useCase.AssertNotCalled(t, "ProcessInboundMessage", mock.Anything, mock.Anything)
	})

	t.Run("direct messages are forwarded", func(t *testing.T) {
		useCase := (&channels.MockChannelsUseCase{}).WithOutcome(models.ReservationAccepted)
		body := `{"type":"event_callback","event_id":"Ev05","event":{"type":"message","channel_type":"im",` +
			`"user":"U123","text":"free slots tomorrow?","ts":"1741597200.000100","channel":"D1"}}`

		rec := postSlack(newSlackTestRouter(useCase), body, now, testSlackSigningSecret)

		assert.Equal(t, http.StatusOK, rec.Code)
		useCase.AssertCalled(t, "ProcessInboundMessage", mock.Anything, mock.MatchedBy(func(msg *models.InboundMessage) bool {
			return msg.DedupID == "Ev05" && msg.ChatID == "D1" && msg.Text == "free slots tomorrow?"
		}))
	})

	t.Run("invalid or stale signatures are rejected", func(t *testing.T) {
		useCase := &channels.MockChannelsUseCase{}
		router := newSlackTestRouter(useCase)
		body := appMentionCallback("Ev06", "<@UBOT> hi", "")

		assert.Equal(t, http.StatusUnauthorized, postSlack(router, body, now, "wrong_secret").Code)
		assert.Equal(t, http.StatusUnauthorized, postSlack(router, body, now-400, testSlackSigningSecret).Code)
		useCase.AssertNotCalled(t, "ProcessInboundMessage", mock.Anything, mock.Anything)
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		useCase := &channels.MockChannelsUseCase{}
		body := appMentionCallback("Ev08", "<@UBOT> hi", "") + strings.Repeat(" ", maxWebhookBodyBytes)

		rec := postSlack(newSlackTestRouter(useCase), body, now, testSlackSigningSecret)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		useCase.AssertNotCalled(t, "ProcessInboundMessage", mock.Anything, mock.Anything)
	})

	t.Run("processing failure answers 500", func(t *testing.T) {
		useCase := &channels.MockChannelsUseCase{}
		useCase.On("ProcessInboundMessage", mock.Anything, mock.Anything).Return(nil, assert.AnError)

		rec := postSlack(newSlackTestRouter(useCase), appMentionCallback("Ev07", "<@UBOT> hi", ""), now, testSlackSigningSecret)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestSlackTimestamp(t *testing.T) {
	assert.Equal(t, time.Unix(1741597200, 0).UTC(), slackTimestamp("1741597200.000100"))
	assert.WithinDuration(t, time.Now(), slackTimestamp("garbage"), time.Minute)
}
