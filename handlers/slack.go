package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	slackclient "assistbackend/clients/slack"
	"assistbackend/models"
	"assistbackend/usecases"
)

type SlackEventsHandler struct {
	signingSecret   string
	botUserID       string
	userResolver    slackclient.SlackUserResolver
	channelsUseCase usecases.ChannelsUseCaseInterface
}

func NewSlackEventsHandler(
	signingSecret, botUserID string,
	userResolver slackclient.SlackUserResolver,
	channelsUseCase usecases.ChannelsUseCaseInterface,
) *SlackEventsHandler {
	return &SlackEventsHandler{
		signingSecret:   signingSecret,
		botUserID:       botUserID,
		userResolver:    userResolver,
		channelsUseCase: channelsUseCase,
	}
}

// verifySlackSignature checks the v0 signing secret signature and the request timestamp window
func (h *SlackEventsHandler) verifySlackSignature(r *http.Request, body []byte) error {
	verifier, err := slack.NewSecretsVerifier(r.Header, h.signingSecret)
	if err != nil {
		return err
	}
	if _, err := verifier.Write(body); err != nil {
		return err
	}
	return verifier.Ensure()
}

func (h *SlackEventsHandler) HandleSlackEvent(w http.ResponseWriter, r *http.Request) {
	log.Printf("📨 Slack event received from %s", r.RemoteAddr)

	body, ok := readWebhookBody(w, r)
	if !ok {
		return
	}

	if err := h.verifySlackSignature(r, body); err != nil {
		log.Printf("❌ Slack signature verification failed: %v", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	eventsAPIEvent, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		log.Printf("❌ Failed to parse Slack event: %v", err)
		http.Error(w, "failed to parse body", http.StatusBadRequest)
		return
	}

	switch eventsAPIEvent.Type {
	case slackevents.URLVerification:
		log.Printf("🔐 Slack URL verification challenge received")
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil || challenge.Challenge == "" {
			log.Printf("❌ Challenge not found in verification request")
			http.Error(w, "challenge not found", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		if _, err := w.Write([]byte(challenge.Challenge)); err != nil {
			log.Printf("❌ Failed to write challenge response: %v", err)
		}
		return
	case slackevents.CallbackEvent:
	default:
		log.Printf("📋 Non-event callback received: %s", eventsAPIEvent.Type)
		writeInboundResults(w, nil)
		return
	}

	callback, ok := eventsAPIEvent.Data.(*slackevents.EventsAPICallbackEvent)
	if !ok || callback.EventID == "" {
		log.Printf("❌ Event ID not found in Slack event callback")
		http.Error(w, "event id not found", http.StatusBadRequest)
		return
	}

	inbound := h.toInboundMessage(r, callback, eventsAPIEvent.InnerEvent)
	if inbound == nil {
		writeInboundResults(w, nil)
		return
	}

	result, err := h.channelsUseCase.ProcessInboundMessage(r.Context(), inbound)
	if err != nil {
		log.Printf("❌ Failed to process Slack event %s: %v", callback.EventID, err)
		http.Error(w, "failed to process event", http.StatusInternalServerError)
		return
	}

	writeInboundResults(w, []*models.InboundResult{result})
}

// toInboundMessage returns nil for events that should not be answered
func (h *SlackEventsHandler) toInboundMessage(
	r *http.Request,
	callback *slackevents.EventsAPICallbackEvent,
	innerEvent slackevents.EventsAPIInnerEvent,
) *models.InboundMessage {
	var channel, user, text, ts, threadTS string

	switch ev := innerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		if ev.BotID != "" {
			return nil
		}
		channel, user, text, ts, threadTS = ev.Channel, ev.User, ev.Text, ev.TimeStamp, ev.ThreadTimeStamp
	case *slackevents.MessageEvent:
		// Channel messages arrive as app_mention; only direct messages are handled here
		if ev.ChannelType != "im" || ev.BotID != "" || ev.SubType != "" {
			return nil
		}
		channel, user, text, ts, threadTS = ev.Channel, ev.User, ev.Text, ev.TimeStamp, ev.ThreadTimeStamp
	default:
		log.Printf("📋 Unsupported Slack event type: %s", innerEvent.Type)
		return nil
	}

	if user == "" || user == h.botUserID {
		return nil
	}

	replyTo := ts
	if threadTS != "" {
		replyTo = threadTS
	}

	text = slackclient.ResolveMentionsInMessage(r.Context(), h.userResolver, h.botUserID, text)
	log.Printf("📨 Bot addressed by %s in %s", user, channel)

	return &models.InboundMessage{
		Provider:   models.ProviderSlack,
		DedupKind:  models.DedupKindIDSet,
		DedupID:    callback.EventID,
		ChatID:     channel,
		ReplyToID:  replyTo,
		SenderID:   user,
		SenderName: h.senderName(r, user),
		Text:       strings.TrimSpace(text),
		ReceivedAt: slackTimestamp(ts),
	}
}

func (h *SlackEventsHandler) senderName(r *http.Request, userID string) string {
	user, err := h.userResolver.GetUserInfoContext(r.Context(), userID)
	if err != nil {
		log.Printf("⚠️ Failed to resolve Slack sender %s: %v", userID, err)
		return ""
	}
	if user.DisplayName != "" {
		return user.DisplayName
	}
	if user.RealName != "" {
		return user.RealName
	}
	return user.Name
}

// slackTimestamp converts a "1710000000.000100" message ts to a time
func slackTimestamp(ts string) time.Time {
	seconds, _, _ := strings.Cut(ts, ".")
	unix, err := strconv.ParseInt(seconds, 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Unix(unix, 0).UTC()
}

func (h *SlackEventsHandler) SetupEndpoints(router *mux.Router) {
	router.HandleFunc("/webhooks/slack", h.HandleSlackEvent).Methods("POST")
	log.Printf("✅ POST /webhooks/slack endpoint registered")
}
