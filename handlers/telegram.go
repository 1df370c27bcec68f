package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"assistbackend/models"
	"assistbackend/usecases"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message"`
}

type telegramMessage struct {
	MessageID int64         `json:"message_id"`
	Date      int64         `json:"date"`
	Text      string        `json:"text"`
	Chat      telegramChat  `json:"chat"`
	From      *telegramUser `json:"from"`
}

type telegramChat struct {
	ID int64 `json:"id"`
}

type telegramUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

type TelegramWebhookHandler struct {
	webhookSecret   string
	channelsUseCase usecases.ChannelsUseCaseInterface
}

func NewTelegramWebhookHandler(
	webhookSecret string,
	channelsUseCase usecases.ChannelsUseCaseInterface,
) *TelegramWebhookHandler {
	return &TelegramWebhookHandler{
		webhookSecret:   webhookSecret,
		channelsUseCase: channelsUseCase,
	}
}

func (h *TelegramWebhookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	log.Printf("📨 Telegram update received from %s", r.RemoteAddr)

	secret := r.Header.Get(telegramSecretHeader)
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.webhookSecret)) != 1 {
		log.Printf("❌ Telegram secret token verification failed")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, ok := readWebhookBody(w, r)
	if !ok {
		return
	}

	var update telegramUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		log.Printf("❌ Failed to parse Telegram update: %v", err)
		http.Error(w, "failed to parse body", http.StatusBadRequest)
		return
	}

	if update.Message == nil || (update.Message.From != nil && update.Message.From.IsBot) {
		log.Printf("📋 Telegram update %d carries no user message, ignoring", update.UpdateID)
		writeInboundResults(w, nil)
		return
	}

	msg := update.Message
	inbound := &models.InboundMessage{
		Provider:   models.ProviderTelegram,
		DedupKind:  models.DedupKindMonotonic,
		DedupID:    strconv.FormatInt(update.UpdateID, 10),
		ChatID:     strconv.FormatInt(msg.Chat.ID, 10),
		ReplyToID:  strconv.FormatInt(msg.MessageID, 10),
		SenderName: telegramSenderName(msg.From),
		Text:       msg.Text,
		ReceivedAt: time.Unix(msg.Date, 0).UTC(),
	}
	if msg.From != nil {
		inbound.SenderID = strconv.FormatInt(msg.From.ID, 10)
	}

	result, err := h.channelsUseCase.ProcessInboundMessage(r.Context(), inbound)
	if err != nil {
		log.Printf("❌ Failed to process Telegram update %d: %v", update.UpdateID, err)
		http.Error(w, "failed to process update", http.StatusInternalServerError)
		return
	}

	writeInboundResults(w, []*models.InboundResult{result})
}

func telegramSenderName(user *telegramUser) string {
	if user == nil {
		return ""
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		return user.Username
	}
	return name
}

func (h *TelegramWebhookHandler) SetupEndpoints(router *mux.Router) {
	router.HandleFunc("/webhooks/telegram", h.HandleUpdate).Methods("POST")
	log.Printf("✅ POST /webhooks/telegram endpoint registered")
}
