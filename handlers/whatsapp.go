package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"assistbackend/models"
	"assistbackend/usecases"
)

const whatsAppSignatureHeader = "X-Hub-Signature-256"

type whatsAppWebhook struct {
	Object string          `json:"object"`
	Entry  []whatsAppEntry `json:"entry"`
}

type whatsAppEntry struct {
	ID      string           `json:"id"`
	Changes []whatsAppChange `json:"changes"`
}

type whatsAppChange struct {
	Field string        `json:"field"`
	Value whatsAppValue `json:"value"`
}

type whatsAppValue struct {
	Contacts []whatsAppContact `json:"contacts"`
	Messages []whatsAppMessage `json:"messages"`
}

type whatsAppContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type whatsAppMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
}

type WhatsAppWebhookHandler struct {
	verifyToken     string
	appSecret       string
	channelsUseCase usecases.ChannelsUseCaseInterface
}

func NewWhatsAppWebhookHandler(
	verifyToken, appSecret string,
	channelsUseCase usecases.ChannelsUseCaseInterface,
) *WhatsAppWebhookHandler {
	return &WhatsAppWebhookHandler{
		verifyToken:     verifyToken,
		appSecret:       appSecret,
		channelsUseCase: channelsUseCase,
	}
}

// HandleVerification answers the subscription handshake by echoing hub.challenge
func (h *WhatsAppWebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	log.Printf("🔐 WhatsApp webhook verification request received from %s", r.RemoteAddr)

	query := r.URL.Query()
	if query.Get("hub.mode") != "subscribe" || !hmac.Equal([]byte(query.Get("hub.verify_token")), []byte(h.verifyToken)) {
		log.Printf("❌ WhatsApp webhook verification failed")
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}

	log.Printf("✅ Responding to WhatsApp webhook verification challenge")
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte(query.Get("hub.challenge"))); err != nil {
		log.Printf("❌ Failed to write challenge response: %v", err)
	}
}

// verifyWhatsAppSignature checks the sha256 HMAC of the raw body against the app secret
func (h *WhatsAppWebhookHandler) verifyWhatsAppSignature(r *http.Request, body []byte) error {
	signature := r.Header.Get(whatsAppSignatureHeader)
	if signature == "" {
		return fmt.Errorf("missing %s header", whatsAppSignatureHeader)
	}
	if !strings.HasPrefix(signature, "sha256=") {
		return fmt.Errorf("unsupported signature format")
	}

	mac := hmac.New(sha256.New, []byte(h.appSecret))
	mac.Write(body)
	expectedSignature := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expectedSignature), []byte(signature)) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}

func (h *WhatsAppWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	log.Printf("📨 WhatsApp webhook received from %s", r.RemoteAddr)

	body, ok := readWebhookBody(w, r)
	if !ok {
		return
	}

	if err := h.verifyWhatsAppSignature(r, body); err != nil {
		log.Printf("❌ WhatsApp signature verification failed: %v", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var webhook whatsAppWebhook
	if err := json.Unmarshal(body, &webhook); err != nil {
		log.Printf("❌ Failed to parse WhatsApp webhook: %v", err)
		http.Error(w, "failed to parse body", http.StatusBadRequest)
		return
	}

	inbound := parseWhatsAppMessages(webhook)
	if len(inbound) == 0 {
		log.Printf("📋 WhatsApp webhook carries no text messages (status update), ignoring")
		writeInboundResults(w, nil)
		return
	}

	// Redelivery after a failure replays every message; the accepted ones come back as duplicates.
	results := make([]*models.InboundResult, 0, len(inbound))
	for _, msg := range inbound {
		result, err := h.channelsUseCase.ProcessInboundMessage(r.Context(), msg)
		if err != nil {
			log.Printf("❌ Failed to process WhatsApp message %s: %v", msg.DedupID, err)
			http.Error(w, "failed to process message", http.StatusInternalServerError)
			return
		}
		results = append(results, result)
	}

	writeInboundResults(w, results)
}

func parseWhatsAppMessages(webhook whatsAppWebhook) []*models.InboundMessage {
	var messages []*models.InboundMessage
	for _, entry := range webhook.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, contact := range change.Value.Contacts {
				names[contact.WaID] = contact.Profile.Name
			}

			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text == nil || msg.ID == "" {
					log.Printf("⚠️ Skipping WhatsApp message %s of type %s", msg.ID, msg.Type)
					continue
				}

				receivedAt := time.Now().UTC()
				if unix, err := strconv.ParseInt(msg.Timestamp, 10, 64); err == nil {
					receivedAt = time.Unix(unix, 0).UTC()
				}

				messages = append(messages, &models.InboundMessage{
					Provider:   models.ProviderWhatsApp,
					DedupKind:  models.DedupKindIDSet,
					DedupID:    msg.ID,
					ChatID:     msg.From,
					ReplyToID:  msg.ID,
					SenderID:   msg.From,
					SenderName: names[msg.From],
					Text:       msg.Text.Body,
					ReceivedAt: receivedAt,
				})
			}
		}
	}
	return messages
}

func (h *WhatsAppWebhookHandler) SetupEndpoints(router *mux.Router) {
	router.HandleFunc("/webhooks/whatsapp", h.HandleVerification).Methods("GET")
	log.Printf("✅ GET /webhooks/whatsapp endpoint registered")

	router.HandleFunc("/webhooks/whatsapp", h.HandleWebhook).Methods("POST")
	log.Printf("✅ POST /webhooks/whatsapp endpoint registered")
}
