package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"assistbackend/core"
	"assistbackend/models"
)

// WebhookResponse is the body every channel webhook answers with
type WebhookResponse struct {
	Status     string `json:"status"`
	Duplicates int    `json:"duplicates,omitempty"`
}

const (
	webhookStatusAccepted  = "accepted"
	webhookStatusDuplicate = "duplicate"
	webhookStatusIgnored   = "ignored"
)

// Channel payloads carry a handful of messages
const maxWebhookBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("❌ Failed to encode JSON response: %v", err)
	}
}

// writeErrorResponse maps a domain error to its HTTP status and caller-facing message
func writeErrorResponse(w http.ResponseWriter, err error) {
	statusCode := errorStatusCode(err)
	message := core.UserMessage(err)
	if statusCode == http.StatusNotFound {
		message = "not found"
	}
	writeJSONResponse(w, statusCode, errorResponse{Error: message})
}

func errorStatusCode(err error) int {
	var validationErr *core.ValidationError
	var providerErr *core.ProviderError
	var transportErr *core.TransportError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case core.IsReconnectError(err):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &providerErr), errors.As(err, &transportErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeInboundResults summarizes the outcomes of one webhook delivery
func writeInboundResults(w http.ResponseWriter, results []*models.InboundResult) {
	response := WebhookResponse{Status: webhookStatusIgnored}
	accepted := 0
	for _, result := range results {
		switch result.Outcome {
		case models.ReservationAccepted:
			accepted++
		case models.ReservationDuplicate:
			response.Duplicates++
		}
	}

	switch {
	case accepted > 0:
		response.Status = webhookStatusAccepted
	case response.Duplicates > 0:
		response.Status = webhookStatusDuplicate
	}
	writeJSONResponse(w, http.StatusOK, response)
}

// readWebhookBody reads at most maxWebhookBodyBytes and answers 413 or 400 itself when it returns false
func readWebhookBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Printf("❌ Webhook body exceeds %d bytes, rejecting", tooLarge.Limit)
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		log.Printf("❌ Failed to read request body: %v", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}
