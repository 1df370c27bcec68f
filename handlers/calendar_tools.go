package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"assistbackend/middleware"
	"assistbackend/usecases"
)

// Tool arguments are small JSON objects
const maxToolRequestBytes = 64 << 10

type CalendarToolsHandler struct {
	toolsUseCase usecases.CalendarToolsUseCaseInterface
}

func NewCalendarToolsHandler(toolsUseCase usecases.CalendarToolsUseCaseInterface) *CalendarToolsHandler {
	return &CalendarToolsHandler{
		toolsUseCase: toolsUseCase,
	}
}

func (h *CalendarToolsHandler) HandleToolCall(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	log.Printf("🛠️ Calendar tool %s requested from %s", action, r.RemoteAddr)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxToolRequestBytes+1))
	if err != nil {
		log.Printf("❌ Failed to read request body: %v", err)
		writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "failed to read body"})
		return
	}
	if len(body) > maxToolRequestBytes {
		writeJSONResponse(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
		return
	}

	result, err := h.toolsUseCase.Execute(r.Context(), action, json.RawMessage(body))
	if err != nil {
		writeErrorResponse(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}

func (h *CalendarToolsHandler) SetupEndpoints(router *mux.Router, authMiddleware *middleware.ClerkAuthMiddleware) {
	router.HandleFunc("/api/calendar/tools/{action}", authMiddleware.WithAuth(h.HandleToolCall)).Methods("POST")
	log.Printf("✅ POST /api/calendar/tools/{action} endpoint registered")
}
