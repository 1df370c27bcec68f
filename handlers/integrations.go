package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"assistbackend/appctx"
	"assistbackend/core"
	"assistbackend/middleware"
	"assistbackend/models"
	"assistbackend/models/api"
	"assistbackend/services"
)

type IntegrationsHandler struct {
	connectionsService services.ConnectionsService
	now                func() time.Time
}

func NewIntegrationsHandler(connectionsService services.ConnectionsService) *IntegrationsHandler {
	return &IntegrationsHandler{
		connectionsService: connectionsService,
		now:                time.Now,
	}
}

func (h *IntegrationsHandler) operatorSubject(r *http.Request) string {
	if operator, ok := appctx.GetOperator(r.Context()); ok {
		return operator.Subject
	}
	return "unknown"
}

func (h *IntegrationsHandler) HandleListConnections(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 List integrations request received from %s", h.operatorSubject(r))

	conns, err := h.connectionsService.ListConnections(r.Context())
	if err != nil {
		log.Printf("❌ Failed to list integrations: %v", err)
		writeErrorResponse(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, api.DomainConnectionsToAPIConnections(conns, h.now()))
}

func (h *IntegrationsHandler) HandleGetConnection(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	log.Printf("📋 Get %s integration request received from %s", provider, h.operatorSubject(r))

	maybeConn, err := h.connectionsService.GetConnection(r.Context(), provider)
	if err != nil {
		log.Printf("❌ Failed to get %s integration: %v", provider, err)
		writeErrorResponse(w, err)
		return
	}
	conn, ok := maybeConn.Get()
	if !ok {
		writeErrorResponse(w, core.ErrNotFound)
		return
	}

	writeJSONResponse(w, http.StatusOK, api.DomainConnectionToAPIConnection(conn, h.now()))
}

func (h *IntegrationsHandler) HandleConnectCalendar(w http.ResponseWriter, r *http.Request) {
	log.Printf("🔗 Connect calendar request received from %s", h.operatorSubject(r))

	var params models.ConnectCalendarParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		log.Printf("❌ Failed to parse connect calendar request: %v", err)
		writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	conn, err := h.connectionsService.ConnectCalendar(r.Context(), params)
	if err != nil {
		log.Printf("❌ Failed to connect calendar: %v", err)
		writeErrorResponse(w, err)
		return
	}

	log.Printf("✅ Calendar connection stored with status %s", conn.Status)
	writeJSONResponse(w, http.StatusOK, api.DomainConnectionToAPIConnection(conn, h.now()))
}

func (h *IntegrationsHandler) HandleConnectChannel(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	log.Printf("🔗 Connect %s channel request received from %s", provider, h.operatorSubject(r))

	conn, err := h.connectionsService.ConnectChannel(r.Context(), provider)
	if err != nil {
		log.Printf("❌ Failed to connect %s channel: %v", provider, err)
		writeErrorResponse(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, api.DomainConnectionToAPIConnection(conn, h.now()))
}

func (h *IntegrationsHandler) HandleCheckHealth(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	log.Printf("🩺 Health check of %s integration requested by %s", provider, h.operatorSubject(r))

	conn, err := h.connectionsService.CheckHealth(r.Context(), provider)
	if err != nil {
		log.Printf("❌ Failed to check %s integration: %v", provider, err)
		writeErrorResponse(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, api.DomainConnectionToAPIConnection(conn, h.now()))
}

func (h *IntegrationsHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	log.Printf("🔌 Disconnect %s integration requested by %s", provider, h.operatorSubject(r))

	conn, err := h.connectionsService.Disconnect(r.Context(), provider)
	if err != nil {
		log.Printf("❌ Failed to disconnect %s integration: %v", provider, err)
		writeErrorResponse(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, api.DomainConnectionToAPIConnection(conn, h.now()))
}

func (h *IntegrationsHandler) SetupEndpoints(router *mux.Router, authMiddleware *middleware.ClerkAuthMiddleware) {
	log.Printf("🚀 Registering integrations API endpoints")

	router.HandleFunc("/api/integrations", authMiddleware.WithAuth(h.HandleListConnections)).Methods("GET")
	log.Printf("✅ GET /api/integrations endpoint registered")

	router.HandleFunc("/api/integrations/calendar/connect", authMiddleware.WithAuth(h.HandleConnectCalendar)).
		Methods("POST")
	log.Printf("✅ POST /api/integrations/calendar/connect endpoint registered")

	router.HandleFunc("/api/integrations/{provider}/connect", authMiddleware.WithAuth(h.HandleConnectChannel)).
		Methods("POST")
	log.Printf("✅ POST /api/integrations/{provider}/connect endpoint registered")

	router.HandleFunc("/api/integrations/{provider}", authMiddleware.WithAuth(h.HandleGetConnection)).Methods("GET")
	log.Printf("✅ GET /api/integrations/{provider} endpoint registered")

	router.HandleFunc("/api/integrations/{provider}/health", authMiddleware.WithAuth(h.HandleCheckHealth)).
		Methods("POST")
	log.Printf("✅ POST /api/integrations/{provider}/health endpoint registered")

	router.HandleFunc("/api/integrations/{provider}", authMiddleware.WithAuth(h.HandleDisconnect)).Methods("DELETE")
	log.Printf("✅ DELETE /api/integrations/{provider} endpoint registered")

	log.Printf("✅ All integrations API endpoints registered successfully")
}
