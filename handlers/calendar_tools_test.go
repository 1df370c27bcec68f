package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"assistbackend/core"
	"assistbackend/middleware"
	"assistbackend/usecases/calendartools"
)

func newToolsRouter(t *testing.T, useCase *calendartools.MockCalendarToolsUseCase) *mux.Router {
	t.Setenv("TESTING_MODE", "true")
	router := mux.NewRouter()
	NewCalendarToolsHandler(useCase).SetupEndpoints(router, middleware.NewClerkAuthMiddleware("sk_test_123"))
	return router
}

func postTool(router *mux.Router, action, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/calendar/tools/"+action, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCalendarToolsHandler_HandleToolCall(t *testing.T) {
	t.Run("typed result is returned as JSON", func(t *testing.T) {
		useCase := &calendartools.MockCalendarToolsUseCase{}
		useCase.On("Execute", mock.Anything, "delete", json.RawMessage(`{"event_id":"evt-1"}`)).
			Return(&calendartools.DeleteEventResult{Deleted: true, EventID: "evt-1"}, nil)

		rec := postTool(newToolsRouter(t, useCase), "delete", `{"event_id":"evt-1"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"deleted":true,"event_id":"evt-1"}`, rec.Body.String())
	})

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "validation error is returned verbatim",
			err:            fmt.Errorf("failed to create event: %w", core.NewValidationError("end must be after start")),
			expectedStatus: http.StatusBadRequest,
			expectedError:  "end must be after start",
		},
		{
			name:           "reconnect errors ask for a reconnect",
			err:            fmt.Errorf("failed to list events: %w", core.ErrAuth),
			expectedStatus: http.StatusConflict,
			expectedError:  core.ReconnectMessage,
		},
		{
			name:           "provider errors are a bad gateway",
			err:            &core.ProviderError{StatusCode: 404, Message: "Not Found"},
			expectedStatus: http.StatusBadGateway,
			expectedError:  "Calendar provider error: Not Found",
		},
		{
			name:           "transport errors are a bad gateway",
			err:            &core.TransportError{Err: fmt.Errorf("dial tcp: timeout")},
			expectedStatus: http.StatusBadGateway,
			expectedError:  "The calendar provider could not be reached. Please try again later.",
		},
		{
			name:           "unexpected errors are generic",
			err:            fmt.Errorf("boom"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "Calendar operation failed.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useCase := &calendartools.MockCalendarToolsUseCase{}
			useCase.On("Execute", mock.Anything, "list", mock.Anything).Return(nil, tt.err)

			rec := postTool(newToolsRouter(t, useCase), "list", `{}`)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			var body errorResponse
			assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.expectedError, body.Error)
		})
	}

	t.Run("oversized body is rejected", func(t *testing.T) {
		useCase := &calendartools.MockCalendarToolsUseCase{}

		rec := postTool(newToolsRouter(t, useCase), "create", `{"summary":"`+strings.Repeat("a", maxToolRequestBytes)+`"}`)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		useCase.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("only POST is routed", func(t *testing.T) {
		router := newToolsRouter(t, &calendartools.MockCalendarToolsUseCase{})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calendar/tools/list", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
