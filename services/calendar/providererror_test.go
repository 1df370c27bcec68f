package calendar

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseProviderErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{
			name:     "api error object",
			status:   http.StatusForbidden,
			body:     `{"error": {"code": 403, "message": "Rate Limit Exceeded", "errors": [{"reason": "rateLimitExceeded"}]}}`,
			expected: "Rate Limit Exceeded",
		},
		{
			name:     "api error object with status only",
			status:   http.StatusServiceUnavailable,
			body:     `{"error": {"code": 503, "status": "UNAVAILABLE"}}`,
			expected: "UNAVAILABLE",
		},
		{
			name:     "oauth string error with description",
			status:   http.StatusBadRequest,
			body:     `{"error": "invalid_grant", "error_description": "Token has been expired or revoked."}`,
			expected: "invalid_grant: Token has been expired or revoked.",
		},
		{
			name:     "oauth string error",
			status:   http.StatusBadRequest,
			body:     `{"error": "invalid_request"}`,
			expected: "invalid_request",
		},
		{
			name:     "description only",
			status:   http.StatusBadRequest,
			body:     `{"error_description": "Missing parameter"}`,
			expected: "Missing parameter",
		},
		{
			name:     "top-level message",
			status:   http.StatusBadGateway,
			body:     `{"message": "upstream timed out"}`,
			expected: "upstream timed out",
		},
		{
			name:     "null error falls back to message",
			status:   http.StatusBadRequest,
			body:     `{"error": null, "message": "bad input"}`,
			expected: "bad input",
		},
		{
			name:     "plain text body",
			status:   http.StatusInternalServerError,
			body:     "backend exploded",
			expected: "backend exploded",
		},
		{
			name:     "html body uses status text",
			status:   http.StatusBadGateway,
			body:     "<html><body>502</body></html>",
			expected: "Bad Gateway",
		},
		{
			name:     "empty body uses status text",
			status:   http.StatusNotFound,
			body:     "",
			expected: "Not Found",
		},
		{
			name:     "unknown status",
			status:   599,
			body:     "",
			expected: "HTTP 599",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseProviderErrorMessage(tt.status, []byte(tt.body)))
		})
	}

	t.Run("long raw bodies are truncated", func(t *testing.T) {
		message := parseProviderErrorMessage(http.StatusInternalServerError, []byte(strings.Repeat("x", 500)))
		assert.Len(t, []rune(message), maxRawErrorLength)
	})
}
