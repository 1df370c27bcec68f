package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistbackend/appctx"
	"assistbackend/models"
)

func newTestAuthMiddleware() *ClerkAuthMiddleware {
	return &ClerkAuthMiddleware{
		verifyToken: func(ctx context.Context, token string) (string, error) {
			if token == "valid-token" {
				return "user_2abc", nil
			}
			return "", errors.New("token is expired")
		},
	}
}

func TestClerkAuthMiddleware_WithAuth(t *testing.T) {
	tests := []struct {
		name            string
		authHeader      string
		expectedStatus  int
		expectedError   string
		expectedSubject string
	}{
		{
			name:            "valid token sets the operator",
			authHeader:      "Bearer valid-token",
			expectedStatus:  http.StatusOK,
			expectedSubject: "user_2abc",
		},
		{
			name:           "missing header",
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "missing authorization header",
		},
		{
			name:           "wrong scheme",
			authHeader:     "Basic dXNlcjpwYXNz",
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "invalid authorization header format",
		},
		{
			name:           "empty token",
			authHeader:     "Bearer ",
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "empty bearer token",
		},
		{
			name:           "rejected token",
			authHeader:     "Bearer expired-token",
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "invalid token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestAuthMiddleware()
			var seen *models.Operator
			handler := m.WithAuth(func(w http.ResponseWriter, r *http.Request) {
				operator, ok := appctx.GetOperator(r.Context())
				require.True(t, ok)
				seen = operator
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/integrations", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedError != "" {
				assert.JSONEq(t, `{"error":"`+tt.expectedError+`"}`, rec.Body.String())
				assert.Nil(t, seen)
				return
			}
			require.NotNil(t, seen)
			assert.Equal(t, tt.expectedSubject, seen.Subject)
			assert.Equal(t, "clerk", seen.AuthProvider)
		})
	}
}

func TestClerkAuthMiddleware_TestingMode(t *testing.T) {
	t.Setenv("TESTING_MODE", "true")

	m := newTestAuthMiddleware()
	handler := m.WithAuth(func(w http.ResponseWriter, r *http.Request) {
		operator, ok := appctx.GetOperator(r.Context())
		require.True(t, ok)
		assert.Equal(t, "test", operator.AuthProvider)
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/integrations", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
