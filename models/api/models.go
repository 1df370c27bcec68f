package api

import (
	"time"
)

// IntegrationConnection represents the connection data returned by the API.
// Tokens and raw config never leave the server.
type IntegrationConnection struct {
	ID                   string     `json:"id"`
	Provider             string     `json:"provider"`
	Status               string     `json:"status"`
	HasAccessToken       bool       `json:"has_access_token"`
	HasRefreshToken      bool       `json:"has_refresh_token"`
	TokenExpiresAt       *time.Time `json:"token_expires_at,omitempty"`
	TokenExpired         bool       `json:"token_expired,omitempty"`
	CalendarID           string     `json:"calendar_id,omitempty"`
	ManagedCalendarID    string     `json:"managed_calendar_id,omitempty"`
	ExternalAccountID    *string    `json:"external_account_id,omitempty"`
	ExternalAccountLabel *string    `json:"external_account_label,omitempty"`
	LastError            *string    `json:"last_error,omitempty"`
	LastCheckedAt        *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// ConnectionList is the list endpoint payload
type ConnectionList struct {
	Connections []*IntegrationConnection `json:"connections"`
}
