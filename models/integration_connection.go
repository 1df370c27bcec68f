package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

type ConnectionStatus string

const (
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
	ConnectionStatusPending      ConnectionStatus = "pending"
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusError        ConnectionStatus = "error"
)

// IsValid reports whether the status is one of the known connection states
func (s ConnectionStatus) IsValid() bool {
	switch s {
	case ConnectionStatusDisconnected, ConnectionStatusPending, ConnectionStatusConnected, ConnectionStatusError:
		return true
	}
	return false
}

// Providers with a connection row
const (
	ProviderCalendar = "calendar"
	ProviderTelegram = "telegram"
	ProviderWhatsApp = "whatsapp"
	ProviderSlack    = "slack"
)

// IsKnownProvider reports whether provider names one of the supported integrations
func IsKnownProvider(provider string) bool {
	switch provider {
	case ProviderCalendar, ProviderTelegram, ProviderWhatsApp, ProviderSlack:
		return true
	}
	return false
}

// IsChannelProvider reports whether provider is one of the messaging channels
func IsChannelProvider(provider string) bool {
	return provider != ProviderCalendar && IsKnownProvider(provider)
}

// Well-known keys of ConnectionConfig
const (
	ConfigKeyCalendarID            = "calendarId"
	ConfigKeyClientID              = "clientId"
	ConfigKeyClientSecret          = "clientSecret"
	ConfigKeyManagedCalendarID     = "managedCalendarId"
	ConfigKeyLastProcessedUpdateID = "lastProcessedUpdateId"
	ConfigKeyProcessedMessageIDs   = "processedMessageIds"
	ConfigKeyThreads               = "threads"
	ConfigKeyChatModes             = "chatModes"
)

// IntegrationConnection is the single row kept per external provider.
// Tokens and Config are plaintext here; the repository encrypts them at rest.
type IntegrationConnection struct {
	ID                   string           `json:"id"`
	Provider             string           `json:"provider"`
	Status               ConnectionStatus `json:"status"`
	AccessToken          *string          `json:"-"`
	RefreshToken         *string          `json:"-"`
	TokenExpiresAt       *time.Time       `json:"token_expires_at,omitempty"`
	Config               ConnectionConfig `json:"-"`
	ExternalAccountID    *string          `json:"external_account_id,omitempty"`
	ExternalAccountLabel *string          `json:"external_account_label,omitempty"`
	LastError            *string          `json:"last_error,omitempty"`
	LastCheckedAt        *time.Time       `json:"last_checked_at,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// HasAccessToken reports whether a non-empty access token is stored
func (c *IntegrationConnection) HasAccessToken() bool {
	return c.AccessToken != nil && *c.AccessToken != ""
}

// HasRefreshToken reports whether a non-empty refresh token is stored
func (c *IntegrationConnection) HasRefreshToken() bool {
	return c.RefreshToken != nil && *c.RefreshToken != ""
}

// ConnectionTokens is the token triple written after a connect or a refresh
type ConnectionTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// ConnectionConfig is the free-form provider settings map persisted with a connection
type ConnectionConfig map[string]any

// Clone returns a deep copy so that candidate states never alias the state that was read
func (c ConnectionConfig) Clone() ConnectionConfig {
	if c == nil {
		return ConnectionConfig{}
	}
	raw, err := json.Marshal(c)
	if err != nil {
		panic(fmt.Sprintf("connection config is not JSON serializable: %v", err))
	}
	clone := ConnectionConfig{}
	if err := json.Unmarshal(raw, &clone); err != nil {
		panic(fmt.Sprintf("connection config round trip failed: %v", err))
	}
	return clone
}

// String returns the string value stored under key, or "" when absent
func (c ConnectionConfig) String(key string) string {
	if c == nil {
		return ""
	}
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

// Int64 returns the integer stored under key. JSON decoding yields float64, strings are accepted too.
func (c ConnectionConfig) Int64(key string) (int64, bool) {
	if c == nil {
		return 0, false
	}
	return toInt64(c[key])
}

// StringMap returns a copy of the nested string map stored under key
func (c ConnectionConfig) StringMap(key string) map[string]string {
	result := map[string]string{}
	if c == nil {
		return result
	}
	switch nested := c[key].(type) {
	case map[string]any:
		for k, v := range nested {
			if s, ok := v.(string); ok {
				result[k] = s
			}
		}
	case map[string]string:
		for k, v := range nested {
			result[k] = v
		}
	}
	return result
}

// Int64Map returns a copy of the nested id→number map stored under key
func (c ConnectionConfig) Int64Map(key string) map[string]int64 {
	result := map[string]int64{}
	if c == nil {
		return result
	}
	switch nested := c[key].(type) {
	case map[string]any:
		for k, v := range nested {
			if n, ok := toInt64(v); ok {
				result[k] = n
			}
		}
	case map[string]int64:
		for k, v := range nested {
			result[k] = v
		}
	}
	return result
}

// SetStringMapEntry sets key[entryKey] = value on a nested string map
func (c ConnectionConfig) SetStringMapEntry(key, entryKey, value string) {
	nested := c.StringMap(key)
	nested[entryKey] = value
	asAny := make(map[string]any, len(nested))
	for k, v := range nested {
		asAny[k] = v
	}
	c[key] = asAny
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

// ConnectCalendarParams carries the tokens produced by the OAuth callback
type ConnectCalendarParams struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	CalendarID   string `json:"calendar_id,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}
