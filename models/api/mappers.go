package api

import (
	"time"

	"assistbackend/models"
)

// DomainConnectionToAPIConnection converts a domain IntegrationConnection to its API model
func DomainConnectionToAPIConnection(conn *models.IntegrationConnection, now time.Time) *IntegrationConnection {
	if conn == nil {
		return nil
	}

	return &IntegrationConnection{
		ID:                   conn.ID,
		Provider:             conn.Provider,
		Status:               string(conn.Status),
		HasAccessToken:       conn.HasAccessToken(),
		HasRefreshToken:      conn.HasRefreshToken(),
		TokenExpiresAt:       conn.TokenExpiresAt,
		TokenExpired:         conn.TokenExpiresAt != nil && !conn.TokenExpiresAt.After(now),
		CalendarID:           conn.Config.String(models.ConfigKeyCalendarID),
		ManagedCalendarID:    conn.Config.String(models.ConfigKeyManagedCalendarID),
		ExternalAccountID:    conn.ExternalAccountID,
		ExternalAccountLabel: conn.ExternalAccountLabel,
		LastError:            conn.LastError,
		LastCheckedAt:        conn.LastCheckedAt,
		CreatedAt:            conn.CreatedAt,
		UpdatedAt:            conn.UpdatedAt,
	}
}

// DomainConnectionsToAPIConnections converts a slice of domain connections
func DomainConnectionsToAPIConnections(conns []*models.IntegrationConnection, now time.Time) *ConnectionList {
	result := &ConnectionList{Connections: make([]*IntegrationConnection, 0, len(conns))}
	for _, conn := range conns {
		result.Connections = append(result.Connections, DomainConnectionToAPIConnection(conn, now))
	}
	return result
}
