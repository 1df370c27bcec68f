package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/mo"

	"assistbackend/core"
	"assistbackend/models"
)

// InMemoryIntegrationConnectionsRepository keeps connections in process memory.
// It mirrors the Postgres repository, including the strictly advancing updated_at used for CAS.
type InMemoryIntegrationConnectionsRepository struct {
	mu          sync.Mutex
	connections map[string]*models.IntegrationConnection
	now         func() time.Time
}

func NewInMemoryIntegrationConnectionsRepository() *InMemoryIntegrationConnectionsRepository {
	return &InMemoryIntegrationConnectionsRepository{
		connections: make(map[string]*models.IntegrationConnection),
		now:         time.Now,
	}
}

func (r *InMemoryIntegrationConnectionsRepository) CreateConnection(
	_ context.Context,
	conn *models.IntegrationConnection,
) error {
	if conn.Provider == "" {
		return fmt.Errorf("provider cannot be empty")
	}
	if conn.ID == "" {
		conn.ID = core.NewID(core.PrefixConnection)
	}
	if conn.Status == "" {
		conn.Status = models.ConnectionStatusDisconnected
	}
	if !conn.Status.IsValid() {
		return fmt.Errorf("invalid connection status: %q", conn.Status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[conn.Provider]; exists {
		return fmt.Errorf("failed to create integration connection: provider %s already exists", conn.Provider)
	}

	now := r.stamp(time.Time{})
	conn.CreatedAt = now
	conn.UpdatedAt = now
	r.connections[conn.Provider] = cloneConnection(conn)
	return nil
}

func (r *InMemoryIntegrationConnectionsRepository) GetConnectionByProvider(
	_ context.Context,
	provider string,
) (mo.Option[*models.IntegrationConnection], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.connections[provider]
	if !ok {
		return mo.None[*models.IntegrationConnection](), nil
	}
	return mo.Some(cloneConnection(stored)), nil
}

func (r *InMemoryIntegrationConnectionsRepository) ListConnections(
	_ context.Context,
) ([]*models.IntegrationConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*models.IntegrationConnection, 0, len(r.connections))
	for _, stored := range r.connections {
		result = append(result, cloneConnection(stored))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Provider < result[j].Provider })
	return result, nil
}

func (r *InMemoryIntegrationConnectionsRepository) UpdateConnectionState(
	_ context.Context,
	conn *models.IntegrationConnection,
) error {
	if !conn.Status.IsValid() {
		return fmt.Errorf("invalid connection status: %q", conn.Status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.connections[conn.Provider]
	if !ok {
		return fmt.Errorf("integration connection %s: %w", conn.Provider, core.ErrNotFound)
	}

	updated := cloneConnection(conn)
	updated.ID = stored.ID
	updated.CreatedAt = stored.CreatedAt
	updated.Config = stored.Config.Clone()
	updated.UpdatedAt = r.stamp(stored.UpdatedAt)
	r.connections[conn.Provider] = updated

	*conn = *cloneConnection(updated)
	return nil
}

func (r *InMemoryIntegrationConnectionsRepository) UpdateConnectionTokens(
	_ context.Context,
	provider string,
	tokens models.ConnectionTokens,
) (*models.IntegrationConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.connections[provider]
	if !ok {
		return nil, fmt.Errorf("integration connection %s: %w", provider, core.ErrNotFound)
	}

	updated := cloneConnection(stored)
	updated.AccessToken = optionalString(tokens.AccessToken)
	updated.RefreshToken = optionalString(tokens.RefreshToken)
	updated.TokenExpiresAt = copyTime(tokens.ExpiresAt)
	updated.LastError = nil
	updated.UpdatedAt = r.stamp(stored.UpdatedAt)
	r.connections[provider] = updated

	return cloneConnection(updated), nil
}

func (r *InMemoryIntegrationConnectionsRepository) UpdateConnectionConfigIfVersion(
	_ context.Context,
	provider string,
	config models.ConnectionConfig,
	version time.Time,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.connections[provider]
	if !ok || !stored.UpdatedAt.Equal(version) {
		return false, nil
	}

	updated := cloneConnection(stored)
	updated.Config = config.Clone()
	updated.UpdatedAt = r.stamp(stored.UpdatedAt)
	r.connections[provider] = updated
	return true, nil
}

func (r *InMemoryIntegrationConnectionsRepository) DeleteConnection(_ context.Context, provider string) error {
	if provider == "" {
		return fmt.Errorf("provider cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[provider]; !ok {
		return fmt.Errorf("integration connection %s: %w", provider, core.ErrNotFound)
	}
	delete(r.connections, provider)
	return nil
}

// stamp returns a microsecond precision timestamp strictly after previous, like the Postgres column
func (r *InMemoryIntegrationConnectionsRepository) stamp(previous time.Time) time.Time {
	now := r.now().UTC().Truncate(time.Microsecond)
	if !now.After(previous) {
		now = previous.Add(time.Microsecond)
	}
	return now
}

func cloneConnection(conn *models.IntegrationConnection) *models.IntegrationConnection {
	clone := *conn
	clone.AccessToken = copyString(conn.AccessToken)
	clone.RefreshToken = copyString(conn.RefreshToken)
	clone.TokenExpiresAt = copyTime(conn.TokenExpiresAt)
	clone.Config = conn.Config.Clone()
	clone.ExternalAccountID = copyString(conn.ExternalAccountID)
	clone.ExternalAccountLabel = copyString(conn.ExternalAccountLabel)
	clone.LastError = copyString(conn.LastError)
	clone.LastCheckedAt = copyTime(conn.LastCheckedAt)
	return &clone
}

func copyString(value *string) *string {
	if value == nil {
		return nil
	}
	s := *value
	return &s
}

func copyTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	t := *value
	return &t
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
