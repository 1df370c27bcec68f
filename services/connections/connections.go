package connections

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/samber/mo"

	"assistbackend/core"
	"assistbackend/models"
	"assistbackend/services"
)

type ConnectionsService struct {
	connectionsRepo services.ConnectionsRepository
	configMutator   services.ConfigMutator
	calendarService services.CalendarService
	now             func() time.Time
}

func NewConnectionsService(
	connectionsRepo services.ConnectionsRepository,
	configMutator services.ConfigMutator,
	calendarService services.CalendarService,
) *ConnectionsService {
	return &ConnectionsService{
		connectionsRepo: connectionsRepo,
		configMutator:   configMutator,
		calendarService: calendarService,
		now:             time.Now,
	}
}

func (s *ConnectionsService) ListConnections(ctx context.Context) ([]*models.IntegrationConnection, error) {
	conns, err := s.connectionsRepo.ListConnections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return conns, nil
}

func (s *ConnectionsService) GetConnection(
	ctx context.Context,
	provider string,
) (mo.Option[*models.IntegrationConnection], error) {
	if !models.IsKnownProvider(provider) {
		return mo.None[*models.IntegrationConnection](), core.NewValidationError("unknown provider %q", provider)
	}
	maybeConn, err := s.connectionsRepo.GetConnectionByProvider(ctx, provider)
	if err != nil {
		return mo.None[*models.IntegrationConnection](), fmt.Errorf("failed to get %s connection: %w", provider, err)
	}
	return maybeConn, nil
}

// EnsureConnection returns the provider's connection row, creating it on first use.
// Channel rows start connected since their credentials live in process configuration;
// the calendar row starts disconnected until tokens are supplied.
func (s *ConnectionsService) EnsureConnection(ctx context.Context, provider string) (*models.IntegrationConnection, error) {
	maybeConn, err := s.GetConnection(ctx, provider)
	if err != nil {
		return nil, err
	}
	if conn, ok := maybeConn.Get(); ok {
		return conn, nil
	}

	status := models.ConnectionStatusConnected
	if provider == models.ProviderCalendar {
		status = models.ConnectionStatusDisconnected
	}
	conn := &models.IntegrationConnection{
		Provider: provider,
		Status:   status,
		Config:   models.ConnectionConfig{},
	}
	if err := s.connectionsRepo.CreateConnection(ctx, conn); err != nil {
		// Another instance may have created the row first
		maybeConn, getErr := s.connectionsRepo.GetConnectionByProvider(ctx, provider)
		if getErr == nil {
			if existing, ok := maybeConn.Get(); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to create %s connection: %w", provider, err)
	}

	log.Printf("✅ Created %s connection %s", provider, conn.ID)
	return conn, nil
}

// ConnectCalendar stores the tokens from the OAuth callback as a pending connection and runs a health
// check, which moves it to connected or error.
func (s *ConnectionsService) ConnectCalendar(
	ctx context.Context,
	params models.ConnectCalendarParams,
) (*models.IntegrationConnection, error) {
	if params.AccessToken == "" {
		return nil, core.NewValidationError("access_token is required")
	}
	if params.ExpiresIn < 0 {
		return nil, core.NewValidationError("expires_in must not be negative")
	}
	if (params.ClientID == "") != (params.ClientSecret == "") {
		return nil, core.NewValidationError("client_id and client_secret must be provided together")
	}

	log.Printf("📋 Starting to connect calendar integration")
	conn, err := s.EnsureConnection(ctx, models.ProviderCalendar)
	if err != nil {
		return nil, err
	}

	accessToken, refreshToken := params.AccessToken, params.RefreshToken
	conn.Status = models.ConnectionStatusPending
	conn.AccessToken = &accessToken
	conn.RefreshToken = nil
	if refreshToken != "" {
		conn.RefreshToken = &refreshToken
	}
	conn.TokenExpiresAt = nil
	if params.ExpiresIn > 0 {
		expiresAt := s.now().Add(time.Duration(params.ExpiresIn) * time.Second).UTC()
		conn.TokenExpiresAt = &expiresAt
	}
	conn.LastError = nil
	conn.ExternalAccountID = nil
	conn.ExternalAccountLabel = nil

	if err := s.connectionsRepo.UpdateConnectionState(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to store calendar tokens: %w", err)
	}

	err = s.configMutator.MutateConfig(ctx, models.ProviderCalendar, func(config models.ConnectionConfig) bool {
		// A new account means the old managed calendar is not reachable anymore
		delete(config, models.ConfigKeyManagedCalendarID)
		if params.CalendarID != "" {
			config[models.ConfigKeyCalendarID] = params.CalendarID
		}
		if params.ClientID != "" {
			config[models.ConfigKeyClientID] = params.ClientID
			config[models.ConfigKeyClientSecret] = params.ClientSecret
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store calendar settings: %w", err)
	}

	checked, err := s.calendarService.CheckHealth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check calendar connection: %w", err)
	}

	log.Printf("📋 Completed successfully - calendar connection is %s", checked.Status)
	return checked, nil
}

// ConnectChannel marks a messaging channel connected again after a disconnect. Channel credentials
// live in process configuration, so there is nothing else to store.
func (s *ConnectionsService) ConnectChannel(ctx context.Context, provider string) (*models.IntegrationConnection, error) {
	if !models.IsChannelProvider(provider) {
		return nil, core.NewValidationError("%s is not a messaging channel", provider)
	}

	log.Printf("📋 Starting to connect %s channel", provider)
	conn, err := s.EnsureConnection(ctx, provider)
	if err != nil {
		return nil, err
	}
	if conn.Status == models.ConnectionStatusConnected {
		log.Printf("📋 Completed successfully - %s channel was already connected", provider)
		return conn, nil
	}

	conn.Status = models.ConnectionStatusConnected
	conn.LastError = nil
	if err := s.connectionsRepo.UpdateConnectionState(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to connect %s: %w", provider, err)
	}

	log.Printf("📋 Completed successfully - connected %s channel", provider)
	return conn, nil
}

func (s *ConnectionsService) CheckHealth(ctx context.Context, provider string) (*models.IntegrationConnection, error) {
	if provider != models.ProviderCalendar {
		return nil, core.NewValidationError("health checks are only supported for the calendar integration")
	}
	conn, err := s.calendarService.CheckHealth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check calendar connection: %w", err)
	}
	return conn, nil
}

// Disconnect drops the stored credentials and resets the row; the row itself is kept
func (s *ConnectionsService) Disconnect(ctx context.Context, provider string) (*models.IntegrationConnection, error) {
	maybeConn, err := s.GetConnection(ctx, provider)
	if err != nil {
		return nil, err
	}
	conn, ok := maybeConn.Get()
	if !ok {
		return nil, fmt.Errorf("%s connection: %w", provider, core.ErrNotFound)
	}

	log.Printf("📋 Starting to disconnect %s integration", provider)
	conn.Status = models.ConnectionStatusDisconnected
	conn.AccessToken = nil
	conn.RefreshToken = nil
	conn.TokenExpiresAt = nil
	conn.LastError = nil
	conn.ExternalAccountID = nil
	conn.ExternalAccountLabel = nil

	if err := s.connectionsRepo.UpdateConnectionState(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to disconnect %s: %w", provider, err)
	}

	log.Printf("📋 Completed successfully - disconnected %s integration", provider)
	return conn, nil
}
