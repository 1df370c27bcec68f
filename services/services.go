package services

import (
	"context"
	"time"

	"github.com/samber/mo"

	"assistbackend/models"
)

// ConnectionsRepository is the persisted connection store. It is the only coordination point for inbound dedup.
type ConnectionsRepository interface {
	GetConnectionByProvider(ctx context.Context, provider string) (mo.Option[*models.IntegrationConnection], error)
	ListConnections(ctx context.Context) ([]*models.IntegrationConnection, error)
	CreateConnection(ctx context.Context, conn *models.IntegrationConnection) error
	// UpdateConnectionState writes status, credentials, account and health fields and refreshes conn
	// with the stored row. Config is never written here; it only changes through
	// UpdateConnectionConfigIfVersion.
	UpdateConnectionState(ctx context.Context, conn *models.IntegrationConnection) error
	UpdateConnectionTokens(
		ctx context.Context,
		provider string,
		tokens models.ConnectionTokens,
	) (*models.IntegrationConnection, error)
	// UpdateConnectionConfigIfVersion applies only while updated_at still equals version
	UpdateConnectionConfigIfVersion(
		ctx context.Context,
		provider string,
		config models.ConnectionConfig,
		version time.Time,
	) (bool, error)
	DeleteConnection(ctx context.Context, provider string) error
}

// TokenManager keeps the calendar credential valid
type TokenManager interface {
	GetValidContext(ctx context.Context) (*models.CalendarAuthContext, error)
	// GetCheckContext also accepts pending and errored connections; used by health checks
	GetCheckContext(ctx context.Context) (*models.CalendarAuthContext, error)
	Refresh(ctx context.Context, authCtx *models.CalendarAuthContext) (*models.CalendarAuthContext, error)
}

// CalendarService defines the calendar operations available to the tool layer and the resolver
type CalendarService interface {
	ListEvents(ctx context.Context, params models.ListEventsParams) ([]models.CalendarEvent, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*models.CalendarEvent, error)
	ListCalendars(ctx context.Context) ([]models.Calendar, error)
	CreateEvent(ctx context.Context, params models.CreateEventParams) (*models.CalendarEvent, error)
	UpdateEvent(ctx context.Context, params models.UpdateEventParams) (*models.CalendarEvent, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	GetAvailability(ctx context.Context, params models.AvailabilityParams) (*models.CalendarAvailability, error)
	CheckHealth(ctx context.Context) (*models.IntegrationConnection, error)
}

// EventResolver maps a free-text description to calendar events
type EventResolver interface {
	Resolve(ctx context.Context, description string, timeMin, timeMax *time.Time) (*models.ResolveResult, error)
}

// ConfigMutator performs read-merge-CAS writes of a connection config
type ConfigMutator interface {
	// MutateConfig applies mutate to a fresh copy of the connection config and CAS-writes it,
	// re-reading and re-applying on conflict. mutate returns false when there is nothing to write.
	MutateConfig(ctx context.Context, provider string, mutate func(models.ConnectionConfig) bool) error
}

// IngestionService claims inbound channel messages so each is handled at most once
type IngestionService interface {
	Reserve(ctx context.Context, msg *models.InboundMessage) (models.ReservationOutcome, error)
}

// ConnectionsService defines the integration management operations
type ConnectionsService interface {
	ListConnections(ctx context.Context) ([]*models.IntegrationConnection, error)
	GetConnection(ctx context.Context, provider string) (mo.Option[*models.IntegrationConnection], error)
	EnsureConnection(ctx context.Context, provider string) (*models.IntegrationConnection, error)
	ConnectCalendar(ctx context.Context, params models.ConnectCalendarParams) (*models.IntegrationConnection, error)
	ConnectChannel(ctx context.Context, provider string) (*models.IntegrationConnection, error)
	CheckHealth(ctx context.Context, provider string) (*models.IntegrationConnection, error)
	Disconnect(ctx context.Context, provider string) (*models.IntegrationConnection, error)
}
