package services

import (
	"context"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"assistbackend/models"
)

// MockTokenManager is a mock implementation of TokenManager
type MockTokenManager struct {
	mock.Mock
}

func (m *MockTokenManager) GetValidContext(ctx context.Context) (*models.CalendarAuthContext, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CalendarAuthContext), args.Error(1)
}

func (m *MockTokenManager) GetCheckContext(ctx context.Context) (*models.CalendarAuthContext, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CalendarAuthContext), args.Error(1)
}

func (m *MockTokenManager) Refresh(
	ctx context.Context,
	authCtx *models.CalendarAuthContext,
) (*models.CalendarAuthContext, error) {
	args := m.Called(ctx, authCtx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CalendarAuthContext), args.Error(1)
}

// MockCalendarService is a mock implementation of CalendarService
type MockCalendarService struct {
	mock.Mock
}

func (m *MockCalendarService) ListEvents(
	ctx context.Context,
	params models.ListEventsParams,
) ([]models.CalendarEvent, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CalendarEvent), args.Error(1)
}

func (m *MockCalendarService) GetEvent(ctx context.Context, calendarID, eventID string) (*models.CalendarEvent, error) {
	args := m.Called(ctx, calendarID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CalendarEvent), args.Error(1)
}

func (m *MockCalendarService) ListCalendars(ctx context.Context) ([]models.Calendar, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Calendar), args.Error(1)
}

func (m *MockCalendarService) CreateEvent(
	ctx context.Context,
	params models.CreateEventParams,
) (*models.CalendarEvent, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CalendarEvent), args.Error(1)
}

func (m *MockCalendarService) UpdateEvent(
	ctx context.Context,
	params models.UpdateEventParams,
) (*models.CalendarEvent, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CalendarEvent), args.Error(1)
}

func (m *MockCalendarService) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	args := m.Called(ctx, calendarID, eventID)
	return args.Error(0)
}

func (m *MockCalendarService) GetAvailability(
	ctx context.Context,
	params models.AvailabilityParams,
) (*models.CalendarAvailability, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CalendarAvailability), args.Error(1)
}

func (m *MockCalendarService) CheckHealth(ctx context.Context) (*models.IntegrationConnection, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IntegrationConnection), args.Error(1)
}

// MockEventResolver is a mock implementation of EventResolver
type MockEventResolver struct {
	mock.Mock
}

func (m *MockEventResolver) Resolve(
	ctx context.Context,
	description string,
	timeMin, timeMax *time.Time,
) (*models.ResolveResult, error) {
	args := m.Called(ctx, description, timeMin, timeMax)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ResolveResult), args.Error(1)
}

// MockIngestionService is a mock implementation of IngestionService
type MockIngestionService struct {
	mock.Mock
}

func (m *MockIngestionService) Reserve(
	ctx context.Context,
	msg *models.InboundMessage,
) (models.ReservationOutcome, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(models.ReservationOutcome), args.Error(1)
}

// MockConfigMutator is a mock implementation of ConfigMutator
type MockConfigMutator struct {
	mock.Mock
}

func (m *MockConfigMutator) MutateConfig(
	ctx context.Context,
	provider string,
	mutate func(models.ConnectionConfig) bool,
) error {
	args := m.Called(ctx, provider, mutate)
	return args.Error(0)
}

// MockConnectionsService is a mock implementation of ConnectionsService
type MockConnectionsService struct {
	mock.Mock
}

func (m *MockConnectionsService) ListConnections(ctx context.Context) ([]*models.IntegrationConnection, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.IntegrationConnection), args.Error(1)
}

func (m *MockConnectionsService) GetConnection(
	ctx context.Context,
	provider string,
) (mo.Option[*models.IntegrationConnection], error) {
	args := m.Called(ctx, provider)
	return args.Get(0).(mo.Option[*models.IntegrationConnection]), args.Error(1)
}

func (m *MockConnectionsService) EnsureConnection(
	ctx context.Context,
	provider string,
) (*models.IntegrationConnection, error) {
	args := m.Called(ctx, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IntegrationConnection), args.Error(1)
}

func (m *MockConnectionsService) ConnectCalendar(
	ctx context.Context,
	params models.ConnectCalendarParams,
) (*models.IntegrationConnection, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IntegrationConnection), args.Error(1)
}

func (m *MockConnectionsService) ConnectChannel(
	ctx context.Context,
	provider string,
) (*models.IntegrationConnection, error) {
	args := m.Called(ctx, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IntegrationConnection), args.Error(1)
}

func (m *MockConnectionsService) CheckHealth(
	ctx context.Context,
	provider string,
) (*models.IntegrationConnection, error) {
	args := m.Called(ctx, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IntegrationConnection), args.Error(1)
}

func (m *MockConnectionsService) Disconnect(
	ctx context.Context,
	provider string,
) (*models.IntegrationConnection, error) {
	args := m.Called(ctx, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IntegrationConnection), args.Error(1)
}
