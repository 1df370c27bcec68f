package calendartools

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"
)

// MockCalendarToolsUseCase is a mock implementation of usecases.CalendarToolsUseCaseInterface
type MockCalendarToolsUseCase struct {
	mock.Mock
}

func (m *MockCalendarToolsUseCase) Execute(ctx context.Context, action string, args json.RawMessage) (any, error) {
	result := m.Called(ctx, action, args)
	return result.Get(0), result.Error(1)
}
