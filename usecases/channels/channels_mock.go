package channels

import (
	"context"

	"github.com/stretchr/testify/mock"

	"assistbackend/models"
)

// MockChannelsUseCase is a mock implementation of usecases.ChannelsUseCaseInterface
type MockChannelsUseCase struct {
	mock.Mock
}

func (m *MockChannelsUseCase) ProcessInboundMessage(
	ctx context.Context,
	msg *models.InboundMessage,
) (*models.InboundResult, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InboundResult), args.Error(1)
}

// WithOutcome configures the mock to answer every message with the given reservation outcome
func (m *MockChannelsUseCase) WithOutcome(outcome models.ReservationOutcome) *MockChannelsUseCase {
	m.On("ProcessInboundMessage", mock.Anything, mock.Anything).
		Return(&models.InboundResult{Outcome: outcome, Replied: outcome == models.ReservationAccepted}, nil)
	return m
}
