package channels

import (
	"context"
	"fmt"

	"assistbackend/models"
)

// UnconfiguredChannelsUseCase returns errors for all operations when no chat core is configured
type UnconfiguredChannelsUseCase struct{}

// NewUnconfiguredChannelsUseCase creates a new unconfigured channels use case
func NewUnconfiguredChannelsUseCase() *UnconfiguredChannelsUseCase {
	return &UnconfiguredChannelsUseCase{}
}

func (u *UnconfiguredChannelsUseCase) ProcessInboundMessage(
	ctx context.Context,
	msg *models.InboundMessage,
) (*models.InboundResult, error) {
	return nil, fmt.Errorf("channels use case is not configured")
}
