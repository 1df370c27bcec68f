package usecases

import (
	"context"
	"encoding/json"

	"assistbackend/models"
)

// ChannelsUseCaseInterface defines the operations behind the channel webhooks
type ChannelsUseCaseInterface interface {
	ProcessInboundMessage(ctx context.Context, msg *models.InboundMessage) (*models.InboundResult, error)
}

// CalendarToolsUseCaseInterface defines the calendar tool dispatch used by the chat layer
type CalendarToolsUseCaseInterface interface {
	Execute(ctx context.Context, action string, args json.RawMessage) (any, error)
}
