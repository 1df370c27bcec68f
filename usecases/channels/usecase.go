package channels

import (
	"context"
	"fmt"
	"log"
	"strings"

	"assistbackend/clients"
	"assistbackend/models"
	"assistbackend/services"
	"assistbackend/utils"
)

const (
	quietModeConfirmation = "Quiet mode enabled. I will stay silent in this chat until you send /mode chat."
	chatModeConfirmation  = "Chat mode enabled. I will reply to messages in this chat."
	invalidModeMessage    = "Unknown mode. Use /mode chat or /mode quiet."
	chatFailureMessage    = "Sorry, I couldn't process that message right now. Please try again later."
)

// ChannelsUseCase turns inbound channel messages into chat replies
type ChannelsUseCase struct {
	ingestionService   services.IngestionService
	configMutator      services.ConfigMutator
	connectionsService services.ConnectionsService
	chatClient         clients.ChatClient
	senders            map[string]clients.ChannelSender
}

// NewChannelsUseCase creates a channels use case; senders is keyed by provider
func NewChannelsUseCase(
	ingestionService services.IngestionService,
	configMutator services.ConfigMutator,
	connectionsService services.ConnectionsService,
	chatClient clients.ChatClient,
	senders map[string]clients.ChannelSender,
) *ChannelsUseCase {
	return &ChannelsUseCase{
		ingestionService:   ingestionService,
		configMutator:      configMutator,
		connectionsService: connectionsService,
		chatClient:         chatClient,
		senders:            senders,
	}
}

// ProcessInboundMessage reserves the message and, when it is new, replies through the originating channel.
// Errors are only returned while the message is still unclaimed so the provider can redeliver it;
// once reserved, failures are logged and reported through InboundResult.Replied.
func (u *ChannelsUseCase) ProcessInboundMessage(
	ctx context.Context,
	msg *models.InboundMessage,
) (*models.InboundResult, error) {
	log.Printf("📋 Starting to process %s message %s in chat %s", msg.Provider, msg.DedupID, msg.ChatID)

	sender, ok := u.senders[msg.Provider]
	if !ok {
		return nil, fmt.Errorf("no sender configured for provider %s", msg.Provider)
	}

	connected, err := u.isConnected(ctx, msg.Provider)
	if err != nil {
		log.Printf("❌ Failed to check %s connection status: %v", msg.Provider, err)
		return nil, err
	}
	if !connected {
		log.Printf("🔌 %s channel is not connected, ignoring message %s", msg.Provider, msg.DedupID)
		return &models.InboundResult{Outcome: models.ReservationSkipped}, nil
	}

	outcome, err := u.ingestionService.Reserve(ctx, msg)
	if err != nil {
		log.Printf("❌ Failed to reserve %s message %s: %v", msg.Provider, msg.DedupID, err)
		return nil, fmt.Errorf("failed to reserve inbound message: %w", err)
	}
	result := &models.InboundResult{Outcome: outcome}
	if outcome == models.ReservationDuplicate {
		log.Printf("📋 Completed successfully - %s message %s was already processed", msg.Provider, msg.DedupID)
		return result, nil
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		log.Printf("📋 Completed successfully - %s message %s has no text to answer", msg.Provider, msg.DedupID)
		return result, nil
	}

	if command := utils.DetectModeCommand(text); command.IsCommand {
		result.Replied = u.handleModeCommand(ctx, sender, msg, command)
		log.Printf("📋 Completed successfully - handled /mode command in chat %s", msg.ChatID)
		return result, nil
	}

	config, err := u.loadConfig(ctx, msg.Provider)
	if err != nil {
		log.Printf("❌ Failed to load %s connection config: %v", msg.Provider, err)
		return result, nil
	}

	if config.StringMap(models.ConfigKeyChatModes)[msg.ChatID] == utils.ChatModeQuiet {
		log.Printf("🔇 Chat %s is in quiet mode, not replying", msg.ChatID)
		log.Printf("📋 Completed successfully - %s message %s processed without reply", msg.Provider, msg.DedupID)
		return result, nil
	}

	threadID := config.StringMap(models.ConfigKeyThreads)[msg.ChatID]
	reply, err := u.chatClient.Chat(ctx, models.ChatRequest{
		Provider: msg.Provider,
		ChatID:   msg.ChatID,
		ThreadID: threadID,
		Sender:   msg.SenderName,
		Text:     text,
	})
	if err != nil {
		log.Printf("❌ Failed to get chat reply for %s message %s: %v", msg.Provider, msg.DedupID, err)
		u.send(ctx, sender, msg, chatFailureMessage)
		return result, nil
	}

	if reply.Text != "" {
		result.Replied = u.send(ctx, sender, msg, reply.Text)
	}

	if reply.ThreadID != "" && reply.ThreadID != threadID {
		if err := u.persistChatEntry(ctx, msg.Provider, models.ConfigKeyThreads, msg.ChatID, reply.ThreadID); err != nil {
			log.Printf("⚠️ Failed to remember thread %s for chat %s: %v", reply.ThreadID, msg.ChatID, err)
		}
	}

	log.Printf("📋 Completed successfully - processed %s message %s", msg.Provider, msg.DedupID)
	return result, nil
}

func (u *ChannelsUseCase) handleModeCommand(
	ctx context.Context,
	sender clients.ChannelSender,
	msg *models.InboundMessage,
	command utils.ModeCommandResult,
) bool {
	if !command.Valid {
		log.Printf("⚠️ Unknown chat mode %q requested in chat %s", command.Mode, msg.ChatID)
		return u.send(ctx, sender, msg, invalidModeMessage)
	}

	if err := u.persistChatEntry(ctx, msg.Provider, models.ConfigKeyChatModes, msg.ChatID, command.Mode); err != nil {
		log.Printf("❌ Failed to persist chat mode for chat %s: %v", msg.ChatID, err)
		return u.send(ctx, sender, msg, chatFailureMessage)
	}
	log.Printf("✅ Chat %s switched to %s mode", msg.ChatID, command.Mode)

	confirmation := chatModeConfirmation
	if command.Mode == utils.ChatModeQuiet {
		confirmation = quietModeConfirmation
	}
	return u.send(ctx, sender, msg, confirmation)
}

// isConnected reports whether the channel row exists and is connected. A disconnected channel
// neither claims nor answers messages.
func (u *ChannelsUseCase) isConnected(ctx context.Context, provider string) (bool, error) {
	maybeConn, err := u.connectionsService.GetConnection(ctx, provider)
	if err != nil {
		return false, fmt.Errorf("failed to get %s connection: %w", provider, err)
	}
	conn, ok := maybeConn.Get()
	return ok && conn.Status == models.ConnectionStatusConnected, nil
}

func (u *ChannelsUseCase) loadConfig(ctx context.Context, provider string) (models.ConnectionConfig, error) {
	maybeConn, err := u.connectionsService.GetConnection(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s connection: %w", provider, err)
	}
	conn, ok := maybeConn.Get()
	if !ok {
		return models.ConnectionConfig{}, nil
	}
	return conn.Config, nil
}

// persistChatEntry stores a per-chat value through the CAS helper so dedup state is never overwritten
func (u *ChannelsUseCase) persistChatEntry(ctx context.Context, provider, key, chatID, value string) error {
	return u.configMutator.MutateConfig(ctx, provider, func(config models.ConnectionConfig) bool {
		if config.StringMap(key)[chatID] == value {
			return false
		}
		config.SetStringMapEntry(key, chatID, value)
		return true
	})
}

func (u *ChannelsUseCase) send(
	ctx context.Context,
	sender clients.ChannelSender,
	msg *models.InboundMessage,
	text string,
) bool {
	err := sender.SendMessage(ctx, clients.OutboundMessage{
		ChatID:    msg.ChatID,
		ReplyToID: msg.ReplyToID,
		Text:      text,
	})
	if err != nil {
		log.Printf("❌ Failed to send %s reply to chat %s: %v", msg.Provider, msg.ChatID, err)
		return false
	}
	return true
}
