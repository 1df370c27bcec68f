package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"assistbackend/core"
	"assistbackend/db"
	"assistbackend/models"
	"assistbackend/services"
	"assistbackend/services/connconfig"
	"assistbackend/testutils"
)

func setupIngestionTest(t *testing.T, provider string, maxAttempts int) (*IngestionService, *db.InMemoryIntegrationConnectionsRepository) {
	repo := db.NewInMemoryIntegrationConnectionsRepository()
	conn := testutils.CreateTestConnection(provider, "", "", nil)
	require.NoError(t, repo.CreateConnection(context.Background(), conn))

	service := NewIngestionService(connconfig.NewConfigMutator(repo, maxAttempts, nil), nil)
	return service, repo
}

func telegramUpdate(updateID int64) *models.InboundMessage {
	return &models.InboundMessage{
		Provider:  models.ProviderTelegram,
		DedupKind: models.DedupKindMonotonic,
		DedupID:   fmt.Sprintf("%d", updateID),
		ChatID:    "chat-1",
		Text:      "hello",
	}
}

func whatsAppMessage(id string) *models.InboundMessage {
	return &models.InboundMessage{
		Provider:  models.ProviderWhatsApp,
		DedupKind: models.DedupKindIDSet,
		DedupID:   id,
		ChatID:    "4915100000000",
		Text:      "hello",
	}
}

func TestIngestionService_Reserve_Monotonic(t *testing.T) {
	ctx := context.Background()

	t.Run("first delivery is accepted and redelivery rejected", func(t *testing.T) {
		service, repo := setupIngestionTest(t, models.ProviderTelegram, 0)

		outcome, err := service.Reserve(ctx, telegramUpdate(42))
		require.NoError(t, err)
		assert.Equal(t, models.ReservationAccepted, outcome)

		before, err := repo.GetConnectionByProvider(ctx, models.ProviderTelegram)
		require.NoError(t, err)

		outcome, err = service.Reserve(ctx, telegramUpdate(42))
		require.NoError(t, err)
		assert.Equal(t, models.ReservationDuplicate, outcome)

		// Rejections have no side effects
		after, err := repo.GetConnectionByProvider(ctx, models.ProviderTelegram)
		require.NoError(t, err)
		assert.Equal(t, before.MustGet().UpdatedAt, after.MustGet().UpdatedAt)
	})

	t.Run("older ids are rejected and newer accepted", func(t *testing.T) {
		service, repo := setupIngestionTest(t, models.ProviderTelegram, 0)

		for _, id := range []int64{10, 11, 15} {
			outcome, err := service.Reserve(ctx, telegramUpdate(id))
			require.NoError(t, err)
			assert.Equal(t, models.ReservationAccepted, outcome)
		}

		outcome, err := service.Reserve(ctx, telegramUpdate(12))
		require.NoError(t, err)
		assert.Equal(t, models.ReservationDuplicate, outcome)

		stored, err := repo.GetConnectionByProvider(ctx, models.ProviderTelegram)
		require.NoError(t, err)
		last, ok := stored.MustGet().Config.Int64(models.ConfigKeyLastProcessedUpdateID)
		require.True(t, ok)
		assert.Equal(t, int64(15), last)
	})

	t.Run("concurrent deliveries of the same update accept exactly one", func(t *testing.T) {
		service, _ := setupIngestionTest(t, models.ProviderTelegram, 0)

		const deliveries = 25
		var wg sync.WaitGroup
		outcomes := make([]models.ReservationOutcome, deliveries)
		errs := make([]error, deliveries)
		for i := 0; i < deliveries; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcomes[i], errs[i] = service.Reserve(ctx, telegramUpdate(42))
			}(i)
		}
		wg.Wait()

		accepted := 0
		for i := range outcomes {
			require.NoError(t, errs[i])
			if outcomes[i] == models.ReservationAccepted {
				accepted++
			}
		}
		assert.Equal(t, 1, accepted)
	})

	t.Run("non numeric update id is a validation error", func(t *testing.T) {
		service, _ := setupIngestionTest(t, models.ProviderTelegram, 0)
		msg := telegramUpdate(1)
		msg.DedupID = "abc"

		_, err := service.Reserve(ctx, msg)
		var validationErr *core.ValidationError
		assert.True(t, errors.As(err, &validationErr))
	})
}

func TestIngestionService_Reserve_IDSet(t *testing.T) {
	ctx := context.Background()

	t.Run("redelivery is rejected", func(t *testing.T) {
		service, _ := setupIngestionTest(t, models.ProviderWhatsApp, 0)

		outcome, err := service.Reserve(ctx, whatsAppMessage("wamid.1"))
		require.NoError(t, err)
		assert.Equal(t, models.ReservationAccepted, outcome)

		outcome, err = service.Reserve(ctx, whatsAppMessage("wamid.2"))
		require.NoError(t, err)
		assert.Equal(t, models.ReservationAccepted, outcome)

		outcome, err = service.Reserve(ctx, whatsAppMessage("wamid.1"))
		require.NoError(t, err)
		assert.Equal(t, models.ReservationDuplicate, outcome)
	})

	t.Run("the set keeps the most recent ids", func(t *testing.T) {
		service, repo := setupIngestionTest(t, models.ProviderWhatsApp, 0)
		clock := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		service.now = func() time.Time {
			clock = clock.Add(time.Millisecond)
			return clock
		}

		for i := 0; i < 250; i++ {
			outcome, err := service.Reserve(ctx, whatsAppMessage(fmt.Sprintf("wamid.%03d", i)))
			require.NoError(t, err)
			require.Equal(t, models.ReservationAccepted, outcome)
		}

		stored, err := repo.GetConnectionByProvider(ctx, models.ProviderWhatsApp)
		require.NoError(t, err)
		processed := stored.MustGet().Config.Int64Map(models.ConfigKeyProcessedMessageIDs)
		assert.Len(t, processed, DefaultMaxProcessedIDs)
		assert.Contains(t, processed, "wamid.249")
		assert.Contains(t, processed, "wamid.050")
		assert.NotContains(t, processed, "wamid.049")

		outcome, err := service.Reserve(ctx, whatsAppMessage("wamid.200"))
		require.NoError(t, err)
		assert.Equal(t, models.ReservationDuplicate, outcome)
	})

	t.Run("concurrent distinct messages are all kept", func(t *testing.T) {
		service, repo := setupIngestionTest(t, models.ProviderWhatsApp, 100)

		const deliveries = 30
		var wg sync.WaitGroup
		errs := make([]error, deliveries)
		for i := 0; i < deliveries; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = service.Reserve(ctx, whatsAppMessage(fmt.Sprintf("wamid.c%d", i)))
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
		stored, err := repo.GetConnectionByProvider(ctx, models.ProviderWhatsApp)
		require.NoError(t, err)
		assert.Len(t, stored.MustGet().Config.Int64Map(models.ConfigKeyProcessedMessageIDs), deliveries)
	})

	t.Run("concurrent deliveries of the same message accept exactly one", func(t *testing.T) {
		service, repo := setupIngestionTest(t, models.ProviderWhatsApp, 0)

		const deliveries = 25
		var wg sync.WaitGroup
		var mu sync.Mutex
		accepted := 0
		for i := 0; i < deliveries; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcome, err := service.Reserve(ctx, whatsAppMessage("wamid.same"))
				assert.NoError(t, err)
				if outcome == models.ReservationAccepted {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, accepted)
		stored, err := repo.GetConnectionByProvider(ctx, models.ProviderWhatsApp)
		require.NoError(t, err)
		assert.Len(t, stored.MustGet().Config.Int64Map(models.ConfigKeyProcessedMessageIDs), 1)
	})
}

func TestIngestionService_Reserve_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("exhausted conflict budget is an error", func(t *testing.T) {
		mutator := new(services.MockConfigMutator)
		mutator.On("MutateConfig", mock.Anything, models.ProviderTelegram, mock.Anything).
			Return(connconfig.ErrConflictBudgetExhausted)
		service := NewIngestionService(mutator, nil)

		outcome, err := service.Reserve(ctx, telegramUpdate(7))
		require.Error(t, err)
		assert.True(t, errors.Is(err, connconfig.ErrConflictBudgetExhausted))
		assert.Empty(t, outcome)
	})

	t.Run("missing connection is an error", func(t *testing.T) {
		service, _ := setupIngestionTest(t, models.ProviderTelegram, 0)

		_, err := service.Reserve(ctx, whatsAppMessage("wamid.1"))
		require.Error(t, err)
		assert.True(t, core.IsNotFoundError(err))
	})

	t.Run("incomplete messages are rejected", func(t *testing.T) {
		service, _ := setupIngestionTest(t, models.ProviderTelegram, 0)

		_, err := service.Reserve(ctx, &models.InboundMessage{Provider: models.ProviderTelegram})
		assert.Error(t, err)

		msg := telegramUpdate(1)
		msg.DedupKind = "sometimes"
		_, err = service.Reserve(ctx, msg)
		assert.Error(t, err)
	})
}

func TestPruneProcessedIDs(t *testing.T) {
	processed := map[string]int64{"a": 1, "b": 3, "c": 2, "d": 3}

	assert.Equal(t, processed, pruneProcessedIDs(processed, 10))
	assert.Equal(t, map[string]int64{"b": 3, "d": 3}, pruneProcessedIDs(processed, 2))
	assert.Equal(t, map[string]int64{"b": 3, "c": 2, "d": 3}, pruneProcessedIDs(processed, 3))
}
