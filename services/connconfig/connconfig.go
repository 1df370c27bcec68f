package connconfig

import (
	"context"
	"errors"
	"fmt"
	"log"

	"assistbackend/core"
	"assistbackend/models"
	"assistbackend/observability"
	"assistbackend/services"
)

// DefaultMaxAttempts bounds the read-merge-CAS loop
const DefaultMaxAttempts = 5

// ErrConflictBudgetExhausted is returned when every conditional write lost a race
var ErrConflictBudgetExhausted = errors.New("connection config write kept conflicting")

// ConfigMutator writes connection config through a compare-and-swap on updated_at
type ConfigMutator struct {
	connectionsRepo services.ConnectionsRepository
	maxAttempts     int
	metrics         *observability.Metrics
}

func NewConfigMutator(
	connectionsRepo services.ConnectionsRepository,
	maxAttempts int,
	metrics *observability.Metrics,
) *ConfigMutator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &ConfigMutator{
		connectionsRepo: connectionsRepo,
		maxAttempts:     maxAttempts,
		metrics:         metrics,
	}
}

// MutateConfig hands mutate a private copy of the current config. When mutate reports a change,
// the copy is written only if the row has not moved since it was read; otherwise the row is
// re-read and mutate runs again on the fresh state.
func (m *ConfigMutator) MutateConfig(
	ctx context.Context,
	provider string,
	mutate func(models.ConnectionConfig) bool,
) error {
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		maybeConn, err := m.connectionsRepo.GetConnectionByProvider(ctx, provider)
		if err != nil {
			return fmt.Errorf("failed to load %s connection: %w", provider, err)
		}
		if !maybeConn.IsPresent() {
			return fmt.Errorf("%s connection: %w", provider, core.ErrNotFound)
		}
		conn := maybeConn.MustGet()

		next := conn.Config.Clone()
		if !mutate(next) {
			return nil
		}

		applied, err := m.connectionsRepo.UpdateConnectionConfigIfVersion(ctx, provider, next, conn.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to write %s connection config: %w", provider, err)
		}
		if applied {
			return nil
		}

		m.metrics.ObserveIngestionConflict(provider)
		log.Printf("⚠️ Concurrent update of %s connection config, retrying (attempt %d/%d)", provider, attempt, m.maxAttempts)
	}

	return fmt.Errorf("%s connection config after %d attempts: %w", provider, m.maxAttempts, ErrConflictBudgetExhausted)
}
