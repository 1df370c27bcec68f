package ingestion

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"assistbackend/core"
	"assistbackend/models"
	"assistbackend/observability"
	"assistbackend/services"
)

// DefaultMaxProcessedIDs bounds the remembered id set of set-based channels
const DefaultMaxProcessedIDs = 200

type IngestionService struct {
	configMutator   services.ConfigMutator
	metrics         *observability.Metrics
	maxProcessedIDs int
	now             func() time.Time
}

func NewIngestionService(configMutator services.ConfigMutator, metrics *observability.Metrics) *IngestionService {
	return &IngestionService{
		configMutator:   configMutator,
		metrics:         metrics,
		maxProcessedIDs: DefaultMaxProcessedIDs,
		now:             time.Now,
	}
}

// Reserve claims an inbound message. It returns ReservationAccepted for exactly one of any number of
// concurrent or repeated deliveries of the same message and ReservationDuplicate for the others.
// A duplicate is not an error and leaves the connection untouched.
func (s *IngestionService) Reserve(ctx context.Context, msg *models.InboundMessage) (models.ReservationOutcome, error) {
	if msg == nil || msg.Provider == "" || msg.DedupID == "" {
		return "", core.NewValidationError("inbound message needs a provider and a dedup id")
	}

	var updateID int64
	switch msg.DedupKind {
	case models.DedupKindMonotonic:
		parsed, err := strconv.ParseInt(msg.DedupID, 10, 64)
		if err != nil {
			return "", core.NewValidationError("dedup id %q is not a number", msg.DedupID)
		}
		updateID = parsed
	case models.DedupKindIDSet:
	default:
		return "", core.NewValidationError("unknown dedup kind %q", msg.DedupKind)
	}

	outcome := models.ReservationAccepted
	err := s.configMutator.MutateConfig(ctx, msg.Provider, func(cfg models.ConnectionConfig) bool {
		if msg.DedupKind == models.DedupKindMonotonic {
			if last, ok := cfg.Int64(models.ConfigKeyLastProcessedUpdateID); ok && updateID <= last {
				outcome = models.ReservationDuplicate
				return false
			}
			outcome = models.ReservationAccepted
			cfg[models.ConfigKeyLastProcessedUpdateID] = updateID
			return true
		}

		processed := cfg.Int64Map(models.ConfigKeyProcessedMessageIDs)
		if _, seen := processed[msg.DedupID]; seen {
			outcome = models.ReservationDuplicate
			return false
		}
		outcome = models.ReservationAccepted
		processed[msg.DedupID] = s.now().UnixMilli()
		cfg[models.ConfigKeyProcessedMessageIDs] = toConfigMap(pruneProcessedIDs(processed, s.maxProcessedIDs))
		return true
	})
	if err != nil {
		s.metrics.ObserveIngestion(msg.Provider, "error")
		return "", fmt.Errorf("failed to reserve %s message %s: %w", msg.Provider, msg.DedupID, err)
	}

	s.metrics.ObserveIngestion(msg.Provider, string(outcome))
	if outcome == models.ReservationDuplicate {
		log.Printf("🔁 Ignoring duplicate %s message %s", msg.Provider, msg.DedupID)
	}
	return outcome, nil
}

// pruneProcessedIDs keeps the limit most recently inserted ids
func pruneProcessedIDs(processed map[string]int64, limit int) map[string]int64 {
	if len(processed) <= limit {
		return processed
	}

	ids := make([]string, 0, len(processed))
	for id := range processed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if processed[ids[i]] != processed[ids[j]] {
			return processed[ids[i]] > processed[ids[j]]
		}
		return ids[i] > ids[j]
	})

	pruned := make(map[string]int64, limit)
	for _, id := range ids[:limit] {
		pruned[id] = processed[id]
	}
	return pruned
}

func toConfigMap(processed map[string]int64) map[string]any {
	result := make(map[string]any, len(processed))
	for id, insertedAt := range processed {
		result[id] = insertedAt
	}
	return result
}
