package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tradewind-oms/tradewind-oms/internal/shared"
)

const idempotencyRetention = 7 * 24 * time.Hour

// MaintenanceProcessor runs housekeeping tasks.
type MaintenanceProcessor struct {
	idempotency *shared.IdempotencyStore
	logger      *slog.Logger
}

// NewMaintenanceProcessor constructs the processor.
func NewMaintenanceProcessor(idempotency *shared.IdempotencyStore, logger *slog.Logger) *MaintenanceProcessor {
	return &MaintenanceProcessor{idempotency: idempotency, logger: logger}
}

// HandleIdempotencyCleanup processes TaskIdempotencyCleanup tasks.
func (p *MaintenanceProcessor) HandleIdempotencyCleanup(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := p.idempotency.Cleanup(ctx, idempotencyRetention); err != nil {
		return err
	}
	p.logger.Info("idempotency keys pruned", slog.Time("scheduled_for", payload.ScheduledFor))
	return nil
}
