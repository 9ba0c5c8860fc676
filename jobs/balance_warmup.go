package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/kassa-fin/kassa/internal/balance"
	"github.com/kassa-fin/kassa/internal/periods"
)

// BalanceWarmupJob precomputes balance sheets for open periods so that the
// first request after a quiet night does not pay the aggregation cost.
type BalanceWarmupJob struct {
	periods  *periods.Service
	balances *balance.Service
	logger   *slog.Logger
}

// NewBalanceWarmupJob constructs the warmup job.
func NewBalanceWarmupJob(periodsService *periods.Service, balanceService *balance.Service, logger *slog.Logger) *BalanceWarmupJob {
	return &BalanceWarmupJob{periods: periodsService, balances: balanceService, logger: logger}
}

// Handle processes TaskBalanceWarmup tasks.
func (j *BalanceWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload BalanceWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	if payload.Scope == WarmupScopePeriod {
		if _, err := j.balances.Sheet(ctx, payload.PeriodID); err != nil {
			return err
		}
		j.logger.Info("balance warmup completed",
			slog.String("scope", payload.Scope),
			slog.Int64("period_id", payload.PeriodID))
		return nil
	}

	open, err := j.periods.ListOpen(ctx)
	if err != nil {
		return err
	}
	warmed := 0
	for _, p := range open {
		if _, err := j.balances.Sheet(ctx, p.ID); err != nil {
			j.logger.Warn("balance warmup", slog.Int64("period_id", p.ID), slog.Any("error", err))
			continue
		}
		warmed++
	}
	j.logger.Info("balance warmup completed",
		slog.String("scope", payload.Scope),
		slog.Int("open_periods", len(open)),
		slog.Int("warmed", warmed))
	return nil
}
