package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBalanceWarmup recomputes and caches balance sheets.
	TaskBalanceWarmup = "balance:warmup"

	// WarmupScopeOpen warms every open period.
	WarmupScopeOpen = "open"
	// WarmupScopePeriod warms a single period named in the payload.
	WarmupScopePeriod = "period"
)

// BalanceWarmupPayload selects which periods to warm. PeriodID is only set
// for WarmupScopePeriod.
type BalanceWarmupPayload struct {
	Scope    string `json:"scope"`
	PeriodID int64  `json:"period_id,omitempty"`
}

// NewBalanceWarmupTask constructs an Asynq task.
func NewBalanceWarmupTask(scope string) (*asynq.Task, error) {
	data, err := json.Marshal(BalanceWarmupPayload{Scope: scope})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBalanceWarmup, data), nil
}

// NewBalanceWarmupPeriodTask constructs a warmup task for one period.
func NewBalanceWarmupPeriodTask(periodID int64) (*asynq.Task, error) {
	data, err := json.Marshal(BalanceWarmupPayload{Scope: WarmupScopePeriod, PeriodID: periodID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBalanceWarmup, data), nil
}
