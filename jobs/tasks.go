package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerWarmup precomputes ledgers of customers with outstanding balances.
	TaskLedgerWarmup = "ledger:warmup"
	// TaskLedgerInvalidate bumps the ledger cache version.
	TaskLedgerInvalidate = "ledger:invalidate"
)

// LedgerWarmupPayload configures one warmup run.
type LedgerWarmupPayload struct {
	Limit int `json:"limit"`
}

// LedgerInvalidatePayload records why the cache is being invalidated.
type LedgerInvalidatePayload struct {
	Reason string `json:"reason"`
}

// NewLedgerWarmupTask constructs an Asynq task warming up to limit customers.
func NewLedgerWarmupTask(limit int) (*asynq.Task, error) {
	data, err := json.Marshal(LedgerWarmupPayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerWarmup, data), nil
}

// NewLedgerInvalidateTask constructs an Asynq task that invalidates cached ledgers.
func NewLedgerInvalidateTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(LedgerInvalidatePayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerInvalidate, data, asynq.MaxRetry(5)), nil
}
