package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/backoffice/internal/jobs"
)

// OverdueRefresher persists derived overdue statuses.
type OverdueRefresher interface {
	RefreshOverdue(ctx context.Context, asOf time.Time) (int, error)
}

// OverdueScanJob moves pending accounts past due to OVERDUE.
type OverdueScanJob struct {
	Accounts OverdueRefresher
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewOverdueScanJob wires the overdue scan handler.
func NewOverdueScanJob(accounts OverdueRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueScanJob {
	return &OverdueScanJob{
		Accounts: accounts,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskAccountsOverdueScan.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Accounts == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	asOf := j.clock()
	if payload.AsOf != nil {
		asOf = *payload.AsOf
	}

	tracker := j.Metrics.Track(TaskAccountsOverdueScan)
	updated, err := j.Accounts.RefreshOverdue(ctx, asOf)
	if err != nil {
		loggerOrDefault(j.Logger).Error("overdue scan", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddProcessed(TaskAccountsOverdueScan, int64(updated))
	loggerOrDefault(j.Logger).Info("overdue scan complete", slog.Int("updated", updated), slog.Time("as_of", asOf))
	return tracker.End(nil)
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
