package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/backoffice/internal/procurement"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAccountsOverdueScan marks pending accounts past their due date.
	TaskAccountsOverdueScan = "accounts:overdue-scan"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency-cleanup"
	// TaskProcurementReceiptAudit records committed purchase receipts.
	TaskProcurementReceiptAudit = "procurement:receipt-audit"
)

// OverdueScanPayload optionally pins the evaluation date.
type OverdueScanPayload struct {
	AsOf *time.Time `json:"as_of,omitempty"`
}

// NewOverdueScanTask builds the overdue scan task.
func NewOverdueScanTask() (*asynq.Task, error) {
	body, err := json.Marshal(OverdueScanPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccountsOverdueScan, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload configures key retention.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask builds the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// NewReceiptAuditTask wraps a committed receipt.
func NewReceiptAuditTask(evt procurement.ReceiptPostedEvent) (*asynq.Task, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProcurementReceiptAudit, body, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}
