package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/backoffice/internal/jobs"
	"github.com/odyssey-erp/backoffice/internal/procurement"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReceiptAuditJob writes the lot-level audit trail of a committed receipt.
type ReceiptAuditJob struct {
	Audit   AuditRecorder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReceiptAuditJob wires the receipt audit handler.
func NewReceiptAuditJob(audit AuditRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReceiptAuditJob {
	return &ReceiptAuditJob{Audit: audit, Logger: logger, Metrics: metrics}
}

// Handle processes TaskProcurementReceiptAudit.
func (j *ReceiptAuditJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Audit == nil {
		return errors.New("receipt audit: handler not configured")
	}
	var evt procurement.ReceiptPostedEvent
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return asynq.SkipRetry
	}
	if evt.OrgID == 0 || evt.PurchaseOrderID == 0 {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskProcurementReceiptAudit)
	lots := make([]map[string]any, 0, len(evt.Lines))
	for _, line := range evt.Lines {
		lots = append(lots, map[string]any{
			"line_id":    line.LineID,
			"product_id": line.ProductID,
			"lot_id":     line.LotID,
			"lot_number": line.LotNumber,
			"quantity":   line.Quantity.String(),
		})
	}
	err := j.Audit.Record(ctx, shared.AuditLog{
		OrgID:    evt.OrgID,
		Action:   "PO_RECEIPT_POSTED",
		Entity:   "purchase_order",
		EntityID: evt.PurchaseOrderID,
		Meta: map[string]any{
			"number":      evt.Number,
			"supplier_id": evt.SupplierID,
			"total":       evt.Total.String(),
			"lots":        lots,
		},
		At: evt.ReceivedAt,
	})
	if err != nil {
		loggerOrDefault(j.Logger).Error("receipt audit", slog.Int64("purchase_order_id", evt.PurchaseOrderID), slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddProcessed(TaskProcurementReceiptAudit, int64(len(evt.Lines)))
	return tracker.End(nil)
}
