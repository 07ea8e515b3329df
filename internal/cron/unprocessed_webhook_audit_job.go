package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/schoolpay-backend/pkg/db/models"
	"github.com/angelmondragon/schoolpay-backend/pkg/logger"
	"github.com/angelmondragon/schoolpay-backend/pkg/metrics"
)

const (
	defaultUnprocessedGrace  = 15 * time.Minute
	defaultUnprocessedSample = 20
)

type unprocessedReader interface {
	FindUnprocessedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.WebhookLog, int64, error)
}

type UnprocessedWebhookAuditJobParams struct {
	Logger  *logger.Logger
	Logs    unprocessedReader
	Metrics *metrics.JobMetrics
	Grace   time.Duration
	Sample  int
}

// NewUnprocessedWebhookAuditJob reports gateway deliveries whose processing
// failed or never finished. Webhook logs are append-only, so the job never
// touches rows; the gauge and sample drive manual remediation.
func NewUnprocessedWebhookAuditJob(params UnprocessedWebhookAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Logs == nil {
		return nil, fmt.Errorf("webhook log repository required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultUnprocessedGrace
	}
	sample := params.Sample
	if sample <= 0 {
		sample = defaultUnprocessedSample
	}
	return &unprocessedWebhookAuditJob{
		logg:    params.Logger,
		logs:    params.Logs,
		metrics: params.Metrics,
		grace:   grace,
		sample:  sample,
		now:     time.Now,
	}, nil
}

type unprocessedWebhookAuditJob struct {
	logg    *logger.Logger
	logs    unprocessedReader
	metrics *metrics.JobMetrics
	grace   time.Duration
	sample  int
	now     func() time.Time
}

func (j *unprocessedWebhookAuditJob) Name() string { return "unprocessed-webhook-audit" }

func (j *unprocessedWebhookAuditJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)
	rows, total, err := j.logs.FindUnprocessedBefore(ctx, cutoff, j.sample)
	if err != nil {
		return fmt.Errorf("unprocessed webhook audit: %w", err)
	}
	j.metrics.SetUnprocessed(total)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":            cutoff,
		"unprocessed_total": total,
	})
	if total == 0 {
		j.logg.Info(logCtx, "no unprocessed webhook deliveries")
		return nil
	}

	samples := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, map[string]any{
			"log_id":   row.ID.String(),
			"order_id": row.OrderID,
			"error":    row.ErrorMessage,
		})
	}
	j.logg.Warn(j.logg.WithField(logCtx, "deliveries", samples), "webhook deliveries need remediation")
	return nil
}
