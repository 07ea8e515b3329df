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
	defaultStaleAfter  = 2 * time.Hour
	defaultStaleSample = 20
)

type unsettledReader interface {
	FindUnsettledBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.OrderStatus, int64, error)
}

type StalePaymentAuditJobParams struct {
	Logger     *logger.Logger
	Statuses   unsettledReader
	Metrics    *metrics.JobMetrics
	StaleAfter time.Duration
	Sample     int
}

// NewStalePaymentAuditJob reports payments still pending or processing long
// after creation, usually because the gateway never delivered a webhook. It
// only reads; operators use the status-check endpoint to resolve them.
func NewStalePaymentAuditJob(params StalePaymentAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Statuses == nil {
		return nil, fmt.Errorf("order status repository required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	sample := params.Sample
	if sample <= 0 {
		sample = defaultStaleSample
	}
	return &stalePaymentAuditJob{
		logg:       params.Logger,
		statuses:   params.Statuses,
		metrics:    params.Metrics,
		staleAfter: staleAfter,
		sample:     sample,
		now:        time.Now,
	}, nil
}

type stalePaymentAuditJob struct {
	logg       *logger.Logger
	statuses   unsettledReader
	metrics    *metrics.JobMetrics
	staleAfter time.Duration
	sample     int
	now        func() time.Time
}

func (j *stalePaymentAuditJob) Name() string { return "stale-payment-audit" }

func (j *stalePaymentAuditJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.staleAfter)
	rows, total, err := j.statuses.FindUnsettledBefore(ctx, cutoff, j.sample)
	if err != nil {
		return fmt.Errorf("stale payment audit: %w", err)
	}
	j.metrics.SetUnsettled(total)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":          cutoff,
		"unsettled_total": total,
	})
	if total == 0 {
		j.logg.Info(logCtx, "no stale payments")
		return nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.CollectID)
	}
	j.logg.Warn(j.logg.WithField(logCtx, "custom_order_ids", ids), "stale payments awaiting gateway confirmation")
	return nil
}
