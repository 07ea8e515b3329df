package edvironwebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/datatypes"

	"github.com/angelmondragon/schoolpay-backend/internal/orders"
	"github.com/angelmondragon/schoolpay-backend/internal/orderstatus"
	"github.com/angelmondragon/schoolpay-backend/internal/webhooklogs"
	"github.com/angelmondragon/schoolpay-backend/pkg/db/models"
	"github.com/angelmondragon/schoolpay-backend/pkg/enums"
	"github.com/angelmondragon/schoolpay-backend/pkg/logger"
	"github.com/angelmondragon/schoolpay-backend/pkg/metrics"
)

// Acknowledgement messages.
const (
	MessageProcessed      = "Webhook processed successfully"
	MessageMissingInfo    = "missing order_info"
	MessageOrderNotFound  = "order not found"
	MessageInternalFailed = "Webhook received but failed internally"
)

// Delivery outcomes, exported as metric labels.
const (
	OutcomeProcessed     = "processed"
	OutcomeInvalid       = "invalid"
	OutcomeOrderNotFound = "order_not_found"
	OutcomeFailed        = "failed"
)

// Outcome is what the HTTP layer acknowledges. The gateway always gets a
// 200; Success tells it whether reconciliation went through.
type Outcome struct {
	Success bool
	Message string
	Kind    string
	LogID   uuid.UUID
	Status  *ReconciledStatus
	Err     error
}

// ReconciledStatus is the status row written for the delivery.
type ReconciledStatus struct {
	CustomOrderID     string          `json:"custom_order_id"`
	CollectRequestID  string          `json:"collect_request_id,omitempty"`
	Status            string          `json:"status"`
	GatewayStatus     string          `json:"gateway_status,omitempty"`
	OrderStatus       string          `json:"order_status"`
	OrderAmount       decimal.Decimal `json:"order_amount"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	PaymentMode       string          `json:"payment_mode"`
	BankReference     string          `json:"bank_reference"`
	PaymentTime       time.Time       `json:"payment_time"`
	Gateway           string          `json:"gateway"`
}

// ReconcilerParams groups dependencies for the reconciler.
type ReconcilerParams struct {
	Orders   orders.Repository
	Statuses orderstatus.Repository
	Logs     webhooklogs.Repository
	Logger   *logger.Logger
	Metrics  *metrics.PaymentMetrics
	Now      func() time.Time
}

// Reconciler applies Edviron deliveries to orders and their status rows.
type Reconciler struct {
	orders   orders.Repository
	statuses orderstatus.Repository
	logs     webhooklogs.Repository
	logg     *logger.Logger
	metrics  *metrics.PaymentMetrics
	now      func() time.Time
}

func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Orders == nil {
		return nil, errors.New("orders repository is required")
	}
	if params.Statuses == nil {
		return nil, errors.New("order status repository is required")
	}
	if params.Logs == nil {
		return nil, errors.New("webhook log repository is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		orders:   params.Orders,
		statuses: params.Statuses,
		logs:     params.Logs,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      now,
	}, nil
}

// Handle processes one delivery. It never returns an error: every failure
// is recorded on the delivery's WebhookLog and reported in the Outcome.
func (r *Reconciler) Handle(ctx context.Context, body []byte) Outcome {
	payload, stored := decodeBody(body)
	receivedAt := r.now().UTC()

	claimedID := models.UnknownOrderID
	code := 0
	if payload != nil {
		code = payload.Status.Value
		if payload.OrderInfo != nil {
			if id := strings.TrimSpace(payload.OrderInfo.OrderID.String()); id != "" {
				claimedID = id
			}
		}
	}
	ctx = r.logg.WithOrderID(ctx, claimedID)

	entry := &models.WebhookLog{
		OrderID:    claimedID,
		Status:     code,
		Payload:    datatypes.JSON(stored),
		ReceivedAt: receivedAt,
	}
	logErr := r.logs.Create(ctx, entry)
	if logErr != nil {
		r.logg.Error(ctx, "webhook.edviron.log_write_failed", logErr)
	}

	out := r.process(ctx, payload)

	if out.Err == nil {
		if logErr == nil {
			r.markResult(ctx, entry.ID, webhooklogs.Result{Processed: true, ErrorMessage: out.logMessage()})
		} else {
			r.fallbackLog(ctx, claimedID, code, stored, true, out.logMessage(), logErr)
		}
		r.metrics.IncWebhook(out.Kind)
		if out.Kind == OutcomeProcessed {
			r.logg.Info(ctx, "webhook.edviron.processed")
		} else {
			r.logg.Warn(r.logg.WithField(ctx, "reason", out.Message), "webhook.edviron.rejected")
		}
		if logErr == nil {
			out.LogID = entry.ID
		}
		return out
	}

	r.logg.Error(ctx, "webhook.edviron.failed", out.Err)
	if logErr == nil {
		r.markResult(ctx, entry.ID, webhooklogs.Result{Processed: false, ErrorMessage: out.Err.Error()})
		out.LogID = entry.ID
	} else {
		r.fallbackLog(ctx, claimedID, code, stored, false, out.Err.Error(), logErr)
	}
	r.metrics.IncWebhook(OutcomeFailed)
	return out
}

// process runs validate, locate, upsert and coarse update. Panics are
// turned into failures.
func (r *Reconciler) process(ctx context.Context, payload *Payload) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			out = failed(fmt.Errorf("panic: %v", rec))
		}
	}()

	if payload == nil || payload.OrderInfo == nil || strings.TrimSpace(payload.OrderInfo.OrderID.String()) == "" {
		return Outcome{Message: MessageMissingInfo, Kind: OutcomeInvalid}
	}
	info := payload.OrderInfo
	customOrderID := strings.TrimSpace(info.OrderID.String())

	order, err := r.orders.FindByCustomOrderID(ctx, customOrderID)
	if err != nil {
		return failed(fmt.Errorf("find order: %w", err))
	}
	if order == nil {
		return Outcome{Message: MessageOrderNotFound, Kind: OutcomeOrderNotFound}
	}

	status := r.buildStatus(order, info)
	if _, err := enums.ParseTransactionStatus(status.GatewayStatus); err != nil {
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
			"gateway_status": status.GatewayStatus,
			"mapped_status":  string(status.Status),
		}), "webhook.edviron.unrecognized_status")
	}
	if err := r.statuses.Upsert(ctx, status); err != nil {
		return failed(fmt.Errorf("upsert order status: %w", err))
	}

	coarse := enums.CoarseOrderStatus(info.Status.String())
	if err := r.orders.UpdateStatus(ctx, order.CustomOrderID, coarse); err != nil {
		return failed(fmt.Errorf("update order status: %w", err))
	}

	view := &ReconciledStatus{
		CustomOrderID:     order.CustomOrderID,
		Status:            string(status.Status),
		GatewayStatus:     status.GatewayStatus,
		OrderStatus:       string(coarse),
		OrderAmount:       status.OrderAmount,
		TransactionAmount: status.TransactionAmount,
		PaymentMode:       status.PaymentMode,
		BankReference:     status.BankReference,
		Gateway:           status.Gateway,
	}
	if status.CollectRequestID != nil {
		view.CollectRequestID = *status.CollectRequestID
	}
	if status.PaymentTime != nil {
		view.PaymentTime = *status.PaymentTime
	}
	return Outcome{Success: true, Message: MessageProcessed, Kind: OutcomeProcessed, Status: view}
}

func (r *Reconciler) buildStatus(order *models.Order, info *OrderInfo) *models.OrderStatus {
	paymentTime := info.PaymentTime.OrNow(r.now).UTC()
	rawStatus := strings.TrimSpace(info.Status.String())
	gateway := strings.TrimSpace(info.Gateway.String())
	if gateway == "" {
		gateway = orderstatus.DefaultGateway
	}
	status := &models.OrderStatus{
		CollectID:         order.CustomOrderID,
		CollectRequestID:  order.CollectRequestID,
		OrderAmount:       order.Amount,
		TransactionAmount: info.TransactionAmount.OrZero(),
		PaymentMode:       info.PaymentMode.String(),
		BankReference:     info.BankReference.String(),
		PaymentMessage:    info.PaymentMessage.String(),
		ErrorMessage:      info.ErrorMessage.String(),
		Status:            enums.NormalizeTransactionStatus(rawStatus),
		GatewayStatus:     rawStatus,
		PaymentTime:       &paymentTime,
		Gateway:           gateway,
		UpdatedAt:         r.now().UTC(),
	}
	if details := info.Details(); details != nil {
		status.PaymentDetails = datatypes.JSON(details)
	}
	return status
}

func (r *Reconciler) markResult(ctx context.Context, id uuid.UUID, result webhooklogs.Result) {
	result.ProcessedAt = r.now().UTC()
	if err := r.logs.MarkResult(ctx, id, result); err != nil {
		r.logg.Error(ctx, "webhook.edviron.log_update_failed", err)
	}
}

// fallbackLog inserts a second, self-contained row when the initial write
// never landed.
func (r *Reconciler) fallbackLog(ctx context.Context, orderID string, code int, payload []byte, processed bool, message string, firstErr error) {
	now := r.now().UTC()
	entry := &models.WebhookLog{
		OrderID:      orderID,
		Status:       code,
		Payload:      datatypes.JSON(payload),
		Processed:    processed,
		ErrorMessage: message,
		ReceivedAt:   now,
	}
	if processed {
		entry.ProcessedAt = &now
	}
	if err := r.logs.Create(ctx, entry); err != nil {
		r.logg.Error(ctx, "webhook.edviron.fallback_log_failed", multierr.Combine(firstErr, err))
	}
}

func failed(err error) Outcome {
	return Outcome{Message: MessageInternalFailed, Kind: OutcomeFailed, Err: err}
}

// logMessage is the error text recorded for a handled, non-failed delivery.
func (o Outcome) logMessage() string {
	if o.Success {
		return ""
	}
	return o.Message
}
