package orderstatus

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/schoolpay-backend/pkg/db/models"
	"github.com/angelmondragon/schoolpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/schoolpay-backend/pkg/errors"
)

// reconciledColumns are overwritten on every upsert. id, collect_id and
// created_at keep the values of the first insert.
var reconciledColumns = []string{
	"collect_request_id",
	"order_amount",
	"transaction_amount",
	"payment_mode",
	"payment_details",
	"bank_reference",
	"payment_message",
	"error_message",
	"status",
	"gateway_status",
	"payment_time",
	"gateway",
	"updated_at",
}

// Repository persists the transaction shadow of each order.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, status *models.OrderStatus) error
	Upsert(ctx context.Context, status *models.OrderStatus) error
	FindByCollectID(ctx context.Context, collectID string) (*models.OrderStatus, error)
	FindByCollectIDs(ctx context.Context, collectIDs []string) (map[string]models.OrderStatus, error)
	FindUnsettledBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.OrderStatus, int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the seed row written right after an order is accepted.
func (r *repository) Create(ctx context.Context, status *models.OrderStatus) error {
	if err := prepare(status); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(status).Error
}

// Upsert writes status in a single INSERT ... ON CONFLICT (collect_id) DO
// UPDATE statement. Concurrent writers for the same collect_id serialize on
// the unique index and the last one wins.
func (r *repository) Upsert(ctx context.Context, status *models.OrderStatus) error {
	if err := prepare(status); err != nil {
		return err
	}
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collect_id"}},
			DoUpdates: clause.AssignmentColumns(reconciledColumns),
		}).
		Create(status).Error
}

func (r *repository) FindByCollectID(ctx context.Context, collectID string) (*models.OrderStatus, error) {
	var status models.OrderStatus
	err := r.db.WithContext(ctx).Where("collect_id = ?", collectID).First(&status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &status, nil
}

// FindByCollectIDs loads the rows for a page of orders, keyed by collect_id.
func (r *repository) FindByCollectIDs(ctx context.Context, collectIDs []string) (map[string]models.OrderStatus, error) {
	out := make(map[string]models.OrderStatus, len(collectIDs))
	if len(collectIDs) == 0 {
		return out, nil
	}
	var rows []models.OrderStatus
	if err := r.db.WithContext(ctx).Where("collect_id IN ?", collectIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.CollectID] = row
	}
	return out, nil
}

// FindUnsettledBefore returns pending or processing rows last touched before
// cutoff, oldest first, together with the total number of such rows.
func (r *repository) FindUnsettledBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.OrderStatus, int64, error) {
	unsettled := []enums.TransactionStatus{enums.TransactionStatusPending, enums.TransactionStatusProcessing}
	base := r.db.WithContext(ctx).
		Model(&models.OrderStatus{}).
		Where("status IN ? AND updated_at < ?", unsettled, cutoff)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 || limit <= 0 {
		return nil, total, nil
	}

	var rows []models.OrderStatus
	if err := base.Session(&gorm.Session{}).Order("updated_at ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func prepare(status *models.OrderStatus) error {
	if status == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order status is required")
	}
	status.CollectID = strings.TrimSpace(status.CollectID)
	if status.CollectID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "collect_id is required")
	}
	parsed, err := enums.ParseTransactionStatus(string(status.Status))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction status")
	}
	status.Status = parsed
	if status.ID == uuid.Nil {
		status.ID = uuid.New()
	}
	if strings.TrimSpace(status.Gateway) == "" {
		status.Gateway = DefaultGateway
	}
	return nil
}

// DefaultGateway is recorded when a delivery names no gateway.
const DefaultGateway = "Edviron"
