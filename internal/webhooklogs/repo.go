package webhooklogs

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/schoolpay-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/schoolpay-backend/pkg/errors"
)

// Result is the terminal state written back onto a delivery's log row.
type Result struct {
	Processed    bool
	ErrorMessage string
	ProcessedAt  time.Time
}

// ListQuery filters the audit trail. Zero values mean no filter.
type ListQuery struct {
	OrderID     string
	Unprocessed bool
	Limit       int
}

const (
	defaultListLimit = 50
	MaxListLimit     = 200
)

// Repository appends and finalizes webhook delivery records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, log *models.WebhookLog) error
	MarkResult(ctx context.Context, id uuid.UUID, result Result) error
	List(ctx context.Context, query ListQuery) ([]models.WebhookLog, error)
	FindUnprocessedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.WebhookLog, int64, error)
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

func (r *repository) Create(ctx context.Context, log *models.WebhookLog) error {
	if log == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook log is required")
	}
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if strings.TrimSpace(log.OrderID) == "" {
		log.OrderID = models.UnknownOrderID
	}
	if log.ReceivedAt.IsZero() {
		log.ReceivedAt = time.Now().UTC()
	}
	if len(log.Payload) == 0 {
		log.Payload = []byte(`{}`)
	}
	return r.db.WithContext(ctx).Create(log).Error
}

// MarkResult records how processing of a delivery ended.
func (r *repository) MarkResult(ctx context.Context, id uuid.UUID, result Result) error {
	processedAt := result.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).
		Model(&models.WebhookLog{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"processed":     result.Processed,
			"error_message": result.ErrorMessage,
			"processed_at":  processedAt,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "webhook log not found")
	}
	return nil
}

// List returns the most recent deliveries first.
func (r *repository) List(ctx context.Context, query ListQuery) ([]models.WebhookLog, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	tx := r.db.WithContext(ctx).Model(&models.WebhookLog{})
	if id := strings.TrimSpace(query.OrderID); id != "" {
		tx = tx.Where("order_id = ?", id)
	}
	if query.Unprocessed {
		tx = tx.Where("processed = ?", false)
	}

	var logs []models.WebhookLog
	if err := tx.Order("received_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// FindUnprocessedBefore returns deliveries that never finished processing and
// were received before cutoff, oldest first, plus their total count.
func (r *repository) FindUnprocessedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.WebhookLog, int64, error) {
	base := r.db.WithContext(ctx).
		Model(&models.WebhookLog{}).
		Where("processed = ? AND received_at < ?", false, cutoff)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 || limit <= 0 {
		return nil, total, nil
	}

	var logs []models.WebhookLog
	if err := base.Session(&gorm.Session{}).Order("received_at ASC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
