package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/schoolpay-backend/pkg/db"
	"github.com/angelmondragon/schoolpay-backend/pkg/db/models"
	"github.com/angelmondragon/schoolpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/schoolpay-backend/pkg/errors"
)

// Repository persists Orders. Orders are looked up by their business key
// (custom_order_id) or by the gateway's collect_request_id.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByCustomOrderID(ctx context.Context, customOrderID string) (*models.Order, error)
	FindByCollectRequestID(ctx context.Context, collectRequestID string) (*models.Order, error)
	UpdateStatus(ctx context.Context, customOrderID string, status enums.OrderStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order. A collision on either unique key comes back as
// CodeDuplicateOrder naming the offending field.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = enums.OrderStatusPending
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			field := duplicateField(err)
			return pkgerrors.Wrap(pkgerrors.CodeDuplicateOrder, err, fmt.Sprintf("Duplicate %s", field)).
				WithDetails(map[string]any{"field": field})
		}
		return err
	}
	return nil
}

func (r *repository) FindByCustomOrderID(ctx context.Context, customOrderID string) (*models.Order, error) {
	return r.findOne(ctx, "custom_order_id = ?", customOrderID)
}

func (r *repository) FindByCollectRequestID(ctx context.Context, collectRequestID string) (*models.Order, error) {
	return r.findOne(ctx, "collect_request_id = ?", collectRequestID)
}

// UpdateStatus sets the coarse status. Updating a missing order is a no-op
// reported as CodeNotFound.
func (r *repository) UpdateStatus(ctx context.Context, customOrderID string, status enums.OrderStatus) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", status))
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("custom_order_id = ?", customOrderID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

func (r *repository) findOne(ctx context.Context, query string, arg any) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where(query, arg).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func duplicateField(err error) string {
	msg := err.Error()
	if pg := pkgerrors.PostgresDetails(err); pg.Constraint != "" {
		msg = pg.Constraint + " " + msg
	}
	switch {
	case strings.Contains(msg, "collect_request_id"):
		return "collect_request_id"
	case strings.Contains(msg, "custom_order_id"):
		return "custom_order_id"
	default:
		return "key"
	}
}
