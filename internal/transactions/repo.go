package transactions

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/schoolpay-backend/pkg/pagination"
)

const (
	mergedStatusExpr   = "LOWER(COALESCE(s.status, CAST(o.status AS TEXT)))"
	reportedStatusExpr = "LOWER(COALESCE(s.status, 'pending'))"
	orderAmountExpr    = "COALESCE(NULLIF(s.order_amount, 0), o.amount)"
	paymentTimeExpr    = "COALESCE(s.payment_time, o.created_at)"
)

var sortExpressions = map[string]string{
	SortCreatedAt:         "o.created_at",
	SortPaymentTime:       paymentTimeExpr,
	SortStatus:            mergedStatusExpr,
	SortTransactionAmount: "COALESCE(s.transaction_amount, 0)",
	SortOrderAmount:       orderAmountExpr,
}

const mergedColumns = `o.custom_order_id AS custom_order_id,
	o.collect_request_id AS collect_request_id,
	o.school_id AS school_id,
	o.gateway_name AS gateway_name,
	o.student_name AS student_name,
	o.student_id AS student_id,
	o.student_email AS student_email,
	o.amount AS amount,
	o.status AS order_status,
	o.created_at AS created_at,
	s.id AS status_id,
	s.order_amount AS status_order_amount,
	s.transaction_amount AS status_transaction_amount,
	s.status AS status_value,
	s.payment_mode AS payment_mode,
	s.bank_reference AS bank_reference,
	s.payment_message AS payment_message,
	s.error_message AS error_message,
	s.payment_time AS payment_time`

// MergedRow is one orders row LEFT JOINed to its order_statuses row. Every
// status column is nullable because the shadow row may be missing.
type MergedRow struct {
	CustomOrderID           string              `gorm:"column:custom_order_id"`
	CollectRequestID        *string             `gorm:"column:collect_request_id"`
	SchoolID                string              `gorm:"column:school_id"`
	GatewayName             string              `gorm:"column:gateway_name"`
	StudentName             string              `gorm:"column:student_name"`
	StudentID               string              `gorm:"column:student_id"`
	StudentEmail            string              `gorm:"column:student_email"`
	Amount                  decimal.Decimal     `gorm:"column:amount"`
	OrderStatus             string              `gorm:"column:order_status"`
	CreatedAt               time.Time           `gorm:"column:created_at"`
	StatusID                *string             `gorm:"column:status_id"`
	StatusOrderAmount       decimal.NullDecimal `gorm:"column:status_order_amount"`
	StatusTransactionAmount decimal.NullDecimal `gorm:"column:status_transaction_amount"`
	StatusValue             *string             `gorm:"column:status_value"`
	PaymentMode             *string             `gorm:"column:payment_mode"`
	BankReference           *string             `gorm:"column:bank_reference"`
	PaymentMessage          *string             `gorm:"column:payment_message"`
	ErrorMessage            *string             `gorm:"column:error_message"`
	PaymentTime             *time.Time          `gorm:"column:payment_time"`
}

type StatusBucket struct {
	Status      string          `gorm:"column:status"`
	Count       int64           `gorm:"column:count"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount"`
}

type MethodBucket struct {
	Method      *string         `gorm:"column:method"`
	Count       int64           `gorm:"column:count"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount"`
}

type TrendBucket struct {
	Month       string          `gorm:"column:month"`
	Status      string          `gorm:"column:status"`
	Count       int64           `gorm:"column:count"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount"`
}

type GatewayBucket struct {
	Gateway          string          `gorm:"column:gateway"`
	Total            int64           `gorm:"column:total"`
	Successful       int64           `gorm:"column:successful"`
	Failed           int64           `gorm:"column:failed"`
	Pending          int64           `gorm:"column:pending"`
	TotalAmount      decimal.Decimal `gorm:"column:total_amount"`
	SuccessfulAmount decimal.Decimal `gorm:"column:successful_amount"`
}

type SchoolBucket struct {
	SchoolID         string          `gorm:"column:school_id"`
	Total            int64           `gorm:"column:total"`
	Successful       int64           `gorm:"column:successful"`
	TotalAmount      decimal.Decimal `gorm:"column:total_amount"`
	SuccessfulAmount decimal.Decimal `gorm:"column:successful_amount"`
}

// Repository is the read model joining orders to their status rows.
type Repository interface {
	List(ctx context.Context, query ListQuery) ([]MergedRow, int64, error)
	Recent(ctx context.Context, schoolID string, limit int) ([]MergedRow, error)
	StatusBreakdown(ctx context.Context, query StatsQuery) ([]StatusBucket, error)
	PaymentMethods(ctx context.Context, query StatsQuery) ([]MethodBucket, error)
	MonthlyTrends(ctx context.Context, query StatsQuery, since time.Time) ([]TrendBucket, error)
	GatewayPerformance(ctx context.Context, query StatsQuery) ([]GatewayBucket, error)
	TopSchools(ctx context.Context, sortBy string, limit int) ([]SchoolBucket, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("orders AS o").
		Joins("LEFT JOIN order_statuses AS s ON s.collect_id = o.custom_order_id")
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]MergedRow, int64, error) {
	filtered := func() *gorm.DB {
		tx := r.joined(ctx)
		if id := strings.TrimSpace(query.SchoolID); id != "" {
			tx = tx.Where("o.school_id = ?", id)
		}
		if status := strings.TrimSpace(query.Status); status != "" {
			tx = tx.Where(mergedStatusExpr+" = ?", strings.ToLower(status))
		}
		return tx
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, nil
	}

	expr, ok := sortExpressions[query.Sort]
	if !ok {
		expr = sortExpressions[SortCreatedAt]
	}
	direction := " DESC"
	if query.Asc {
		direction = " ASC"
	}

	var rows []MergedRow
	err := filtered().
		Select(mergedColumns).
		Order(expr + direction).
		Order("o.custom_order_id" + direction).
		Offset(pagination.Params{Page: query.Page, Limit: query.Limit}.Offset()).
		Limit(pagination.NormalizeLimit(query.Limit)).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) Recent(ctx context.Context, schoolID string, limit int) ([]MergedRow, error) {
	tx := r.joined(ctx)
	if id := strings.TrimSpace(schoolID); id != "" {
		tx = tx.Where("o.school_id = ?", id)
	}
	var rows []MergedRow
	err := tx.Select(mergedColumns).
		Order(paymentTimeExpr + " DESC").
		Order("o.custom_order_id DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *repository) StatusBreakdown(ctx context.Context, query StatsQuery) ([]StatusBucket, error) {
	var out []StatusBucket
	err := r.scoped(ctx, query).
		Select(reportedStatusExpr + " AS status, COUNT(*) AS count, SUM(" + orderAmountExpr + ") AS total_amount").
		Group("1").
		Scan(&out).Error
	return out, err
}

func (r *repository) PaymentMethods(ctx context.Context, query StatsQuery) ([]MethodBucket, error) {
	var out []MethodBucket
	err := r.scoped(ctx, query).
		Where("LOWER(s.status) = ?", "success").
		Select("s.payment_mode AS method, COUNT(*) AS count, SUM(s.transaction_amount) AS total_amount").
		Group("s.payment_mode").
		Order("count DESC").
		Scan(&out).Error
	return out, err
}

func (r *repository) MonthlyTrends(ctx context.Context, query StatsQuery, since time.Time) ([]TrendBucket, error) {
	month := "strftime('%Y-%m', o.created_at)"
	if r.db.Dialector.Name() == "postgres" {
		month = "to_char(o.created_at, 'YYYY-MM')"
	}
	var out []TrendBucket
	err := r.scoped(ctx, query).
		Where("o.created_at >= ?", since).
		Select(month + " AS month, " + reportedStatusExpr + " AS status, COUNT(*) AS count, SUM(" + orderAmountExpr + ") AS total_amount").
		Group("1, 2").
		Order("1 ASC, 2 ASC").
		Scan(&out).Error
	return out, err
}

func (r *repository) GatewayPerformance(ctx context.Context, query StatsQuery) ([]GatewayBucket, error) {
	success := reportedStatusExpr + " = 'success'"
	failed := reportedStatusExpr + " IN ('failed', 'failure')"
	pending := reportedStatusExpr + " IN ('pending', 'processing')"

	var out []GatewayBucket
	err := r.scoped(ctx, query).
		Select(`o.gateway_name AS gateway,
			COUNT(*) AS total,
			SUM(CASE WHEN ` + success + ` THEN 1 ELSE 0 END) AS successful,
			SUM(CASE WHEN ` + failed + ` THEN 1 ELSE 0 END) AS failed,
			SUM(CASE WHEN ` + pending + ` THEN 1 ELSE 0 END) AS pending,
			SUM(` + orderAmountExpr + `) AS total_amount,
			SUM(CASE WHEN ` + success + ` THEN ` + orderAmountExpr + ` ELSE 0 END) AS successful_amount`).
		Group("o.gateway_name").
		Order("total DESC").
		Scan(&out).Error
	return out, err
}

func (r *repository) TopSchools(ctx context.Context, sortBy string, limit int) ([]SchoolBucket, error) {
	success := reportedStatusExpr + " = 'success'"
	order := "total DESC"
	if sortBy == TopSchoolsByAmount {
		order = "total_amount DESC"
	}

	var out []SchoolBucket
	err := r.joined(ctx).
		Select(`o.school_id AS school_id,
			COUNT(*) AS total,
			SUM(CASE WHEN ` + success + ` THEN 1 ELSE 0 END) AS successful,
			SUM(` + orderAmountExpr + `) AS total_amount,
			SUM(CASE WHEN ` + success + ` THEN ` + orderAmountExpr + ` ELSE 0 END) AS successful_amount`).
		Group("o.school_id").
		Order(order).
		Order("o.school_id ASC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

func (r *repository) scoped(ctx context.Context, query StatsQuery) *gorm.DB {
	tx := r.joined(ctx)
	if id := strings.TrimSpace(query.SchoolID); id != "" {
		tx = tx.Where("o.school_id = ?", id)
	}
	if query.From != nil {
		tx = tx.Where("o.created_at >= ?", query.From.UTC())
	}
	if query.To != nil {
		tx = tx.Where("o.created_at <= ?", query.To.UTC())
	}
	return tx
}
