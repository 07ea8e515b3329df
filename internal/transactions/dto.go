package transactions

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/schoolpay-backend/pkg/types"
)

// PaymentModeUnknown is reported when no status row names a payment mode.
const PaymentModeUnknown = "N/A"

type StudentView struct {
	Name  string `json:"name"`
	ID    string `json:"id"`
	Email string `json:"email"`
}

// TransactionView is an Order merged with its OrderStatus row.
type TransactionView struct {
	CustomOrderID     string          `json:"custom_order_id"`
	CollectRequestID  string          `json:"collect_request_id,omitempty"`
	SchoolID          string          `json:"school_id"`
	Gateway           string          `json:"gateway"`
	Student           StudentView     `json:"student_info"`
	OrderAmount       decimal.Decimal `json:"order_amount"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	Status            string          `json:"status"`
	PaymentMode       string          `json:"payment_mode"`
	BankReference     string          `json:"bank_reference"`
	PaymentTime       time.Time       `json:"payment_time"`
	CreatedAt         time.Time       `json:"created_at"`
}

// StatusView is the single-order read model.
type StatusView struct {
	TransactionView
	OrderStatus    string `json:"order_status"`
	PaymentMessage string `json:"payment_message"`
	ErrorMessage   string `json:"error_message"`
	GatewayStatus  string `json:"gateway_status,omitempty"`
	HasStatusRow   bool   `json:"has_status_record"`
}

// Sort fields accepted by List.
const (
	SortCreatedAt         = "created_at"
	SortPaymentTime       = "payment_time"
	SortStatus            = "status"
	SortTransactionAmount = "transaction_amount"
	SortOrderAmount       = "order_amount"
)

// ListQuery filters and pages the merged transaction list.
type ListQuery struct {
	Page     int
	Limit    int
	Sort     string
	Asc      bool
	Status   string
	SchoolID string
}

type ListResult struct {
	Transactions []TransactionView `json:"transactions"`
	Pagination   types.Pagination  `json:"pagination"`
}

// StatsQuery scopes dashboard aggregates. From/To bound Order creation time.
type StatsQuery struct {
	SchoolID string
	From     *time.Time
	To       *time.Time
}

type Overview struct {
	TotalTransactions      int64           `json:"total_transactions"`
	SuccessfulTransactions int64           `json:"successful_transactions"`
	PendingTransactions    int64           `json:"pending_transactions"`
	FailedTransactions     int64           `json:"failed_transactions"`
	CancelledTransactions  int64           `json:"cancelled_transactions"`
	TotalAmount            decimal.Decimal `json:"total_amount"`
	SuccessfulAmount       decimal.Decimal `json:"successful_amount"`
	AverageAmount          decimal.Decimal `json:"average_amount"`
	SuccessRate            decimal.Decimal `json:"success_rate"`
}

type PaymentMethodStat struct {
	Method      string          `json:"method"`
	Count       int64           `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type MonthlyTrend struct {
	Month       string          `json:"month"`
	Status      string          `json:"status"`
	Count       int64           `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type StatsFilters struct {
	SchoolID string     `json:"school_id,omitempty"`
	From     *time.Time `json:"date_from,omitempty"`
	To       *time.Time `json:"date_to,omitempty"`
}

type Stats struct {
	Overview       Overview            `json:"overview"`
	PaymentMethods []PaymentMethodStat `json:"payment_methods"`
	MonthlyTrends  []MonthlyTrend      `json:"monthly_trends"`
	Filters        StatsFilters        `json:"filters"`
}

type GatewayPerformance struct {
	Gateway                string          `json:"gateway"`
	TotalTransactions      int64           `json:"total_transactions"`
	SuccessfulTransactions int64           `json:"successful_transactions"`
	FailedTransactions     int64           `json:"failed_transactions"`
	PendingTransactions    int64           `json:"pending_transactions"`
	TotalAmount            decimal.Decimal `json:"total_amount"`
	SuccessfulAmount       decimal.Decimal `json:"successful_amount"`
	SuccessRate            decimal.Decimal `json:"success_rate"`
	FailureRate            decimal.Decimal `json:"failure_rate"`
}

const (
	TopSchoolsByTransactions = "transactions"
	TopSchoolsByAmount       = "amount"
)

type TopSchoolsQuery struct {
	Limit  int
	SortBy string
}

type SchoolSummary struct {
	SchoolID               string          `json:"school_id"`
	TotalTransactions      int64           `json:"total_transactions"`
	SuccessfulTransactions int64           `json:"successful_transactions"`
	TotalAmount            decimal.Decimal `json:"total_amount"`
	SuccessfulAmount       decimal.Decimal `json:"successful_amount"`
	SuccessRate            decimal.Decimal `json:"success_rate"`
}

type TopSchools struct {
	Schools []SchoolSummary `json:"schools"`
	SortBy  string          `json:"sort_by"`
	Limit   int             `json:"limit"`
}
