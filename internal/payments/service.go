package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/schoolpay-backend/internal/orders"
	"github.com/angelmondragon/schoolpay-backend/internal/orderstatus"
	"github.com/angelmondragon/schoolpay-backend/pkg/db/models"
	"github.com/angelmondragon/schoolpay-backend/pkg/edviron"
	"github.com/angelmondragon/schoolpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/schoolpay-backend/pkg/errors"
	"github.com/angelmondragon/schoolpay-backend/pkg/ids"
	"github.com/angelmondragon/schoolpay-backend/pkg/logger"
	"github.com/angelmondragon/schoolpay-backend/pkg/metrics"
)

const defaultGatewayName = "Edviron"

// Gateway is the subset of the Edviron client the orchestrator needs.
type Gateway interface {
	Configured() error
	CreateCollectRequest(ctx context.Context, params edviron.CreateCollectRequestParams) (*edviron.CollectRequest, error)
	CheckStatus(ctx context.Context, schoolID, collectRequestID string) (*edviron.StatusPayload, error)
}

// Service creates payments and proxies gateway status polls.
type Service interface {
	CreatePayment(ctx context.Context, input CreatePaymentInput) (*CreatePaymentResult, error)
	CheckStatus(ctx context.Context, schoolID, collectRequestID string) (*StatusCheckResult, error)
}

// ServiceParams groups dependencies for the payment service.
type ServiceParams struct {
	Gateway     Gateway
	Orders      orders.Repository
	Statuses    orderstatus.Repository
	Logger      *logger.Logger
	Metrics     *metrics.PaymentMetrics
	GatewayName string
	NewOrderID  func() string
	Now         func() time.Time
}

type service struct {
	gateway     Gateway
	orders      orders.Repository
	statuses    orderstatus.Repository
	logg        *logger.Logger
	metrics     *metrics.PaymentMetrics
	gatewayName string
	newOrderID  func() string
	now         func() time.Time
	validate    *validator.Validate
}

func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if params.Orders == nil {
		return nil, errors.New("orders repository is required")
	}
	if params.Statuses == nil {
		return nil, errors.New("order status repository is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	svc := &service{
		gateway:     params.Gateway,
		orders:      params.Orders,
		statuses:    params.Statuses,
		logg:        params.Logger,
		metrics:     params.Metrics,
		gatewayName: strings.TrimSpace(params.GatewayName),
		newOrderID:  params.NewOrderID,
		now:         params.Now,
		validate:    validator.New(),
	}
	if svc.gatewayName == "" {
		svc.gatewayName = defaultGatewayName
	}
	if svc.newOrderID == nil {
		svc.newOrderID = ids.NewOrderID
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// CreatePayment registers the payment with the gateway and, only once the
// gateway accepted it, stores the order and its seed status row.
func (s *service) CreatePayment(ctx context.Context, input CreatePaymentInput) (*CreatePaymentResult, error) {
	amount, err := s.validateCreate(&input)
	if err != nil {
		return nil, err
	}
	if err := s.gateway.Configured(); err != nil {
		return nil, err
	}

	gatewayName := strings.TrimSpace(input.GatewayName)
	if gatewayName == "" {
		gatewayName = s.gatewayName
	}

	customOrderID := s.newOrderID()
	ctx = s.logg.WithOrderID(ctx, customOrderID)
	ctx = s.logg.WithSchoolID(ctx, input.SchoolID)

	collect, err := s.gateway.CreateCollectRequest(ctx, edviron.CreateCollectRequestParams{
		SchoolID:    input.SchoolID,
		Amount:      amount,
		CallbackURL: input.CallbackURL,
	})
	if err != nil {
		return nil, err
	}

	collectRequestID := collect.CollectRequestID
	order := &models.Order{
		SchoolID:  input.SchoolID,
		TrusteeID: input.TrusteeID,
		Student: models.StudentInfo{
			Name:      input.Student.Name,
			StudentID: input.Student.ID,
			Email:     input.Student.Email,
		},
		GatewayName:      gatewayName,
		CustomOrderID:    customOrderID,
		CollectRequestID: &collectRequestID,
		Amount:           amount,
		CallbackURL:      input.CallbackURL,
		Status:           enums.OrderStatusProcessing,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		ctx = s.logg.WithField(ctx, "collect_request_id", collectRequestID)
		s.logg.Error(ctx, "payments.create.order_persist_failed", err)
		return nil, err
	}

	now := s.now().UTC()
	seed := &models.OrderStatus{
		CollectID:         customOrderID,
		CollectRequestID:  &collectRequestID,
		OrderAmount:       amount,
		TransactionAmount: decimal.Zero,
		Status:            enums.TransactionStatusProcessing,
		Gateway:           gatewayName,
		PaymentTime:       &now,
	}
	if err := s.statuses.Create(ctx, seed); err != nil {
		// The order row is kept; status reads fall back to it and the next
		// webhook delivery creates the missing status row.
		ctx = s.logg.WithFields(ctx, map[string]any{
			"collect_request_id": collectRequestID,
			"order_id":           order.ID.String(),
		})
		s.logg.Error(ctx, "payments.create.status_seed_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to record payment status").
			WithDetails(map[string]any{
				"custom_order_id":    customOrderID,
				"collect_request_id": collectRequestID,
			})
	}

	s.metrics.IncPaymentCreated(gatewayName)
	s.logg.Info(ctx, "payments.create.ok")

	return &CreatePaymentResult{
		CollectRequestID: collectRequestID,
		PaymentURL:       collect.PaymentURL,
		CustomOrderID:    customOrderID,
		OrderID:          order.ID,
		Sign:             collect.Sign,
		Amount:           amount,
		StudentName:      input.Student.Name,
	}, nil
}

func (s *service) CheckStatus(ctx context.Context, schoolID, collectRequestID string) (*StatusCheckResult, error) {
	schoolID = strings.TrimSpace(schoolID)
	collectRequestID = strings.TrimSpace(collectRequestID)
	missing := map[string]string{}
	if schoolID == "" {
		missing["school_id"] = "required"
	}
	if collectRequestID == "" {
		missing["collect_request_id"] = "required"
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "school_id and collect_request_id are required").
			WithDetails(missing)
	}

	payload, err := s.gateway.CheckStatus(ctx, schoolID, collectRequestID)
	if err != nil {
		return nil, err
	}

	result := &StatusCheckResult{
		CollectRequestID: collectRequestID,
		Status:           string(enums.NormalizeTransactionStatus(payload.Status.String())),
		Amount:           payload.Amount.OrZero(),
		Details:          payload.Details,
		JWT:              payload.JWT,
		Gateway:          payload.Raw,
	}

	order, err := s.orders.FindByCollectRequestID(ctx, collectRequestID)
	if err != nil {
		warnCtx := s.logg.WithField(ctx, "error", err.Error())
		s.logg.Warn(warnCtx, "payments.check_status.order_lookup_failed")
	} else if order != nil {
		result.CustomOrderID = order.CustomOrderID
	}
	return result, nil
}

func (s *service) validateCreate(input *CreatePaymentInput) (decimal.Decimal, error) {
	input.SchoolID = strings.TrimSpace(input.SchoolID)
	input.CallbackURL = strings.TrimSpace(input.CallbackURL)
	input.Student.Name = strings.TrimSpace(input.Student.Name)
	input.Student.ID = strings.TrimSpace(input.Student.ID)
	input.Student.Email = strings.TrimSpace(input.Student.Email)

	fields := map[string]string{}
	if err := s.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment request")
		}
		for _, fe := range verrs {
			fields[fieldName(fe)] = fe.Tag()
		}
	}
	if !input.Amount.Valid {
		fields["amount"] = "required"
	} else if !input.Amount.Value.IsPositive() {
		fields["amount"] = "gt"
	}

	if len(fields) > 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment request").
			WithDetails(fields)
	}
	return input.Amount.Value, nil
}

func fieldName(fe validator.FieldError) string {
	switch fe.StructNamespace() {
	case "CreatePaymentInput.SchoolID":
		return "school_id"
	case "CreatePaymentInput.CallbackURL":
		return "callback_url"
	case "CreatePaymentInput.Student.Name":
		return "student_info.name"
	case "CreatePaymentInput.Student.ID":
		return "student_info.id"
	case "CreatePaymentInput.Student.Email":
		return "student_info.email"
	default:
		return strings.ToLower(fe.Field())
	}
}
