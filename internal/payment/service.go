package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// ErrValidation is returned when a payment request is malformed.
var ErrValidation = errors.New("invalid payment request")

const (
	defaultDescription = "Payment"
	pendingMessage     = "Awaiting customer confirmation"
	failedReason       = "Payment failed"
)

// Pusher sends STK pushes; *Gateway is the production implementation.
type Pusher interface {
	Push(ctx context.Context, req PushRequest) (*PushResponse, error)
}

// Publisher is notified whenever a session reaches a terminal state. The
// update is the StatusResult a polling client would see.
type Publisher interface {
	Publish(checkoutID string, update any)
}

// InitiateInput is a cashier's request to charge a customer's phone.
type InitiateInput struct {
	Phone            string `json:"phone" form:"phone"`
	Amount           string `json:"amount" form:"amount"`
	CustomerName     string `json:"customer_name" form:"customer_name"`
	AccountReference string `json:"account_reference" form:"account_reference"`
	Description      string `json:"description" form:"description"`
}

// StatusResult is what a polling till sees for a checkout request.
type StatusResult struct {
	CheckoutRequestID string          `json:"checkout_request_id"`
	Found             bool            `json:"-"`
	Status            Status          `json:"status,omitempty"`
	ReceiptNumber     string          `json:"receipt_number,omitempty"`
	TransactionDate   *time.Time      `json:"transaction_date,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Reason            string          `json:"reason,omitempty"`
	Message           string          `json:"message,omitempty"`
}

// Service runs STK push payments: initiation, provider callbacks and status polling.
type Service struct {
	storage     Storage
	gateway     Pusher
	publisher   Publisher
	logger      *zap.Logger
	countryCode string
	now         func() time.Time
}

type Option func(*Service)

// WithPublisher registers a receiver for terminal session updates.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithCountryCode(code string) Option {
	return func(s *Service) {
		if code != "" {
			s.countryCode = code
		}
	}
}

func NewService(storage Storage, gateway Pusher, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	s := &Service{
		storage:     storage,
		gateway:     gateway,
		logger:      logger,
		countryCode: "254",
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initiate asks the provider to prompt the customer's phone and records a
// Pending session once the provider accepts. Nothing is stored otherwise.
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (*Session, error) {
	phone, err := NormalizePhone(in.Phone, s.countryCode)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	if err != nil || !amount.IsPositive() || !amount.IsInteger() {
		return nil, fmt.Errorf("%w: amount must be a positive whole number", ErrValidation)
	}

	reference := strings.TrimSpace(in.AccountReference)
	if reference == "" {
		reference = "ORDER" + strconv.FormatInt(s.now().Unix(), 10)
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = defaultDescription
	}

	resp, err := s.gateway.Push(ctx, PushRequest{
		Phone:            phone,
		Amount:           amount.IntPart(),
		AccountReference: reference,
		Description:      description,
	})
	if err != nil {
		s.logger.Error("stk push failed", zap.String("phone", phone), zap.Error(err))
		return nil, err
	}
	if !resp.Accepted() {
		s.logger.Warn("stk push refused",
			zap.String("phone", phone),
			zap.String("response_code", resp.ResponseCode),
			zap.String("reason", resp.Reason()),
		)
		return nil, fmt.Errorf("%w: %s", ErrGateway, resp.Reason())
	}

	session := &Session{
		MerchantRequestID: resp.MerchantRequestID,
		CheckoutRequestID: resp.CheckoutRequestID,
		CustomerName:      strings.TrimSpace(in.CustomerName),
		PhoneNumber:       phone,
		Amount:            amount,
		Status:            StatusPending,
		RawResponse:       datatypes.JSON(resp.Raw),
	}
	if err := s.storage.Create(ctx, session); err != nil {
		s.logger.Error("failed to store payment session",
			zap.String("checkout_request_id", session.CheckoutRequestID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("store payment session: %w", err)
	}

	s.logger.Info("stk push initiated",
		zap.String("checkout_request_id", session.CheckoutRequestID),
		zap.String("merchant_request_id", session.MerchantRequestID),
		zap.String("amount", amount.String()),
	)
	return session, nil
}

// Status reports where a checkout request stands. An unknown id is a result
// with Found false; the error is reserved for storage failures.
func (s *Service) Status(ctx context.Context, checkoutID string) (StatusResult, error) {
	result := StatusResult{CheckoutRequestID: checkoutID}
	session, err := s.storage.FindByCheckoutID(ctx, checkoutID)
	if errors.Is(err, ErrNotFound) {
		return result, nil
	}
	if err != nil {
		s.logger.Error("failed to load payment session", zap.String("checkout_request_id", checkoutID), zap.Error(err))
		return result, err
	}
	return snapshot(session), nil
}

// List returns sessions newest first for auditing.
func (s *Service) List(ctx context.Context, in ListInput) ([]Session, error) {
	if in.Phone != "" {
		phone, err := NormalizePhone(in.Phone, s.countryCode)
		if err != nil {
			return nil, err
		}
		in.Phone = phone
	}
	return s.storage.List(ctx, in)
}

func snapshot(session *Session) StatusResult {
	result := StatusResult{
		CheckoutRequestID: session.CheckoutRequestID,
		Found:             true,
		Status:            session.Status,
		Amount:            session.Amount,
	}
	switch session.Status {
	case StatusCompleted:
		if session.ReceiptNumber != nil {
			result.ReceiptNumber = *session.ReceiptNumber
		}
		result.TransactionDate = session.TransactionDate
	case StatusFailed:
		result.Reason = failureReason(session.RawResponse)
	default:
		result.Message = pendingMessage
	}
	return result
}

func failureReason(raw []byte) string {
	audit := ParseAudit(raw)
	if desc := audit.String("ResultDesc"); desc != "" {
		return desc
	}
	if msg := audit.String("errorMessage"); msg != "" {
		return msg
	}
	return failedReason
}
