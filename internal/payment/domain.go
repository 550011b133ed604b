package payment

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
)

// Session tracks one STK push from initiation until the provider calls back.
// It moves from Pending to Completed or Failed exactly once.
type Session struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	MerchantRequestID string          `gorm:"size:100;uniqueIndex;not null" json:"merchant_request_id"`
	CheckoutRequestID string          `gorm:"size:100;uniqueIndex;not null" json:"checkout_request_id"`
	CustomerName      string          `gorm:"size:100" json:"customer_name,omitempty"`
	PhoneNumber       string          `gorm:"size:15;not null" json:"phone_number"`
	Amount            decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	ReceiptNumber     *string         `gorm:"size:50" json:"mpesa_receipt_number,omitempty"`
	Status            Status          `gorm:"size:20;not null;default:Pending;index" json:"status"`
	RawResponse       datatypes.JSON  `json:"raw_response,omitempty"`
	TransactionDate   *time.Time      `json:"transaction_date,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (Session) TableName() string {
	return "mpesa_transactions"
}

// ListInput filters the audit listing; empty fields match everything.
type ListInput struct {
	Status Status
	Phone  string
	Limit  int
}
