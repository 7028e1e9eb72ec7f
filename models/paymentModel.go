package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentSuccess || s == PaymentFailed
}

// Payment is one STK push attempt for an order. CheckoutRequestID is issued by the
// provider and is the only key callbacks are matched on.
type Payment struct {
	gorm.Model
	OrderID           uint            `json:"orderId" gorm:"index;not null"`
	CheckoutRequestID string          `json:"checkoutRequestId" gorm:"size:100;uniqueIndex;not null"`
	MerchantRequestID string          `json:"merchantRequestId" gorm:"size:100"`
	Status            PaymentStatus   `json:"status" gorm:"size:20;index;not null"`
	MpesaReceipt      *string         `json:"mpesaReceipt" gorm:"size:100"`
	PhoneNumber       string          `json:"phoneNumber" gorm:"size:20"`
	TransactionDate   string          `json:"transactionDate" gorm:"size:20"`
	Amount            decimal.Decimal `json:"amount" gorm:"type:decimal(10,2)"`
	ResultCode        *int            `json:"resultCode"`
	ResultDesc        string          `json:"resultDesc" gorm:"size:255"`
	RawResponse       datatypes.JSON  `json:"rawResponse"`
	CallbackPayload   datatypes.JSON  `json:"callbackPayload"`
	NeedsReview       bool            `json:"needsReview" gorm:"index"`
	ReviewReason      string          `json:"reviewReason" gorm:"size:255"`
	Order             *Order          `json:"order,omitempty"`
}
