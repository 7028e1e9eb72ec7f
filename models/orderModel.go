package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

type PaymentState string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"

	PaymentStatePending PaymentState = "pending"
	PaymentStatePaid    PaymentState = "paid"
	PaymentStateFailed  PaymentState = "failed"
)

const PaymentMethodMpesa = "mpesa"

type Order struct {
	gorm.Model
	// OrderNumber stays NULL until the row has an id, it is derived from the id.
	OrderNumber     *string         `json:"orderNumber" gorm:"size:20;uniqueIndex"`
	UserID          *uint           `json:"userId" gorm:"index"`
	SessionKey      string          `json:"-" gorm:"size:64;index"`
	Status          OrderStatus     `json:"status" gorm:"size:20;index;not null"`
	PaymentStatus   PaymentState    `json:"paymentStatus" gorm:"size:20;not null"`
	PaymentMethod   string          `json:"paymentMethod" gorm:"size:50"`
	Subtotal        decimal.Decimal `json:"subtotal" gorm:"type:decimal(10,2);not null"`
	TaxAmount       decimal.Decimal `json:"taxAmount" gorm:"type:decimal(10,2);not null"`
	ShippingAmount  decimal.Decimal `json:"shippingAmount" gorm:"type:decimal(10,2);not null"`
	DiscountAmount  decimal.Decimal `json:"discountAmount" gorm:"type:decimal(10,2);not null"`
	TotalAmount     decimal.Decimal `json:"totalAmount" gorm:"type:decimal(10,2);not null"`
	ShippingAddress string          `json:"shippingAddress" gorm:"type:text"`
	BillingAddress  string          `json:"billingAddress" gorm:"type:text"`
	DeliveryAreaID  uint            `json:"deliveryAreaId"`
	CouponID        *uint           `json:"couponId"`
	ShippedAt       *time.Time      `json:"shippedAt"`
	DeliveredAt     *time.Time      `json:"deliveredAt"`
	OrderItems      []OrderItem     `json:"orderItems" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments        []Payment       `json:"payments,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	// AwaitingCheckoutRequestID is set when the provider accepted a push whose
	// payment row could not be written. The reaper leaves such orders alone.
	AwaitingCheckoutRequestID *string `json:"-" gorm:"size:100;index"`
}

// OrderItem is a by-value snapshot of a cart line at order time.
type OrderItem struct {
	gorm.Model
	OrderID     uint            `json:"orderId" gorm:"index;not null"`
	ProductID   uint            `json:"productId" gorm:"not null"`
	VariantID   *uint           `json:"variantId"`
	ProductName string          `json:"productName" gorm:"size:200"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	UnitPrice   decimal.Decimal `json:"unitPrice" gorm:"type:decimal(10,2);not null"`
	TotalPrice  decimal.Decimal `json:"totalPrice" gorm:"type:decimal(10,2);not null"`
}

func FormatOrderNumber(createdAt time.Time, id uint) string {
	return fmt.Sprintf("ORD-%s-%04d", createdAt.Format("20060102"), id)
}

func (o *Order) Number() string {
	if o.OrderNumber == nil {
		return ""
	}
	return *o.OrderNumber
}
