package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Coupon struct {
	gorm.Model
	Code            string           `json:"code" gorm:"size:50;uniqueIndex;not null"`
	Description     string           `json:"description"`
	DiscountType    DiscountType     `json:"discountType" gorm:"size:20;not null"`
	DiscountValue   decimal.Decimal  `json:"discountValue" gorm:"type:decimal(10,2);not null"`
	MinimumAmount   *decimal.Decimal `json:"minimumAmount" gorm:"type:decimal(10,2)"`
	MaximumDiscount *decimal.Decimal `json:"maximumDiscount" gorm:"type:decimal(10,2)"`
	UsageLimit      *int             `json:"usageLimit"`
	UsedCount       int              `json:"usedCount" gorm:"not null"`
	ValidFrom       time.Time        `json:"validFrom"`
	ValidTo         time.Time        `json:"validTo"`
	IsActive        bool             `json:"isActive"`
}

func (c *Coupon) IsValid(now time.Time) bool {
	if !c.IsActive || now.Before(c.ValidFrom) || now.After(c.ValidTo) {
		return false
	}
	return c.UsageLimit == nil || c.UsedCount < *c.UsageLimit
}

// Discount evaluates the coupon against a subtotal. A subtotal under the minimum
// amount yields zero; the result never exceeds MaximumDiscount or the subtotal.
func (c *Coupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	if c.MinimumAmount != nil && subtotal.LessThan(*c.MinimumAmount) {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		discount = subtotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100)).Round(2)
	case DiscountFixed:
		discount = c.DiscountValue
	default:
		return decimal.Zero
	}

	if c.MaximumDiscount != nil && discount.GreaterThan(*c.MaximumDiscount) {
		discount = *c.MaximumDiscount
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}
